// Package transform implements the automation engine's mapping from raw
// device payloads to derived metrics, in both its scripted (sandboxed JS)
// and structured operation-graph forms.
package transform

import "github.com/neomind/edge/internal/mdl"

// ScopeKind selects which devices a transform applies to.
type ScopeKind string

const (
	ScopeGlobal     ScopeKind = "global"
	ScopeDeviceType ScopeKind = "device_type"
	ScopeDevice     ScopeKind = "device"
)

// Scope is the transform applicability selector; more-specific scopes
// take priority when multiple transforms match the same device.
type Scope struct {
	Kind ScopeKind `json:"kind"`
	ID   string    `json:"id,omitempty"` // device type id or device id, per Kind
}

func (s Scope) specificity() int {
	switch s.Kind {
	case ScopeDevice:
		return 2
	case ScopeDeviceType:
		return 1
	default:
		return 0
	}
}

// AppliesTo reports whether the scope matches the given device.
func (s Scope) AppliesTo(deviceID, deviceType string) bool {
	switch s.Kind {
	case ScopeGlobal:
		return true
	case ScopeDeviceType:
		return s.ID == deviceType
	case ScopeDevice:
		return s.ID == deviceID
	default:
		return false
	}
}

// AutomationMetadata is shared between Transforms and Rules.
type AutomationMetadata struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Enabled      bool   `json:"enabled"`
	ExecCount    int64  `json:"execution_count"`
	LastExecuted *int64 `json:"last_executed,omitempty"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

// ScriptedForm is the AI-authored scripted transform representation.
type ScriptedForm struct {
	Intent       string `json:"intent,omitempty"`
	JSCode       string `json:"js_code"`
	OutputPrefix string `json:"output_prefix"`
	Complexity   int    `json:"complexity"` // 1..5
}

// Transform is a tagged union: exactly one of Scripted or Operations is set.
type Transform struct {
	Metadata   AutomationMetadata   `json:"metadata"`
	Scope      Scope                `json:"scope"`
	Scripted   *ScriptedForm        `json:"scripted,omitempty"`
	Operations []Operation          `json:"operations,omitempty"`
}

// IsScripted reports whether this transform uses the scripted form.
func (t Transform) IsScripted() bool { return t.Scripted != nil }

// EmittedMetric is one derived metric produced by a transform execution.
type EmittedMetric struct {
	Name  string
	Value mdl.MetricValue
}
