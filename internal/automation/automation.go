// Package automation exposes the tagged union the spec calls Automation:
// every Transform (internal/transform) and every Rule (internal/rules)
// viewed through one shared AutomationMetadata shape, for listing and
// enable/disable operations that don't care which kind they're touching.
//
// rules.AutomationMetadata and transform.AutomationMetadata stay
// independent structs (each package documents this at its definition) so
// neither rule evaluation nor transform execution has to import the
// other; this package is the place that looks at both.
package automation

import (
	"sort"

	"github.com/neomind/edge/internal/rules"
	"github.com/neomind/edge/internal/transform"
)

// Kind distinguishes which concrete subsystem backs an Automation.
type Kind string

const (
	KindRule      Kind = "rule"
	KindTransform Kind = "transform"
)

// Metadata is the shared view both rules.AutomationMetadata and
// transform.AutomationMetadata project onto.
type Metadata struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Enabled      bool   `json:"enabled"`
	ExecCount    int64  `json:"execution_count"`
	LastExecuted *int64 `json:"last_executed,omitempty"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

// Summary is one entry in the combined automation listing.
type Summary struct {
	Kind     Kind     `json:"kind"`
	Metadata Metadata `json:"metadata"`
}

func fromRuleMetadata(m rules.AutomationMetadata) Metadata {
	return Metadata{
		ID: m.ID, Name: m.Name, Description: m.Description, Enabled: m.Enabled,
		ExecCount: m.ExecCount, LastExecuted: m.LastExecuted, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

func fromTransformMetadata(m transform.AutomationMetadata) Metadata {
	return Metadata{
		ID: m.ID, Name: m.Name, Description: m.Description, Enabled: m.Enabled,
		ExecCount: m.ExecCount, LastExecuted: m.LastExecuted, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

// RuleSource supplies the live rule set for the combined listing;
// satisfied structurally by *rules.Scheduler through its Rules method.
type RuleSource interface {
	Rules() []*rules.Rule
}

// TransformSource supplies the live transform set; satisfied structurally
// by *transform.Engine.
type TransformSource interface {
	ListTransforms() []transform.Transform
}

// List merges rules and transforms into one sorted-by-kind-then-id view.
func List(ruleSrc RuleSource, transformSrc TransformSource) []Summary {
	var out []Summary
	if ruleSrc != nil {
		for _, r := range ruleSrc.Rules() {
			out = append(out, Summary{Kind: KindRule, Metadata: fromRuleMetadata(r.Metadata)})
		}
	}
	if transformSrc != nil {
		for _, tr := range transformSrc.ListTransforms() {
			out = append(out, Summary{Kind: KindTransform, Metadata: fromTransformMetadata(tr.Metadata)})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Metadata.ID < out[j].Metadata.ID
	})
	return out
}
