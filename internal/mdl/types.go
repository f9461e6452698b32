// Package mdl implements the Machine Description Language: typed device
// templates, device instances, and the registry that persists and serves
// them.
package mdl

import (
	"regexp"
	"time"
)

// DataType enumerates the metric/parameter value kinds a template can
// declare.
type DataType string

const (
	TypeInteger DataType = "integer"
	TypeFloat   DataType = "float"
	TypeString  DataType = "string"
	TypeBoolean DataType = "boolean"
	TypeBinary  DataType = "binary"
	TypeArray   DataType = "array"
	TypeEnum    DataType = "enum"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// MetricDefinition describes one named, typed field a device template
// exposes, with dot-path semantics into the decoded payload.
type MetricDefinition struct {
	Name          string   `json:"name"`
	DataType      DataType `json:"data_type"`
	Unit          string   `json:"unit,omitempty"`
	Min           *float64 `json:"min,omitempty"`
	Max           *float64 `json:"max,omitempty"`
	Required      bool     `json:"required"`
	Options       []string `json:"options,omitempty"`        // enum<options>: the full declared choice set
	AllowedValues []string `json:"allowed_values,omitempty"` // optional narrower subset actually accepted; must be ⊆ Options
	ElemType      DataType `json:"elem_type,omitempty"`      // array<T?>
}

// ValidationRuleKind enumerates the parameter validation forms a command
// definition can declare.
type ValidationRuleKind string

const (
	ValidationPattern ValidationRuleKind = "pattern"
	ValidationRange   ValidationRuleKind = "range"
	ValidationLength  ValidationRuleKind = "length"
	ValidationCustom  ValidationRuleKind = "custom"
)

type ValidationRule struct {
	Kind    ValidationRuleKind `json:"kind"`
	Pattern string             `json:"pattern,omitempty"`
	Min     *float64           `json:"min,omitempty"`
	Max     *float64           `json:"max,omitempty"`
	Name    string             `json:"name,omitempty"`
	Params  map[string]any     `json:"params,omitempty"`
}

// ParameterDefinition describes one command parameter.
type ParameterDefinition struct {
	Name     string          `json:"name"`
	DataType DataType        `json:"data_type"`
	Required bool            `json:"required"`
	Default  any             `json:"default,omitempty"`
	Rules    []ValidationRule `json:"rules,omitempty"`
}

// ParameterGroup names a set of parameters that travel together (e.g. an
// "advanced" section in a generated UI).
type ParameterGroup struct {
	Name       string   `json:"name"`
	Parameters []string `json:"parameters"`
}

// CommandDefinition describes a downlink command a device template exposes.
type CommandDefinition struct {
	Name            string                `json:"name"`
	PayloadTemplate string                `json:"payload_template"`
	FixedValues     map[string]any        `json:"fixed_values,omitempty"`
	Parameters      []ParameterDefinition `json:"parameters,omitempty"`
	ParameterGroups []ParameterGroup      `json:"parameter_groups,omitempty"`
}

// TemplateMode toggles how much of a template's surface a UI should render.
type TemplateMode string

const (
	ModeSimple TemplateMode = "simple"
	ModeFull   TemplateMode = "full"
)

// DeviceTypeTemplate is the persisted schema for one class of device.
type DeviceTypeTemplate struct {
	ID          string               `json:"id"`
	DisplayName string               `json:"display_name"`
	Mode        TemplateMode         `json:"mode"`
	Metrics     []MetricDefinition   `json:"metrics"`
	Commands    []CommandDefinition  `json:"commands"`
}

// ConnectionConfig is the protocol-specific wiring for a device instance.
type ConnectionConfig struct {
	TelemetryTopic string            `json:"telemetry_topic,omitempty"`
	CommandTopic   string            `json:"command_topic,omitempty"`
	JSONPath       string            `json:"json_path,omitempty"`
	HassEntityID   string            `json:"hass_entity_id,omitempty"`
	Extra          map[string]string `json:"extra,omitempty"`
}

// DeviceConfig is the persisted registration record for one device.
type DeviceConfig struct {
	ID             string           `json:"id"`
	DisplayName    string           `json:"display_name"`
	DeviceType     string           `json:"device_type"`
	AdapterType    string           `json:"adapter_type"`
	Connection     ConnectionConfig `json:"connection"`
	AdapterInstance string          `json:"adapter_instance,omitempty"`
}

// ConnectionStatus is the live connectivity state of a DeviceInstance.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusOnline       ConnectionStatus = "online"
	StatusOffline      ConnectionStatus = "offline"
	StatusError        ConnectionStatus = "error"
)

// TimedValue pairs a MetricValue with the timestamp it was observed at.
type TimedValue struct {
	Value     MetricValue `json:"value"`
	Timestamp int64       `json:"timestamp"`
}

// DeviceInstance is the runtime-live projection of a DeviceConfig.
type DeviceInstance struct {
	Config        DeviceConfig          `json:"config"`
	Status        ConnectionStatus      `json:"status"`
	LastSeen      int64                 `json:"last_seen"`
	CurrentValues map[string]TimedValue `json:"current_values"`
}

func newInstance(cfg DeviceConfig) *DeviceInstance {
	return &DeviceInstance{
		Config:        cfg,
		Status:        StatusDisconnected,
		CurrentValues: map[string]TimedValue{},
	}
}

func now() int64 { return time.Now().Unix() }
