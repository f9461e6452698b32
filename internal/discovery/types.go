// Package discovery implements auto-onboarding of unrecognized devices:
// staged sample collection, JSON schema inference, and semantic type
// tagging feeding a human-approved DeviceConfig/template pair.
package discovery

import "time"

type DraftStatus string

const (
	StatusCollecting        DraftStatus = "collecting"
	StatusAnalyzing         DraftStatus = "analyzing"
	StatusWaitingProcessing DraftStatus = "waiting_processing"
	StatusRegistering       DraftStatus = "registering"
	StatusRegistered        DraftStatus = "registered"
	StatusRejected          DraftStatus = "rejected"
	StatusFailed            DraftStatus = "failed"
)

// DeviceSample is one raw uplink collected for an unrecognized device.
type DeviceSample struct {
	Raw       []byte         `json:"raw"`
	Parsed    any            `json:"parsed,omitempty"`
	Source    string         `json:"source"`
	Timestamp int64          `json:"timestamp"`
}

// DiscoveredMetric is one inferred telemetry field.
type DiscoveredMetric struct {
	Path         string       `json:"path"`
	DataType     string       `json:"data_type"`
	Coverage     float64      `json:"coverage"`
	SemanticType string       `json:"semantic_type,omitempty"`
	Unit         string       `json:"unit,omitempty"`
	ValueRange   *ValueRange  `json:"value_range,omitempty"`
	SampleValues []any        `json:"sample_values,omitempty"`
	MaxLength    int          `json:"max_length,omitempty"`
}

// ValueRange summarizes numeric observations of one path across samples.
type ValueRange struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Avg    float64 `json:"avg"`
	StdDev float64 `json:"stddev"`
}

// DiscoveredCommand names a controllable property and its parameters.
// Analysis does not infer commands from uplink samples, so Manager leaves
// GeneratedDeviceType.Commands empty.
type DiscoveredCommand struct {
	Name   string `json:"name"`
	Params []string `json:"params,omitempty"`
}

// GeneratedDeviceType is the analysis output staged for user review.
type GeneratedDeviceType struct {
	Metrics  []DiscoveredMetric  `json:"metrics"`
	Commands []DiscoveredCommand `json:"commands,omitempty"`
	Summary  string              `json:"summary"`
}

// DraftDevice is the staging record for one unknown device id.
type DraftDevice struct {
	DraftID       string               `json:"draft_id"`
	DeviceID      string               `json:"device_id"`
	Source        string               `json:"source"`
	OriginalTopic string               `json:"original_topic,omitempty"`
	AdapterID     string               `json:"adapter_id,omitempty"`
	Status        DraftStatus          `json:"status"`
	Samples       []DeviceSample       `json:"samples"`
	Generated     *GeneratedDeviceType `json:"generated,omitempty"`
	Overrides     map[string]any       `json:"overrides,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
