package mdl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildCommandPayloadS3(t *testing.T) {
	tpl := SeedDimmableLightTemplate()
	cmd := tpl.Commands[0]

	out, err := BuildCommandPayload(cmd, map[string]any{"state": true, "level": 42})
	require.NoError(t, err)
	require.JSONEq(t, `{"cmd":"set","state":true,"level":42}`, out)
}

func TestBuildCommandPayloadMissingRequired(t *testing.T) {
	tpl := SeedDimmableLightTemplate()
	cmd := tpl.Commands[0]

	_, err := BuildCommandPayload(cmd, map[string]any{"state": true})
	require.Error(t, err)
}

func TestBuildCommandPayloadRejectsUnresolvedPlaceholder(t *testing.T) {
	cmd := CommandDefinition{
		Name:            "partial",
		PayloadTemplate: `{"a":${{a}},"b":${{b}}}`,
		Parameters: []ParameterDefinition{
			{Name: "a", DataType: TypeInteger, Required: true},
		},
	}
	_, err := BuildCommandPayload(cmd, map[string]any{"a": 1})
	require.Error(t, err)
}

func TestParseMetricValueJSONPath(t *testing.T) {
	m := MetricDefinition{Name: "temperature", DataType: TypeFloat}
	v, err := ParseMetricValue(m, []byte(`{"temperature":23.5,"humidity":60}`))
	require.NoError(t, err)
	f, ok := v.AsFloat64()
	require.True(t, ok)
	require.Equal(t, 23.5, f)
}

func TestParseMetricValueArrayIndexPath(t *testing.T) {
	m := MetricDefinition{Name: "detections.0.class_name", DataType: TypeString}
	v, err := ParseMetricValue(m, []byte(`{"detections":[{"class_name":"fish"},{"class_name":"shrimp"}]}`))
	require.NoError(t, err)
	require.Equal(t, "fish", v.Str)
}

func TestParseMetricValueRawFallback(t *testing.T) {
	m := MetricDefinition{Name: "value", DataType: TypeFloat}
	v, err := ParseMetricValue(m, []byte("23.5"))
	require.NoError(t, err)
	f, _ := v.AsFloat64()
	require.Equal(t, 23.5, f)
}
