package transform

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, js string) any {
	var v any
	require.NoError(t, json.Unmarshal([]byte(js), &v))
	return v
}

func TestExtractOperation(t *testing.T) {
	root := decode(t, `{"temperature":23.5}`)
	ctx := &execContext{root: root, vars: map[string]any{}}
	v, err := execOperation(Operation{Kind: OpExtract, From: "temperature", Output: "temp"}, ctx)
	require.NoError(t, err)
	require.Equal(t, 23.5, v)
	require.Len(t, ctx.emitted, 1)
	require.Equal(t, "temp", ctx.emitted[0].Name)
}

func TestGroupByOperationS4(t *testing.T) {
	root := decode(t, `{"detections":[{"cls":"fish"},{"cls":"fish"},{"cls":"shrimp"}]}`)
	ctx := &execContext{root: root, vars: map[string]any{}}
	_, err := execOperation(Operation{
		Kind:   OpGroupBy,
		Over:   "detections",
		Key:    "cls",
		Using:  AggCount,
		Output: "detection_count",
	}, ctx)
	require.NoError(t, err)
	require.Len(t, ctx.emitted, 2)

	byName := map[string]float64{}
	for _, m := range ctx.emitted {
		f, _ := m.Value.AsFloat64()
		byName[m.Name] = f
	}
	require.Equal(t, 2.0, byName["detection_count.fish"])
	require.Equal(t, 1.0, byName["detection_count.shrimp"])
}

func TestComputeOperation(t *testing.T) {
	root := decode(t, `{"temperature":20,"offset":5}`)
	ctx := &execContext{root: root, vars: map[string]any{}}
	v, err := execOperation(Operation{Kind: OpCompute, Expression: "{{temperature}} + {{offset}}", Output: "adjusted"}, ctx)
	require.NoError(t, err)
	require.Equal(t, 25.0, v)
}

func TestIfOperation(t *testing.T) {
	root := decode(t, `{"temperature":35}`)
	ctx := &execContext{root: root, vars: map[string]any{}}
	v, err := execOperation(Operation{
		Kind:      OpIf,
		Condition: "{{temperature}} > 30",
		Then:      []Operation{{Kind: OpFormat, Template: "hot", Output: "state"}},
		Else:      []Operation{{Kind: OpFormat, Template: "normal", Output: "state"}},
		Output:    "result",
	}, ctx)
	require.NoError(t, err)
	require.Equal(t, "hot", v)
}

func TestReduceOperation(t *testing.T) {
	root := decode(t, `{"samples":[1,2,3,4]}`)
	ctx := &execContext{root: root, vars: map[string]any{}}
	v, err := execOperation(Operation{Kind: OpReduce, Over: "samples", Using: AggMean, Output: "avg"}, ctx)
	require.NoError(t, err)
	require.Equal(t, 2.5, v)
}

func TestComplexityScore(t *testing.T) {
	require.Equal(t, 1, ComplexityScore(Operation{Kind: OpExtract}))
	require.Equal(t, 2, ComplexityScore(Operation{Kind: OpMap}))
	pipeline := Operation{Kind: OpPipeline, Steps: []Operation{{Kind: OpExtract}, {Kind: OpCompute}}}
	require.Equal(t, 3, ComplexityScore(pipeline))
}

func TestEngineProcessDeviceDataScopePriority(t *testing.T) {
	e := New(nil, nil)
	e.AddTransform(Transform{
		Metadata: AutomationMetadata{ID: "global", Enabled: true},
		Scope:    Scope{Kind: ScopeGlobal},
		Operations: []Operation{
			{Kind: OpExtract, From: "temperature", Output: "global.temp"},
		},
	})
	e.AddTransform(Transform{
		Metadata: AutomationMetadata{ID: "specific", Enabled: true},
		Scope:    Scope{Kind: ScopeDevice, ID: "sensor_001"},
		Operations: []Operation{
			{Kind: OpExtract, From: "temperature", Output: "device.temp"},
		},
	})

	applicable := e.applicable("sensor_001", "dht22_sensor")
	require.Len(t, applicable, 2)
	require.Equal(t, "specific", applicable[0].Metadata.ID)
}
