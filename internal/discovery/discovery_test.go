package discovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestObserveReachesImmediateReadiness(t *testing.T) {
	m := NewManager(Config{MaxSamples: 50, MinSamples: 3, TimeoutSecs: 300})

	var d *DraftDevice
	for i := 0; i < 3; i++ {
		d = m.Observe("unknown_01", "mqtt", "edge/unknown_01/up", "broker-1", []byte(`{"temperature":22.5,"humidity":40}`))
	}

	require.Equal(t, StatusWaitingProcessing, d.Status)
	require.NotNil(t, d.Generated)
	require.NotEmpty(t, d.Generated.Metrics)

	var tempMetric *DiscoveredMetric
	for i := range d.Generated.Metrics {
		if d.Generated.Metrics[i].Path == "temperature" {
			tempMetric = &d.Generated.Metrics[i]
		}
	}
	require.NotNil(t, tempMetric)
	require.Equal(t, "temperature", tempMetric.SemanticType)
	require.Equal(t, 1.0, tempMetric.Coverage)
}

func TestObserveFoldsArrayIndices(t *testing.T) {
	m := NewManager(Config{MaxSamples: 50, MinSamples: 1, TimeoutSecs: 300})
	d := m.Observe("cam_01", "mqtt", "edge/cam_01/up", "broker-1",
		[]byte(`{"detections":[{"class_name":"fish"},{"class_name":"shrimp"}]}`))

	require.NotNil(t, d)
	paths := map[string]bool{}
	d2 := m.Observe("cam_01", "mqtt", "edge/cam_01/up", "broker-1",
		[]byte(`{"detections":[{"class_name":"fish"}]}`))
	_ = d2

	metrics := DiscoverPaths(m.drafts["cam_01"].Samples)
	for _, metric := range metrics {
		paths[metric.Path] = true
	}
	require.True(t, paths["detections[].class_name"])
}

func TestSweepTimeoutsPromotesIdleDraft(t *testing.T) {
	m := NewManager(Config{MaxSamples: 50, MinSamples: 2, TimeoutSecs: 1})
	// Observe analyses a draft as soon as it holds MinSamples samples, so a
	// Collecting draft that already holds MinSamples is staged directly.
	m.drafts["slow_01"] = &DraftDevice{
		DeviceID: "slow_01",
		Source:   "mqtt",
		Status:   StatusCollecting,
		Samples: []DeviceSample{
			{Raw: []byte(`{"value":1}`), Parsed: map[string]any{"value": 1.0}, Source: "mqtt"},
			{Raw: []byte(`{"value":2}`), Parsed: map[string]any{"value": 2.0}, Source: "mqtt"},
		},
		UpdatedAt: time.Now(),
	}

	d, _ := m.Get("slow_01")
	require.Equal(t, StatusCollecting, d.Status)

	promoted := m.SweepTimeouts(time.Now().Add(2 * time.Second))
	require.Contains(t, promoted, "slow_01")

	d, _ = m.Get("slow_01")
	require.Equal(t, StatusWaitingProcessing, d.Status)
}

func TestApproveRequiresWaitingStatus(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.Observe("dev_01", "mqtt", "", "", []byte(`{"x":1}`))

	_, err := m.Approve("dev_01", nil)
	require.Error(t, err)
}

func TestApproveTransitionsToRegistered(t *testing.T) {
	m := NewManager(Config{MaxSamples: 50, MinSamples: 1, TimeoutSecs: 300})
	m.Observe("dev_01", "mqtt", "", "", []byte(`{"x":1}`))

	d, err := m.Approve("dev_01", map[string]any{"name": "Kitchen Sensor"})
	require.NoError(t, err)
	require.Equal(t, StatusRegistered, d.Status)
}

func TestRejectFromAnyStatus(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.Observe("dev_01", "mqtt", "", "", []byte(`{"x":1}`))
	require.NoError(t, m.Reject("dev_01"))

	d, _ := m.Get("dev_01")
	require.Equal(t, StatusRejected, d.Status)
}

func TestInferSemanticTypeNestedPath(t *testing.T) {
	name, unit := InferSemanticType("sensor.battery_level")
	require.Equal(t, "battery", name)
	require.Equal(t, "percent", unit)
}
