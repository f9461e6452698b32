package mqttadapter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/neomind/edge/internal/eventbus"
	"github.com/neomind/edge/internal/mdl"
)

// fakeRegistry resolves exactly one device to one template, enough to
// exercise Adapter.ingest's metric-type coercion without a real store.
type fakeRegistry struct {
	deviceType string
	metrics    []mdl.MetricDefinition
}

func (f *fakeRegistry) GetDevice(id string) (*mdl.DeviceInstance, error) {
	return &mdl.DeviceInstance{Config: mdl.DeviceConfig{ID: id, DeviceType: f.deviceType}}, nil
}

func (f *fakeRegistry) RegisterDevice(cfg mdl.DeviceConfig) (*mdl.DeviceInstance, error) {
	return &mdl.DeviceInstance{Config: cfg}, nil
}

func (f *fakeRegistry) UpdateInstance(id string, fn func(*mdl.DeviceInstance)) error {
	return nil
}

func (f *fakeRegistry) GetTemplate(id string) (mdl.DeviceTypeTemplate, error) {
	return mdl.DeviceTypeTemplate{ID: id, Metrics: f.metrics}, nil
}

func (f *fakeRegistry) MetricDataType(deviceID, metric string) (mdl.DataType, bool) {
	for _, m := range f.metrics {
		if m.Name == metric {
			return m.DataType, true
		}
	}
	return "", false
}

// TestIngestCoercesWholeNumberFloatToDeclaredType reproduces S1's
// humidity=60 sample: a template declaring humidity as float must emit
// FloatValue(60) from the adapter path, not the IntValue(60) that
// FromNative alone would infer from the whole-number JSON literal.
func TestIngestCoercesWholeNumberFloatToDeclaredType(t *testing.T) {
	reg := &fakeRegistry{
		deviceType: "dht22",
		metrics: []mdl.MetricDefinition{
			{Name: "humidity", DataType: mdl.TypeFloat},
		},
	}
	bus := eventbus.New()
	a := New(reg, bus, nil, nil, nil)

	ch, unsub := bus.Subscribe()
	defer unsub()

	a.ingest("sensor_001", "dht22", []byte(`{"humidity": 60}`))

	var humidity mdl.MetricValue
	found := false
	for !found {
		select {
		case ev := <-ch:
			if ev.Metric == "humidity" {
				humidity = ev.Value
				found = true
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for humidity metric")
		}
	}

	require.True(t, found, "expected a humidity metric event")
	require.Equal(t, mdl.KindFloat, humidity.Kind)
	require.Equal(t, 60.0, humidity.Float)
}
