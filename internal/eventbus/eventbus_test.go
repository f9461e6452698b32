package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/neomind/edge/internal/mdl"
)

func TestPublishDeliversInOrder(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe()
	defer unsub()

	b.Publish(Event{Type: EventDeviceOnline, DeviceID: "sensor_001"})
	b.Publish(Event{Type: EventDeviceMetric, DeviceID: "sensor_001", Metric: "_raw", Value: mdl.StringValue("x")})
	b.Publish(Event{Type: EventDeviceMetric, DeviceID: "sensor_001", Metric: "temperature", Value: mdl.FloatValue(23.5)})

	var got []Event
	for i := 0; i < 3; i++ {
		select {
		case e := <-ch:
			got = append(got, e)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}

	require.Equal(t, EventDeviceOnline, got[0].Type)
	require.Equal(t, "_raw", got[1].Metric)
	require.Equal(t, "temperature", got[2].Metric)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe()
	unsub()
	b.Publish(Event{Type: EventDeviceOnline})

	_, ok := <-ch
	require.False(t, ok, "channel should be closed after unsubscribe")
}

func TestSlowSubscriberDropsUnderBackpressure(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe()
	defer unsub()

	for i := 0; i < subscriberBuffer+10; i++ {
		b.Publish(Event{Type: EventDeviceMetric})
	}

	require.Len(t, ch, subscriberBuffer)
}
