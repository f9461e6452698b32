package mqttadapter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractDeviceIDCanonical(t *testing.T) {
	id := extractDeviceID("device/dht22_sensor/sensor_001/uplink", nil)
	require.Equal(t, "sensor_001", id)
}

func TestExtractDeviceIDCustomPattern(t *testing.T) {
	id := extractDeviceID("site42/gateway7/telemetry", []string{"site42/+/telemetry"})
	require.Equal(t, "gateway7", id)
}

func TestExtractDeviceIDFallback(t *testing.T) {
	id := extractDeviceID("unrelated/topic/shape", nil)
	require.Equal(t, "topic", id)
}

func TestExtractDeviceType(t *testing.T) {
	require.Equal(t, "dht22_sensor", extractDeviceType("device/dht22_sensor/sensor_001/uplink"))
	require.Equal(t, "", extractDeviceType("other/topic"))
}

func TestMatchTopicWildcards(t *testing.T) {
	require.True(t, matchTopic("device/+/+/uplink", "device/dht22_sensor/sensor_001/uplink"))
	require.True(t, matchTopic("discovery/#", "discovery/announce"))
	require.False(t, matchTopic("device/+/+/uplink", "device/dht22_sensor/uplink"))
}
