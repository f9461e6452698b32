package mqttadapter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodePayloadS1ObjectOrder(t *testing.T) {
	metrics := DecodePayload([]byte(`{"temperature": 23.5, "humidity": 60}`))
	require.Len(t, metrics, 3)
	require.Equal(t, "_raw", metrics[0].Metric)
	require.Equal(t, "temperature", metrics[1].Metric)
	require.Equal(t, "humidity", metrics[2].Metric)

	f, ok := metrics[1].Value.AsFloat64()
	require.True(t, ok)
	require.Equal(t, 23.5, f)
}

func TestDecodePayloadScalar(t *testing.T) {
	metrics := DecodePayload([]byte(`42.5`))
	require.Len(t, metrics, 2)
	require.Equal(t, "value", metrics[1].Metric)
	f, _ := metrics[1].Value.AsFloat64()
	require.Equal(t, 42.5, f)
}

func TestDecodePayloadNonJSON(t *testing.T) {
	metrics := DecodePayload([]byte("not-json"))
	require.Len(t, metrics, 2)
	require.Equal(t, "value", metrics[1].Metric)
	require.Equal(t, "not-json", metrics[1].Value.Str)
}
