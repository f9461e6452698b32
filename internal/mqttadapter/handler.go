package mqttadapter

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/neomind/edge/internal/eventbus"
	"github.com/neomind/edge/internal/mdl"
	"github.com/neomind/edge/internal/timeseries"
)

// seenDevices tracks first-sighting so a DeviceOnline event fires exactly
// once per device, independent of registry state.
var seenDevices sync.Map // map[string]bool

func (a *Adapter) messageHandler(b *broker) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		topic := msg.Topic()
		payload := msg.Payload()

		if isDiscoveryTopic(topic, discoveryPrefix) {
			a.handleDiscovery(topic, payload)
			return
		}

		deviceID := extractDeviceID(topic, a.snapshotPatterns())
		deviceType := extractDeviceType(topic)
		a.ingest(deviceID, deviceType, payload)
	}
}

func (a *Adapter) snapshotPatterns() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, len(a.customPatterns))
	copy(out, a.customPatterns)
	return out
}

// ingest decodes a payload into metrics, routes them to the registry,
// time-series store, event bus and transform engine. It is unexported;
// in the package code, the MQTT message handler above calls it.
func (a *Adapter) ingest(deviceID, deviceType string, payload []byte) {
	ts := time.Now().Unix()

	if _, loaded := seenDevices.LoadOrStore(deviceID, true); !loaded {
		a.bus.Publish(eventbus.Event{
			Type:       eventbus.EventDeviceOnline,
			DeviceID:   deviceID,
			DeviceType: deviceType,
			Timestamp:  ts,
		})
		if a.registry != nil {
			if inst, err := a.registry.GetDevice(deviceID); err == nil {
				_ = inst
				_ = a.registry.UpdateInstance(deviceID, func(i *mdl.DeviceInstance) {
					i.Status = mdl.StatusOnline
					i.LastSeen = ts
				})
			}
		}
	}

	metrics := DecodePayload(payload)
	for i, m := range metrics {
		if a.registry != nil {
			if dt, ok := a.registry.MetricDataType(deviceID, m.Metric); ok {
				if coerced, err := mdl.Coerce(m.Value, dt); err == nil {
					m.Value = coerced
					metrics[i] = m
				}
			}
		}
	}
	for _, m := range metrics {
		a.bus.Publish(eventbus.Event{
			Type:      eventbus.EventDeviceMetric,
			DeviceID:  deviceID,
			Metric:    m.Metric,
			Value:     m.Value,
			Timestamp: ts,
		})

		if a.ts != nil {
			a.ts.Write(deviceID, m.Metric, timeseries.DataPoint{Timestamp: ts, Value: m.Value})
		}

		if a.registry != nil {
			_ = a.registry.UpdateInstance(deviceID, func(i *mdl.DeviceInstance) {
				if i.CurrentValues == nil {
					i.CurrentValues = map[string]mdl.TimedValue{}
				}
				i.CurrentValues[m.Metric] = mdl.TimedValue{Value: m.Value, Timestamp: ts}
				i.LastSeen = ts
			})
		}
	}

	if a.transforms != nil {
		a.transforms.ProcessDeviceData(deviceID, deviceType, payload)
	}
}

// discoveryAnnounce is the expected shape of a discovery announcement
// payload per §6.
type discoveryAnnounce struct {
	DeviceType string            `json:"device_type"`
	Name       string            `json:"name,omitempty"`
	Config     map[string]string `json:"config,omitempty"`
}

func (a *Adapter) handleDiscovery(topic string, payload []byte) {
	var ann discoveryAnnounce
	if err := decodeJSON(payload, &ann); err != nil {
		a.log.Warnw("discovery announce decode failed", "topic", topic, "error", err)
		return
	}

	deviceID := extractDeviceID(topic, a.snapshotPatterns())

	if a.registry != nil {
		if _, err := a.registry.GetDevice(deviceID); err != nil {
			_, regErr := a.registry.RegisterDevice(mdl.DeviceConfig{
				ID:          deviceID,
				DisplayName: ann.Name,
				DeviceType:  ann.DeviceType,
				AdapterType: "mqtt",
			})
			if regErr != nil {
				a.log.Warnw("discovery auto-register failed", "device_id", deviceID, "error", regErr)
			}
		}
	}

	a.bus.Publish(eventbus.Event{
		Type:       eventbus.EventDiscovery,
		DeviceID:   deviceID,
		DeviceType: ann.DeviceType,
		Timestamp:  time.Now().Unix(),
	})
	a.bus.Publish(eventbus.Event{
		Type:       eventbus.EventDeviceOnline,
		DeviceID:   deviceID,
		DeviceType: ann.DeviceType,
		Timestamp:  time.Now().Unix(),
	})
}
