package mqttadapter

import (
	"time"

	"github.com/neomind/edge/internal/neoerr"
)

// SendCommand assembles the downlink topic and publishes payload to every
// broker in the pool at QoS 1. Succeeds if at least one publish
// succeeded; returns the last error otherwise.
func (a *Adapter) SendCommand(deviceID, command, payload string, topic *string) error {
	downlink := a.resolveDownlinkTopic(deviceID, command, topic)

	a.mu.RLock()
	brokers := make([]*broker, 0, len(a.brokers))
	for _, b := range a.brokers {
		brokers = append(brokers, b)
	}
	a.mu.RUnlock()

	if len(brokers) == 0 {
		return neoerr.Communication("send command", neoErrNoBrokers)
	}

	var lastErr error
	succeeded := false
	for _, b := range brokers {
		token := b.client.Publish(downlink, 1, false, payload)
		if !token.WaitTimeout(5 * time.Second) {
			lastErr = neoErrPublishTimeout
			continue
		}
		if err := token.Error(); err != nil {
			lastErr = err
			continue
		}
		succeeded = true
	}

	if !succeeded {
		return neoerr.Communication("send command to "+deviceID, lastErr)
	}
	return nil
}

func (a *Adapter) resolveDownlinkTopic(deviceID, command string, explicit *string) string {
	if explicit != nil && *explicit != "" {
		return *explicit
	}
	if a.registry != nil {
		if inst, err := a.registry.GetDevice(deviceID); err == nil {
			if inst.Config.Connection.CommandTopic != "" {
				return inst.Config.Connection.CommandTopic
			}
			return DownlinkTopic(inst.Config.DeviceType, deviceID)
		}
	}
	return deviceID + "/command/" + command
}

// SubscribeDevice resolves and subscribes to the topic(s) appropriate for
// one device: its explicit telemetry topic if configured, else the
// canonical uplink topic for its type, else a wildcard uplink topic if
// the device is unknown to the registry.
func (a *Adapter) SubscribeDevice(deviceID string) error {
	if a.registry != nil {
		if inst, err := a.registry.GetDevice(deviceID); err == nil {
			topic := inst.Config.Connection.TelemetryTopic
			if topic == "" {
				topic = UplinkTopic(inst.Config.DeviceType, deviceID)
			}
			return a.SubscribeTopic(topic)
		}
	}
	return a.SubscribeTopic("device/+/" + deviceID + "+/uplink")
}

type sentinelError string

func (e sentinelError) Error() string { return string(e) }

const (
	neoErrNoBrokers      = sentinelError("no brokers in pool")
	neoErrPublishTimeout = sentinelError("publish timed out")
)
