package mqttadapter

import "strings"

const (
	topicUplinkPattern   = "device/+/+/uplink"
	topicDownlinkPattern = "device/+/+/downlink"
)

// UplinkTopic returns the canonical uplink topic for a device type/id pair.
func UplinkTopic(deviceType, deviceID string) string {
	return "device/" + deviceType + "/" + deviceID + "/uplink"
}

// DownlinkTopic returns the canonical downlink topic for a device type/id pair.
func DownlinkTopic(deviceType, deviceID string) string {
	return "device/" + deviceType + "/" + deviceID + "/downlink"
}

// matchTopic reports whether topic matches an MQTT filter containing `+`
// (single segment) and `#` (rest) wildcards.
func matchTopic(filter, topic string) bool {
	fParts := strings.Split(filter, "/")
	tParts := strings.Split(topic, "/")

	for i, fp := range fParts {
		if fp == "#" {
			return true
		}
		if i >= len(tParts) {
			return false
		}
		if fp == "+" {
			continue
		}
		if fp != tParts[i] {
			return false
		}
	}
	return len(fParts) == len(tParts)
}

// extractDeviceID implements the §4.4 device-id extraction algorithm: the
// canonical device/+/+/<dir> shape yields the segment at index 2;
// otherwise each matching custom pattern is checked for a wildcard at
// index 1, which yields the topic segment at index 1; failing that, the
// segment at index 1 is used as well. Indexes are 0-based.
func extractDeviceID(topic string, customPatterns []string) string {
	parts := strings.Split(topic, "/")
	if len(parts) == 4 && parts[0] == "device" && (parts[3] == "uplink" || parts[3] == "downlink") {
		return parts[2]
	}

	for _, pattern := range customPatterns {
		if !matchTopic(pattern, topic) {
			continue
		}
		pParts := strings.Split(pattern, "/")
		if len(pParts) > 1 && pParts[1] == "+" && len(parts) > 1 {
			return parts[1]
		}
	}

	if len(parts) > 1 {
		return parts[1]
	}
	return topic
}

// extractDeviceType returns the device type segment for a canonical
// device/{type}/{id}/{dir} topic, or "" if the topic does not match.
func extractDeviceType(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) == 4 && parts[0] == "device" {
		return parts[1]
	}
	return ""
}

func isDiscoveryTopic(topic, discoveryPrefix string) bool {
	return topic == discoveryPrefix+"/announce"
}
