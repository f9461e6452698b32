package discovery

import "strings"

// semanticTaxonomy maps a semantic type name to its default unit and the
// keyword fragments that identify it in a field name. Keywords are
// matched case-insensitively as substrings.
var semanticTaxonomy = []struct {
	Name     string
	Unit     string
	Keywords []string
}{
	{"battery", "percent", []string{"battery", "batt"}},
	{"rssi", "dbm", []string{"rssi", "signal"}},
	{"temperature", "celsius", []string{"temp", "temperature"}},
	{"humidity", "percent", []string{"humid", "rh"}},
	{"pressure", "hpa", []string{"pressure", "baro"}},
	{"light", "lux", []string{"lux", "illuminance", "light_level"}},
	{"motion", "boolean", []string{"motion", "pir", "occupancy"}},
	{"switch", "boolean", []string{"switch", "relay", "on_off", "state"}},
	{"dimmer", "percent", []string{"dimmer", "brightness"}},
	{"color", "rgb", []string{"color", "rgb", "hue"}},
	{"power", "watt", []string{"power", "watt"}},
	{"energy", "kwh", []string{"energy", "kwh"}},
	{"co2", "ppm", []string{"co2", "carbon_dioxide"}},
	{"pm25", "ug_m3", []string{"pm25", "pm2_5"}},
	{"voc", "ppb", []string{"voc"}},
	{"speed", "m_s", []string{"speed", "velocity"}},
	{"flow", "l_min", []string{"flow"}},
	{"level", "percent", []string{"level", "fill"}},
	{"status", "enum", []string{"status"}},
	{"error", "enum", []string{"error", "fault"}},
	{"alarm", "boolean", []string{"alarm"}},
}

// InferSemanticType matches fieldName (and, for dotted paths, its last
// segment) against the taxonomy, returning the semantic name and default
// unit. The empty string is returned when nothing matches.
func InferSemanticType(fieldName string) (name, unit string) {
	lower := strings.ToLower(fieldName)
	last := lower
	if i := strings.LastIndex(lower, "."); i >= 0 {
		last = lower[i+1:]
	}

	for _, candidates := range [][]string{{lower}, {last}} {
		target := candidates[0]
		for _, entry := range semanticTaxonomy {
			for _, kw := range entry.Keywords {
				if strings.Contains(target, kw) {
					return entry.Name, entry.Unit
				}
			}
		}
	}
	return "", ""
}
