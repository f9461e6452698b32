package discovery

import (
	"fmt"
	"math"
	"strings"
)

const maxSampleValuesPerPath = 10

// pathObservation accumulates cross-sample statistics for one folded path.
type pathObservation struct {
	seenInSamples int
	numericValues []float64
	sampleValues  []any
	dataType      string
}

// DiscoverPaths folds numeric array indices into "[]" and aggregates
// per-path coverage, value ranges, and sample values across every parsed
// sample.
func DiscoverPaths(samples []DeviceSample) []DiscoveredMetric {
	obs := map[string]*pathObservation{}
	arrayLen := map[string]int{}
	total := 0

	for _, s := range samples {
		if s.Parsed == nil {
			continue
		}
		total++
		seen := map[string]bool{}
		walk(s.Parsed, "", obs, seen, arrayLen)
		for path := range seen {
			obs[path].seenInSamples++
		}
	}

	if total == 0 {
		return nil
	}

	var metrics []DiscoveredMetric
	for path, o := range obs {
		m := DiscoveredMetric{
			Path:     path,
			DataType: o.dataType,
			Coverage: float64(o.seenInSamples) / float64(total),
		}
		semName, unit := InferSemanticType(path)
		m.SemanticType = semName
		m.Unit = unit

		if len(o.numericValues) > 0 {
			m.ValueRange = summarizeNumeric(o.numericValues)
		}
		if n := len(o.sampleValues); n > 0 {
			if n > maxSampleValuesPerPath {
				n = maxSampleValuesPerPath
			}
			m.SampleValues = append([]any(nil), o.sampleValues[:n]...)
		}
		if arrayPrefix := enclosingArrayPrefix(path); arrayPrefix != "" {
			m.MaxLength = arrayLen[arrayPrefix]
		}
		metrics = append(metrics, m)
	}
	return metrics
}

// enclosingArrayPrefix returns the path up to and including its first
// "[]" fold, or "" if path does not cross an array.
func enclosingArrayPrefix(path string) string {
	if i := strings.Index(path, "[]"); i >= 0 {
		return path[:i]
	}
	return ""
}

// walk recursively enumerates JSON paths under v, folding numeric array
// indices into "[]" segments. seen collects every distinct folded path
// reached in this one sample, so each is credited at most once toward
// coverage. arrayLen records the longest observed length per array path.
func walk(v any, prefix string, obs map[string]*pathObservation, seen map[string]bool, arrayLen map[string]int) {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			p := k
			if prefix != "" {
				p = prefix + "." + k
			}
			walk(child, p, obs, seen, arrayLen)
		}
	case []any:
		if len(val) > arrayLen[prefix] {
			arrayLen[prefix] = len(val)
		}
		for _, child := range val {
			walk(child, prefix+"[]", obs, seen, arrayLen)
		}
	default:
		recordLeaf(obs, prefix, val, seen)
	}
}

func recordLeaf(obs map[string]*pathObservation, path string, val any, seen map[string]bool) {
	if path == "" {
		return
	}
	o := obs[path]
	if o == nil {
		o = &pathObservation{}
		obs[path] = o
	}
	seen[path] = true

	dt, numeric, num := classify(val)
	if o.dataType == "" {
		o.dataType = dt
	} else if o.dataType != dt {
		o.dataType = "mixed"
	}
	if numeric {
		o.numericValues = append(o.numericValues, num)
	}
	if len(o.sampleValues) < maxSampleValuesPerPath {
		o.sampleValues = append(o.sampleValues, val)
	}
}

func classify(v any) (dataType string, numeric bool, num float64) {
	switch t := v.(type) {
	case float64:
		return "float", true, t
	case bool:
		return "boolean", false, 0
	case string:
		return "string", false, 0
	case nil:
		return "null", false, 0
	default:
		return fmt.Sprintf("%T", t), false, 0
	}
}

func summarizeNumeric(values []float64) *ValueRange {
	min, max, sum := values[0], values[0], 0.0
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	avg := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - avg
		variance += d * d
	}
	variance /= float64(len(values))

	return &ValueRange{Min: min, Max: max, Avg: avg, StdDev: math.Sqrt(variance)}
}
