package mqttadapter

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"unicode/utf8"

	"github.com/neomind/edge/internal/mdl"
)

var errNotObject = errors.New("mqttadapter: not a JSON object")

// DecodedMetric is one metric=value pair produced by decoding a payload.
type DecodedMetric struct {
	Metric string
	Value  mdl.MetricValue
}

// DecodePayload implements the §4.4/§6 payload decode rule: JSON-first; a
// JSON object yields one metric per key, in object key iteration order;
// a JSON scalar or non-JSON payload yields a single "value" metric; the
// raw bytes are always additionally emitted as "_raw" (utf-8 where
// possible, else base64).
func DecodePayload(raw []byte) []DecodedMetric {
	out := []DecodedMetric{{Metric: "_raw", Value: rawMetric(raw)}}

	if looksLikeObject(raw) {
		keys, values, err := decodeObjectInOrder(raw)
		if err == nil {
			for i, k := range keys {
				out = append(out, DecodedMetric{Metric: k, Value: mdl.FromNative(values[i])})
			}
			return out
		}
	}

	var scalar any
	if err := json.Unmarshal(raw, &scalar); err == nil {
		out = append(out, DecodedMetric{Metric: "value", Value: mdl.FromNative(scalar)})
		return out
	}

	out = append(out, DecodedMetric{Metric: "value", Value: rawMetric(raw)})
	return out
}

func rawMetric(raw []byte) mdl.MetricValue {
	if utf8.Valid(raw) {
		return mdl.StringValue(string(raw))
	}
	return mdl.StringValue(base64.StdEncoding.EncodeToString(raw))
}

func looksLikeObject(raw []byte) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}

// decodeObjectInOrder walks the top-level keys of a JSON object in source
// order, since encoding/json's map decoding does not preserve it.
func decodeObjectInOrder(raw []byte) ([]string, []any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, errNotObject
	}

	var keys []string
	var values []any
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, _ := keyTok.(string)

		var val any
		if err := dec.Decode(&val); err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		values = append(values, val)
	}
	// consume closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, values, nil
}
