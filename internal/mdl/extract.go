package mdl

import (
	"encoding/base64"
	"strconv"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/neomind/edge/internal/neoerr"
)

// ParseMetricValue decodes raw payload bytes into a value for the given
// metric: JSON-first, traversing the metric's dot-path name (gjson treats
// numeric path segments as array indices natively); if JSON decoding
// fails, the raw bytes are interpreted directly by the declared type.
func ParseMetricValue(m MetricDefinition, raw []byte) (MetricValue, error) {
	if gjson.ValidBytes(raw) {
		result := gjson.GetBytes(raw, m.Name)
		if result.Exists() {
			v, err := Coerce(nativeFromGJSON(result), m.DataType)
			if err != nil {
				return v, err
			}
			if err := validateEnumValue(m, v); err != nil {
				return v, err
			}
			return v, nil
		}
		// valid JSON but the path is absent: fall through to raw
		// interpretation so required-but-missing metrics still get a
		// best-effort value from the whole payload.
	}
	v, err := parseRawByType(m.DataType, raw)
	if err != nil {
		return v, err
	}
	if err := validateEnumValue(m, v); err != nil {
		return v, err
	}
	return v, nil
}

func nativeFromGJSON(r gjson.Result) MetricValue {
	switch r.Type {
	case gjson.Null:
		return NullValue()
	case gjson.False:
		return BoolValue(false)
	case gjson.True:
		return BoolValue(true)
	case gjson.Number:
		if r.Num == float64(int64(r.Num)) {
			return IntValue(int64(r.Num))
		}
		return FloatValue(r.Num)
	case gjson.String:
		return StringValue(r.Str)
	case gjson.JSON:
		if r.IsArray() {
			var arr []MetricValue
			r.ForEach(func(_, v gjson.Result) bool {
				arr = append(arr, nativeFromGJSON(v))
				return true
			})
			return ArrayValue(arr)
		}
		return StringValue(r.Raw)
	default:
		return StringValue(r.Raw)
	}
}

func parseRawByType(dt DataType, raw []byte) (MetricValue, error) {
	switch dt {
	case TypeString:
		if utf8.Valid(raw) {
			return StringValue(string(raw)), nil
		}
		return StringValue(base64.StdEncoding.EncodeToString(raw)), nil
	case TypeInteger:
		i, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return MetricValue{}, neoerr.Validationf("cannot parse raw bytes as integer: %v", err)
		}
		return IntValue(i), nil
	case TypeFloat:
		f, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			return MetricValue{}, neoerr.Validationf("cannot parse raw bytes as float: %v", err)
		}
		return FloatValue(f), nil
	case TypeBoolean:
		b, err := strconv.ParseBool(string(raw))
		if err != nil {
			return MetricValue{}, neoerr.Validationf("cannot parse raw bytes as boolean: %v", err)
		}
		return BoolValue(b), nil
	case TypeBinary:
		return BinaryValue(raw), nil
	default:
		if utf8.Valid(raw) {
			return StringValue(string(raw)), nil
		}
		return BinaryValue(raw), nil
	}
}

// RawAsMetric renders raw payload bytes as the always-emitted "_raw"
// metric: utf-8 string where possible, else base64.
func RawAsMetric(raw []byte) MetricValue {
	if utf8.Valid(raw) {
		return StringValue(string(raw))
	}
	return StringValue(base64.StdEncoding.EncodeToString(raw))
}
