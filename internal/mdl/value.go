package mdl

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/neomind/edge/internal/neoerr"
)

// ValueKind tags the payload carried by a MetricValue.
type ValueKind string

const (
	KindInt    ValueKind = "int"
	KindFloat  ValueKind = "float"
	KindString ValueKind = "string"
	KindBool   ValueKind = "bool"
	KindBinary ValueKind = "binary"
	KindArray  ValueKind = "array"
	KindNull   ValueKind = "null"
)

// MetricValue is a tagged union over the value kinds a metric can carry.
// Only one of the typed fields is populated, selected by Kind.
type MetricValue struct {
	Kind   ValueKind     `json:"kind"`
	Int    int64         `json:"int,omitempty"`
	Float  float64       `json:"float,omitempty"`
	Str    string        `json:"str,omitempty"`
	Bool   bool          `json:"bool,omitempty"`
	Binary []byte        `json:"binary,omitempty"`
	Array  []MetricValue `json:"array,omitempty"`
}

func IntValue(v int64) MetricValue      { return MetricValue{Kind: KindInt, Int: v} }
func FloatValue(v float64) MetricValue  { return MetricValue{Kind: KindFloat, Float: v} }
func StringValue(v string) MetricValue  { return MetricValue{Kind: KindString, Str: v} }
func BoolValue(v bool) MetricValue      { return MetricValue{Kind: KindBool, Bool: v} }
func BinaryValue(v []byte) MetricValue  { return MetricValue{Kind: KindBinary, Binary: v} }
func ArrayValue(v []MetricValue) MetricValue { return MetricValue{Kind: KindArray, Array: v} }
func NullValue() MetricValue            { return MetricValue{Kind: KindNull} }

// AsFloat64 returns the best-effort numeric projection of v, used by the
// rule engine's ValueProvider and transform aggregations.
func (v MetricValue) AsFloat64() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	case KindBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	case KindString:
		f, err := strconv.ParseFloat(v.Str, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Native returns v unwrapped into a plain Go value, suitable for JSON
// re-encoding or template substitution.
func (v MetricValue) Native() any {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindString:
		return v.Str
	case KindBool:
		return v.Bool
	case KindBinary:
		return base64.StdEncoding.EncodeToString(v.Binary)
	case KindArray:
		out := make([]any, len(v.Array))
		for i, e := range v.Array {
			out[i] = e.Native()
		}
		return out
	default:
		return nil
	}
}

// FromNative wraps a decoded JSON value (as produced by encoding/json's
// interface{} decoding) into a MetricValue without a target type hint.
func FromNative(v any) MetricValue {
	switch t := v.(type) {
	case nil:
		return NullValue()
	case bool:
		return BoolValue(t)
	case float64:
		if t == float64(int64(t)) {
			return IntValue(int64(t))
		}
		return FloatValue(t)
	case string:
		return StringValue(t)
	case []any:
		arr := make([]MetricValue, len(t))
		for i, e := range t {
			arr[i] = FromNative(e)
		}
		return ArrayValue(arr)
	default:
		return StringValue(fmt.Sprintf("%v", t))
	}
}

// Coerce converts v to the declared data type using the shared coercion
// matrix: numeric<->numeric, string<->numeric/boolean when parsable, and
// any -> string.
func Coerce(v MetricValue, target DataType) (MetricValue, error) {
	switch target {
	case TypeInteger:
		switch v.Kind {
		case KindInt:
			return v, nil
		case KindFloat:
			return IntValue(int64(v.Float)), nil
		case KindString:
			i, err := strconv.ParseInt(v.Str, 10, 64)
			if err != nil {
				f, ferr := strconv.ParseFloat(v.Str, 64)
				if ferr != nil {
					return MetricValue{}, neoerr.Validationf("cannot coerce %q to integer", v.Str)
				}
				return IntValue(int64(f)), nil
			}
			return IntValue(i), nil
		case KindBool:
			if v.Bool {
				return IntValue(1), nil
			}
			return IntValue(0), nil
		}
	case TypeFloat:
		switch v.Kind {
		case KindFloat:
			return v, nil
		case KindInt:
			return FloatValue(float64(v.Int)), nil
		case KindString:
			f, err := strconv.ParseFloat(v.Str, 64)
			if err != nil {
				return MetricValue{}, neoerr.Validationf("cannot coerce %q to float", v.Str)
			}
			return FloatValue(f), nil
		case KindBool:
			if v.Bool {
				return FloatValue(1), nil
			}
			return FloatValue(0), nil
		}
	case TypeBoolean:
		switch v.Kind {
		case KindBool:
			return v, nil
		case KindString:
			b, err := strconv.ParseBool(v.Str)
			if err != nil {
				return MetricValue{}, neoerr.Validationf("cannot coerce %q to boolean", v.Str)
			}
			return BoolValue(b), nil
		case KindInt:
			return BoolValue(v.Int != 0), nil
		case KindFloat:
			return BoolValue(v.Float != 0), nil
		}
	case TypeString:
		return StringValue(toStringRepr(v)), nil
	case TypeBinary:
		if v.Kind == KindBinary {
			return v, nil
		}
		return BinaryValue([]byte(toStringRepr(v))), nil
	case TypeArray:
		if v.Kind == KindArray {
			return v, nil
		}
		return ArrayValue([]MetricValue{v}), nil
	case TypeEnum:
		return Coerce(v, TypeString)
	}
	return MetricValue{}, neoerr.Validationf("unsupported coercion target %q", target)
}

func toStringRepr(v MetricValue) string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindBinary:
		return base64.StdEncoding.EncodeToString(v.Binary)
	case KindArray:
		buf, _ := json.Marshal(v.Native())
		return string(buf)
	default:
		return ""
	}
}
