package rules

import "github.com/neomind/edge/internal/neoerr"

// ValueProvider yields the current f64 value for (device_id, metric);
// concrete providers read from the MQTT adapter's metric cache or the
// time-series store's Latest.
type ValueProvider interface {
	LatestFloat(deviceID, metric string) (float64, bool)
}

// resolveDeviceID maps a possibly human-typed device name to its
// canonical id via the rule's Source side-channel, if present.
func resolveDeviceID(r *Rule, name string) string {
	if r.Source == nil {
		return name
	}
	if id, ok := r.Source.DeviceNames[name]; ok {
		return id
	}
	return name
}

// EvaluateCondition evaluates c against live values, resolving device
// names through the owning rule's Source map.
func EvaluateCondition(r *Rule, c Condition, vp ValueProvider) (bool, error) {
	switch c.Kind {
	case CondCompare:
		v, ok := vp.LatestFloat(resolveDeviceID(r, c.DeviceID), c.Metric)
		if !ok {
			return false, nil
		}
		return compare(v, c.Op, c.Value), nil

	case CondRange:
		v, ok := vp.LatestFloat(resolveDeviceID(r, c.DeviceID), c.Metric)
		if !ok {
			return false, nil
		}
		return v >= c.Min && v <= c.Max, nil

	case CondAnd:
		for _, child := range c.Children {
			ok, err := EvaluateCondition(r, child, vp)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case CondOr:
		for _, child := range c.Children {
			ok, err := EvaluateCondition(r, child, vp)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case CondNot:
		if c.Child == nil {
			return false, neoerr.Validation("NOT condition missing child")
		}
		ok, err := EvaluateCondition(r, *c.Child, vp)
		if err != nil {
			return false, err
		}
		return !ok, nil

	default:
		return false, neoerr.Validationf("unknown condition kind %q", c.Kind)
	}
}

func compare(v float64, op CompareOp, target float64) bool {
	switch op {
	case OpGT:
		return v > target
	case OpGE:
		return v >= target
	case OpLT:
		return v < target
	case OpLE:
		return v <= target
	case OpEQ:
		return v == target
	case OpNE:
		return v != target
	default:
		return false
	}
}
