package transform

import (
	"math"
	"sort"

	"github.com/neomind/edge/internal/neoerr"
)

// aggregate applies one of the Reduce/GroupBy aggregation functions over
// a slice of numeric samples, in emission order (trend/delta/rate treat
// the slice as a time-ordered sequence). count is the size of the source
// group/array before numeric extraction; AggCount reports that directly
// rather than len(values), since a count over non-numeric items (objects,
// strings) must not depend on asFloat succeeding.
func aggregate(using Aggregation, values []float64, count int) (float64, error) {
	if len(values) == 0 && using != AggCount {
		return 0, neoerr.Validationf("aggregation %q over empty series", using)
	}

	switch using {
	case AggCount:
		return float64(count), nil
	case AggSum:
		var s float64
		for _, v := range values {
			s += v
		}
		return s, nil
	case AggMean:
		var s float64
		for _, v := range values {
			s += v
		}
		return s / float64(len(values)), nil
	case AggMax:
		m := values[0]
		for _, v := range values[1:] {
			if v > m {
				m = v
			}
		}
		return m, nil
	case AggMin:
		m := values[0]
		for _, v := range values[1:] {
			if v < m {
				m = v
			}
		}
		return m, nil
	case AggMedian:
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		n := len(sorted)
		if n%2 == 1 {
			return sorted[n/2], nil
		}
		return (sorted[n/2-1] + sorted[n/2]) / 2, nil
	case AggStddev:
		mean, _ := aggregate(AggMean, values, len(values))
		var sumSq float64
		for _, v := range values {
			d := v - mean
			sumSq += d * d
		}
		return math.Sqrt(sumSq / float64(len(values))), nil
	case AggFirst:
		return values[0], nil
	case AggLast:
		return values[len(values)-1], nil
	case AggDelta:
		return values[len(values)-1] - values[0], nil
	case AggTrend:
		// simple linear regression slope over index-ordered samples
		n := float64(len(values))
		if n < 2 {
			return 0, nil
		}
		var sumX, sumY, sumXY, sumXX float64
		for i, v := range values {
			x := float64(i)
			sumX += x
			sumY += v
			sumXY += x * v
			sumXX += x * x
		}
		denom := n*sumXX - sumX*sumX
		if denom == 0 {
			return 0, nil
		}
		return (n*sumXY - sumX*sumY) / denom, nil
	case AggRate:
		if len(values) < 2 {
			return 0, nil
		}
		return (values[len(values)-1] - values[0]) / float64(len(values)-1), nil
	default:
		return 0, neoerr.Validationf("unknown aggregation %q", using)
	}
}
