package history

import (
	"math"
	"time"

	"github.com/perfgate/perfgate/internal/perf"
)

const (
	DirectionIncreasing = "increasing"
	DirectionDecreasing = "decreasing"
	DirectionStable     = "stable"
)

// stableSlopeBound classifies a fit as stable when the slope magnitude
// does not exceed it.
const stableSlopeBound = 0.1

// TrendResult is derived on demand and never persisted.
type TrendResult struct {
	Direction      string  `json:"direction"`
	Slope          float64 `json:"slope"`
	AbsoluteChange float64 `json:"absolute_change"`
	PercentChange  float64 `json:"percent_change"`
	First          float64 `json:"first"`
	Last           float64 `json:"last"`
	SampleCount    int     `json:"sample_count"`
}

// Trend fits an ordinary-least-squares line to metricPath over the
// entries whose timestamps fall within window of now. The regression
// runs over the sample index, not elapsed time, so irregular sampling
// distorts slope magnitude; direction is the signal consumers rely on.
// Fewer than two usable samples yields nil.
func Trend(entries []Entry, metricPath string, window time.Duration, now time.Time) *TrendResult {
	cutoff := now.Add(-window)

	var values []float64
	for _, e := range entries {
		if window > 0 && !e.Timestamp.After(cutoff) {
			continue
		}
		if v, ok := perf.MetricValue(e.Snapshot, metricPath); ok {
			values = append(values, v)
		}
	}

	if len(values) < 2 {
		return nil
	}

	slope := olsSlope(values)

	first := values[0]
	last := values[len(values)-1]

	var percent float64
	if first != 0 {
		percent = (last - first) / first * 100
	}

	direction := DirectionStable
	if math.Abs(slope) > stableSlopeBound {
		if slope > 0 {
			direction = DirectionIncreasing
		} else {
			direction = DirectionDecreasing
		}
	}

	return &TrendResult{
		Direction:      direction,
		Slope:          slope,
		AbsoluteChange: last - first,
		PercentChange:  percent,
		First:          first,
		Last:           last,
		SampleCount:    len(values),
	}
}

func olsSlope(values []float64) float64 {
	n := float64(len(values))

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}

	return (n*sumXY - sumX*sumY) / denom
}
