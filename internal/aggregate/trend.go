package aggregate

import "math"

// Trend summarizes how a price series has moved: latest value against
// its moving averages plus total change over the window. MovingAverage
// only holds positions with a full window; encoding/json rejects the
// NaN padding the raw series carries.
type Trend struct {
	Latest        float64   `json:"latest"`
	ChangeAbs     float64   `json:"change_abs"`
	ChangePct     float64   `json:"change_pct"`
	ShortMA       float64   `json:"short_ma"`
	LongMA        float64   `json:"long_ma"`
	Direction     string    `json:"direction"`
	MovingAverage []float64 `json:"moving_average,omitempty"`
}

// MovingAverage computes a simple moving average over the series.
// Positions before a full window are NaN.
func MovingAverage(prices []float64, period int) []float64 {
	result := make([]float64, len(prices))
	if len(prices) < period || period <= 0 {
		return result
	}

	for i := range prices {
		if i < period-1 {
			result[i] = math.NaN()
			continue
		}
		sum := 0.0
		for j := 0; j < period; j++ {
			sum += prices[i-period+1+j]
		}
		result[i] = sum / float64(period)
	}
	return result
}

// ExponentialMovingAverage weights recent prices more heavily. The first
// full window is seeded with the simple average.
func ExponentialMovingAverage(prices []float64, period int) []float64 {
	result := make([]float64, len(prices))
	if len(prices) < period || period <= 0 {
		return result
	}

	multiplier := 2.0 / (float64(period) + 1)
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	result[period-1] = sum / float64(period)

	for i := period; i < len(prices); i++ {
		result[i] = (prices[i] * multiplier) + (result[i-1] * (1 - multiplier))
	}
	for i := 0; i < period-1; i++ {
		result[i] = math.NaN()
	}
	return result
}

// AnalyzeTrend reads a chronological price series and classifies it as
// rising, falling, or flat by comparing a short tail average against a
// long one. Windows shrink with the series so short stays strictly
// shorter than long whenever there are at least two points.
func AnalyzeTrend(prices []float64) Trend {
	if len(prices) == 0 {
		return Trend{Direction: "flat"}
	}

	latest := prices[len(prices)-1]
	first := prices[0]

	trend := Trend{
		Latest:    latest,
		ChangeAbs: latest - first,
	}
	if first > 0 {
		trend.ChangePct = (latest - first) / first * 100
	}

	shortWin := min(6, (len(prices)+1)/2)
	longWin := min(24, len(prices))
	trend.ShortMA = tailAverage(prices, shortWin)
	trend.LongMA = tailAverage(prices, longWin)

	switch {
	case trend.ShortMA > trend.LongMA*1.02:
		trend.Direction = "rising"
	case trend.ShortMA < trend.LongMA*0.98:
		trend.Direction = "falling"
	default:
		trend.Direction = "flat"
	}

	for _, v := range MovingAverage(prices, min(6, len(prices))) {
		if !math.IsNaN(v) {
			trend.MovingAverage = append(trend.MovingAverage, v)
		}
	}
	return trend
}

func tailAverage(prices []float64, window int) float64 {
	if window > len(prices) {
		window = len(prices)
	}
	if window == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range prices[len(prices)-window:] {
		sum += p
	}
	return sum / float64(window)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
