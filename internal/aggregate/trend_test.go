package aggregate

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMovingAverage(t *testing.T) {
	ma := MovingAverage([]float64{100, 110, 120, 130}, 2)
	require.Len(t, ma, 4)
	assert.True(t, math.IsNaN(ma[0]))
	assert.Equal(t, 105.0, ma[1])
	assert.Equal(t, 115.0, ma[2])
	assert.Equal(t, 125.0, ma[3])

	// short series and bad periods yield zeros, not panics
	assert.Equal(t, []float64{0, 0}, MovingAverage([]float64{100, 110}, 5))
	assert.Empty(t, MovingAverage(nil, 3))
}

func TestExponentialMovingAverage(t *testing.T) {
	ema := ExponentialMovingAverage([]float64{100, 100, 100, 200}, 2)
	require.Len(t, ema, 4)
	assert.True(t, math.IsNaN(ema[0]))
	assert.Equal(t, 100.0, ema[1])
	assert.Equal(t, 100.0, ema[2])
	// multiplier for period 2 is 2/3
	assert.InDelta(t, 166.67, ema[3], 0.01)
}

func TestAnalyzeTrend(t *testing.T) {
	rising := AnalyzeTrend([]float64{100, 105, 110, 118, 125, 140})
	assert.Equal(t, "rising", rising.Direction)
	assert.Equal(t, 140.0, rising.Latest)
	assert.Equal(t, 40.0, rising.ChangeAbs)
	assert.InDelta(t, 40.0, rising.ChangePct, 0.01)

	falling := AnalyzeTrend([]float64{200, 180, 160, 140, 120, 100})
	assert.Equal(t, "falling", falling.Direction)

	flat := AnalyzeTrend([]float64{100, 101, 100, 99, 100})
	assert.Equal(t, "flat", flat.Direction)

	empty := AnalyzeTrend(nil)
	assert.Equal(t, "flat", empty.Direction)
	assert.Zero(t, empty.Latest)
}

func TestAnalyzeTrendMarshalsToJSON(t *testing.T) {
	trend := AnalyzeTrend([]float64{100, 110})
	for _, v := range trend.MovingAverage {
		assert.False(t, math.IsNaN(v))
	}

	_, err := json.Marshal(trend)
	require.NoError(t, err)

	_, err = json.Marshal(AnalyzeTrend([]float64{100, 105, 110, 118, 125, 140}))
	require.NoError(t, err)
}
