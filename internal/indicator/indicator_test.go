package indicator

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"momentum-scanner/internal/market"
)

func linear(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestSMA(t *testing.T) {
	require.InDelta(t, 4.0, SMA([]float64{1, 2, 3, 4, 5}, 3), 1e-9)
	require.True(t, math.IsNaN(SMA([]float64{1, 2}, 3)))
}

func TestWilderRSI(t *testing.T) {
	t.Run("only gains", func(t *testing.T) {
		require.Equal(t, 100.0, WilderRSI(linear(30, 10, 1), 14))
	})
	t.Run("flat", func(t *testing.T) {
		require.Equal(t, 50.0, WilderRSI(linear(30, 10, 0), 14))
	})
	t.Run("only losses", func(t *testing.T) {
		require.InDelta(t, 0.0, WilderRSI(linear(30, 100, -1), 14), 1e-9)
	})
	t.Run("alternating is balanced", func(t *testing.T) {
		series := make([]float64, 201)
		for i := range series {
			series[i] = 100
			if i%2 == 1 {
				series[i] = 101
			}
		}
		// ends on a down move, so slightly below 50
		rsi := WilderRSI(series, 14)
		require.Greater(t, rsi, 40.0)
		require.Less(t, rsi, 60.0)
	})
	t.Run("too short", func(t *testing.T) {
		require.True(t, math.IsNaN(WilderRSI([]float64{1, 2, 3}, 14)))
	})
}

func TestClassify(t *testing.T) {
	require.Equal(t, market.Bullish, Classify(120, 110, 100))
	require.Equal(t, market.Bearish, Classify(90, 110, 100))
	require.Equal(t, market.Neutral, Classify(105, 95, 100))
	require.Equal(t, market.Neutral, Classify(100, 110, 100))
}

func TestMomentumScoreUptrend(t *testing.T) {
	inst := market.Instrument{Name: "A", Symbol: "AAA"}
	closes := linear(200, 100, 0.5)

	rec, err := NewMomentum().Score(inst, closes)
	require.NoError(t, err)
	require.Equal(t, "A", rec.Asset)
	require.Equal(t, "AAA", rec.Symbol)
	require.Equal(t, market.Bullish, rec.Trend)
	require.Equal(t, 199.5, rec.Price)
	// mean of the last 50 closes: 175..199.5
	require.Equal(t, 187.25, rec.MovingAverage)
	require.Equal(t, 100.0, rec.Oscillator)
}

func TestMomentumScoreShortHistory(t *testing.T) {
	_, err := NewMomentum().Score(market.Instrument{Symbol: "X"}, linear(149, 1, 1))
	require.True(t, errors.Is(err, ErrInsufficientHistory))
}

func TestRound2(t *testing.T) {
	require.Equal(t, 1.24, Round2(1.235))
	require.Equal(t, -1.24, Round2(-1.235))
	require.Equal(t, 3.0, Round2(2.999))
}
