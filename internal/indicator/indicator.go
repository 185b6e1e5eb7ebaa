// Package indicator scores a close-price series into a market.MetricRecord:
// simple moving averages, Wilder's RSI and a stage classification.
package indicator

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"momentum-scanner/internal/market"
)

// ErrInsufficientHistory is returned when a series is shorter than the longest window.
var ErrInsufficientHistory = errors.New("indicator: insufficient history")

// Scorer turns an instrument's closes (oldest first) into a metric record.
type Scorer interface {
	Score(inst market.Instrument, closes []float64) (market.MetricRecord, error)
}

// Momentum is the default scorer: price vs. MA(short) vs. MA(long) staging plus RSI.
type Momentum struct {
	ShortWindow int
	LongWindow  int
	RSIPeriod   int
}

// NewMomentum returns a scorer with the 50/150/14 windows.
func NewMomentum() Momentum {
	return Momentum{ShortWindow: 50, LongWindow: 150, RSIPeriod: 14}
}

// Score implements Scorer.
func (m Momentum) Score(inst market.Instrument, closes []float64) (market.MetricRecord, error) {
	if m.ShortWindow <= 0 || m.LongWindow <= 0 || m.RSIPeriod <= 0 {
		return market.MetricRecord{}, fmt.Errorf("indicator: windows must be positive")
	}
	need := max(m.LongWindow, m.ShortWindow, m.RSIPeriod+1)
	if len(closes) < need {
		return market.MetricRecord{}, fmt.Errorf("%w: %s has %d closes, need %d", ErrInsufficientHistory, inst.Symbol, len(closes), need)
	}

	price := closes[len(closes)-1]
	short := SMA(closes, m.ShortWindow)
	long := SMA(closes, m.LongWindow)
	rsi := WilderRSI(closes, m.RSIPeriod)

	for _, v := range []float64{price, short, long, rsi} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return market.MetricRecord{}, fmt.Errorf("indicator: non-finite value for %s", inst.Symbol)
		}
	}

	return market.MetricRecord{
		Asset:         inst.Name,
		Symbol:        inst.Symbol,
		Price:         Round2(price),
		Trend:         Classify(price, short, long),
		Oscillator:    Round2(rsi),
		MovingAverage: Round2(short),
	}, nil
}

// Classify stages a series from its last price and two moving averages.
func Classify(price, short, long float64) market.Trend {
	switch {
	case price > long && short > long:
		return market.Bullish
	case price < long:
		return market.Bearish
	default:
		return market.Neutral
	}
}

// SMA is the mean of the last n values. It returns NaN when fewer than n values exist.
func SMA(values []float64, n int) float64 {
	if n <= 0 || len(values) < n {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range values[len(values)-n:] {
		sum += v
	}
	return sum / float64(n)
}

// WilderRSI computes the relative strength index of the last bar using Wilder
// smoothing (alpha = 1/period) seeded from the first observation. A flat series
// scores 50; a series without losses scores 100.
func WilderRSI(values []float64, period int) float64 {
	if period <= 0 || len(values) < period+1 {
		return math.NaN()
	}
	alpha := 1 / float64(period)

	// the first difference is undefined and counts as no movement
	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else if delta < 0 {
			loss = -delta
		}
		avgGain = (1-alpha)*avgGain + alpha*gain
		avgLoss = (1-alpha)*avgLoss + alpha*loss
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

var _ Scorer = Momentum{}
