package market

import (
	"fmt"
	"sort"
	"strings"
)

// Instrument identifies one tradable asset in the scan universe.
type Instrument struct {
	Name   string `mapstructure:"name" json:"name"`
	Symbol string `mapstructure:"symbol" json:"symbol"`
}

// Trend is the stage classification assigned by a scorer.
type Trend string

const (
	Bullish Trend = "Bullish"
	Neutral Trend = "Neutral"
	Bearish Trend = "Bearish"
)

// Label returns the human readable stage label used in reports.
func (t Trend) Label() string {
	switch t {
	case Bullish:
		return "STAGE 2 (BUY)"
	case Bearish:
		return "Stage 4 (Avoid)"
	default:
		return "Consolidating"
	}
}

// ParseTrend accepts either the enum value or the report label.
func ParseTrend(s string) (Trend, error) {
	v := strings.TrimSpace(s)
	for _, t := range []Trend{Bullish, Neutral, Bearish} {
		if strings.EqualFold(v, string(t)) || strings.EqualFold(v, t.Label()) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown trend %q", s)
}

// MetricRecord is the scored snapshot of one instrument.
type MetricRecord struct {
	Asset         string  `json:"asset"`
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Trend         Trend   `json:"trend"`
	Oscillator    float64 `json:"oscillator"`
	MovingAverage float64 `json:"movingAverage"`
}

// Rank orders records by descending oscillator value. Ties keep their input order.
func Rank(records []MetricRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Oscillator > records[j].Oscillator
	})
}

// DefaultUniverse is the instrument list scanned when configuration supplies none.
func DefaultUniverse() []Instrument {
	return []Instrument{
		{Name: "Gold BeES", Symbol: "GOLDBEES.NS"},
		{Name: "Silver BeES", Symbol: "SILVERBEES.NS"},
		{Name: "Hindustan Copper", Symbol: "HINDCOPPER.NS"},
		{Name: "MAFANG ETF", Symbol: "MAFANG.NS"},
		{Name: "Nifty Alpha 50", Symbol: "ALPHALOW.NS"},
		{Name: "UTI Momentum 30", Symbol: "UTIMOMENTUM.NS"},
		{Name: "CPSE ETF", Symbol: "CPSEETF.NS"},
		{Name: "Nifty IT ETF", Symbol: "ITBEES.NS"},
		{Name: "Nifty Bank ETF", Symbol: "BANKBEES.NS"},
		{Name: "Nifty Auto ETF", Symbol: "AUTOBEES.NS"},
	}
}

// Symbols extracts the ticker list of a universe, preserving order.
func Symbols(universe []Instrument) []string {
	out := make([]string, 0, len(universe))
	for _, inst := range universe {
		out = append(out, inst.Symbol)
	}
	return out
}
