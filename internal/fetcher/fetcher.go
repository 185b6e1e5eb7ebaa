package fetcher

import (
	"context"
	"errors"
	"time"
)

// ErrNoData indicates the provider answered but returned no usable series at all.
var ErrNoData = errors.New("fetcher: provider returned no data")

// Bar is one daily observation.
type Bar struct {
	Date  time.Time
	Close float64
}

// SeriesProvider retrieves daily series for a set of symbols in as few round trips as possible.
// Symbols the provider knows nothing about are absent from the returned map.
type SeriesProvider interface {
	FetchSeries(ctx context.Context, symbols []string) (map[string][]Bar, error)
}

// Closes extracts the close prices of a series, oldest first.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
