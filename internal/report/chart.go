package report

import (
	"errors"
	"fmt"
	"os"

	chart "github.com/wcharczuk/go-chart/v2"

	"momentum-scanner/internal/market"
)

// WriteChart renders the ranked RSI values as a bar chart next to the CSV report.
func (s *Store) WriteChart(records []market.MetricRecord) (string, error) {
	if len(records) == 0 {
		return "", errors.New("report: nothing to chart")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	bars := make([]chart.Value, 0, len(records))
	for _, r := range records {
		bars = append(bars, chart.Value{
			Label: r.Symbol,
			Value: r.Oscillator,
			Style: trendStyle(r.Trend),
		})
	}

	graph := chart.BarChart{
		Title:    "RSI ranking",
		Width:      max(640, 100*len(records)+120),
		Height:     480,
		BarWidth:   50,
		BarSpacing: 30,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: 100},
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		Bars: bars,
	}

	path := s.newPath(chartExt)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create chart: %w", err)
	}
	if err := graph.Render(chart.PNG, file); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("render chart: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close chart: %w", err)
	}

	s.logger.Debug().Str("path", path).Msg("chart written")
	return path, nil
}

func trendStyle(t market.Trend) chart.Style {
	color := chart.ColorAlternateGray
	switch t {
	case market.Bullish:
		color = chart.ColorGreen
	case market.Bearish:
		color = chart.ColorRed
	}
	return chart.Style{FillColor: color, StrokeColor: color}
}
