// Package report owns the on-disk scan artifacts: the ranked CSV report and its
// companion RSI chart. Every artifact gets a unique time-derived name and is
// created exclusively, so no two writers ever target the same file.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"momentum-scanner/internal/market"
)

const (
	// DefaultPrefix is the file name prefix of generated reports.
	DefaultPrefix = "Momentum_Report_"

	csvExt   = ".csv"
	chartExt = ".png"

	// sortable, and fine grained enough that two completions never share a name
	stampLayout = "20060102_150405.000000000"
)

var header = []string{"Asset", "Symbol", "Price", "Trend", "RSI", "MA50"}

// ErrMalformed is returned when a report cannot be parsed back.
var ErrMalformed = errors.New("report: malformed report")

// Store creates, lists and removes report artifacts in a single directory.
type Store struct {
	dir    string
	prefix string
	now    func() time.Time
	logger zerolog.Logger
}

// NewStore returns a store rooted at dir. An empty dir means the working directory.
func NewStore(dir, prefix string, logger zerolog.Logger) *Store {
	if dir == "" {
		dir = "."
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{
		dir:    dir,
		prefix: prefix,
		now:    time.Now,
		logger: logger.With().Str("component", "report_store").Logger(),
	}
}

// Dir returns the directory artifacts are written to.
func (s *Store) Dir() string { return s.dir }

// Pattern is the glob matching every artifact this store may have produced.
func (s *Store) Pattern() string {
	return filepath.Join(s.dir, s.prefix+"*")
}

// PurgeStale removes previously generated artifacts. It never fails: each
// removal error is logged and skipped. It returns the number of files removed.
func (s *Store) PurgeStale() int {
	matches, err := filepath.Glob(s.Pattern())
	if err != nil {
		s.logger.Warn().Err(err).Str("pattern", s.Pattern()).Msg("purge glob failed")
		return 0
	}

	removed := 0
	for _, path := range matches {
		ext := filepath.Ext(path)
		if ext != csvExt && ext != chartExt {
			continue
		}
		if err := os.Remove(path); err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("could not remove stale report")
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Debug().Int("removed", removed).Msg("purged stale reports")
	}
	return removed
}

// Write serialises records into a new uniquely named CSV file and returns its path.
func (s *Store) Write(records []market.MetricRecord) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	path := s.newPath(csvExt)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}

	if err := Encode(file, records); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close report: %w", err)
	}

	s.logger.Info().Str("path", path).Int("rows", len(records)).Msg("report written")
	return path, nil
}

// Resolve reports whether a previously returned artifact path still exists.
func (s *Store) Resolve(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Read parses a report written by Write.
func (s *Store) Read(path string) ([]market.MetricRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Decode(file)
}

func (s *Store) newPath(ext string) string {
	stamp := s.now().UTC().Format(stampLayout)
	return filepath.Join(s.dir, s.prefix+strings.Replace(stamp, ".", "_", 1)+ext)
}

// Encode writes records as CSV with a header row. Numbers carry two decimals.
func Encode(w io.Writer, records []market.MetricRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Asset,
			r.Symbol,
			formatFixed(r.Price),
			r.Trend.Label(),
			formatFixed(r.Oscillator),
			formatFixed(r.MovingAverage),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Decode reads records produced by Encode.
func Decode(r io.Reader) ([]market.MetricRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(header)

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(rows) == 0 || strings.Join(rows[0], ",") != strings.Join(header, ",") {
		return nil, fmt.Errorf("%w: missing header", ErrMalformed)
	}

	records := make([]market.MetricRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec, err := decodeRow(row)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformed, i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeRow(row []string) (market.MetricRecord, error) {
	trend, err := market.ParseTrend(row[3])
	if err != nil {
		return market.MetricRecord{}, err
	}
	nums := make([]float64, 0, 3)
	for _, idx := range []int{2, 4, 5} {
		v, err := strconv.ParseFloat(row[idx], 64)
		if err != nil {
			return market.MetricRecord{}, fmt.Errorf("column %s: %w", header[idx], err)
		}
		nums = append(nums, v)
	}
	return market.MetricRecord{
		Asset:         row[0],
		Symbol:        row[1],
		Price:         nums[0],
		Trend:         trend,
		Oscillator:    nums[1],
		MovingAverage: nums[2],
	}, nil
}

func formatFixed(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
