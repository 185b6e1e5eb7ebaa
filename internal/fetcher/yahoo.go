package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	sparkPath        = "/v7/finance/spark"
	defaultBaseURL   = "https://query1.finance.yahoo.com"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	defaultBatchSize = 20
)

// YahooOptions parameterise the Yahoo Finance spark fetcher.
type YahooOptions struct {
	BaseURL   string
	CookieURL string
	// CrumbURL enables cookie + crumb authentication when set.
	CrumbURL  string
	Range     string
	Interval  string
	BatchSize int
	Workers   int
	Timeout   time.Duration
	UserAgent string
	Client    *http.Client
}

// Yahoo fetches daily closes for many symbols per request from the v7 spark API.
type Yahoo struct {
	opts    YahooOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string

	mu    sync.Mutex
	crumb string
}

// NewYahoo constructs a spark fetcher.
func NewYahoo(opts YahooOptions, logger zerolog.Logger) *Yahoo {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Range == "" {
		opts.Range = "1y"
	}
	if opts.Interval == "" {
		opts.Interval = "1d"
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = defaultUserAgent
	}

	client := opts.Client
	if client == nil {
		jar, _ := cookiejar.New(nil)
		client = &http.Client{Jar: jar, Timeout: opts.Timeout}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Yahoo{
		opts:    opts,
		logger:  logger.With().Str("component", "yahoo_fetcher").Logger(),
		client:  client,
		baseURL: baseURL,
	}
}

// FetchSeries implements SeriesProvider. Symbols are split into batches that are
// fetched concurrently; any failing batch fails the whole call.
func (y *Yahoo) FetchSeries(ctx context.Context, symbols []string) (map[string][]Bar, error) {
	if len(symbols) == 0 {
		return nil, errors.New("fetcher: no symbols requested")
	}

	if err := y.ensureCrumb(ctx); err != nil {
		return nil, fmt.Errorf("yahoo auth: %w", err)
	}

	batches := chunk(symbols, y.opts.BatchSize)
	results := make([]map[string][]Bar, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(y.opts.Workers)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			series, err := y.fetchBatch(gctx, batch)
			if err != nil {
				return fmt.Errorf("batch %d (%s): %w", i, strings.Join(batch, ","), err)
			}
			results[i] = series
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]Bar, len(symbols))
	for _, r := range results {
		for sym, bars := range r {
			out[sym] = bars
		}
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}

	y.logger.Info().Int("symbols", len(symbols)).Int("batches", len(batches)).Int("returned", len(out)).Msg("fetched series")
	return out, nil
}

func (y *Yahoo) fetchBatch(ctx context.Context, symbols []string) (map[string][]Bar, error) {
	q := url.Values{}
	q.Set("symbols", strings.Join(symbols, ","))
	q.Set("range", y.opts.Range)
	q.Set("interval", y.opts.Interval)
	if crumb := y.currentCrumb(); crumb != "" {
		q.Set("crumb", crumb)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+sparkPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", y.opts.UserAgent)

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			y.mu.Lock()
			y.crumb = ""
			y.mu.Unlock()
		}
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	var spark sparkResponse
	if err := json.Unmarshal(payload, &spark); err != nil {
		return nil, fmt.Errorf("parse spark response: %w", err)
	}
	if spark.Spark.Error != nil {
		return nil, fmt.Errorf("yahoo spark error: %s: %s", spark.Spark.Error.Code, spark.Spark.Error.Description)
	}

	out := make(map[string][]Bar, len(spark.Spark.Result))
	for _, res := range spark.Spark.Result {
		if len(res.Response) == 0 {
			continue
		}
		bars := toBars(res.Response[0])
		if len(bars) == 0 {
			y.logger.Warn().Str("symbol", res.Symbol).Msg("no closes returned")
			continue
		}
		out[res.Symbol] = bars
	}
	return out, nil
}

// ensureCrumb fetches a session cookie and crumb once and caches it.
func (y *Yahoo) ensureCrumb(ctx context.Context) error {
	if y.opts.CrumbURL == "" {
		return nil
	}

	y.mu.Lock()
	defer y.mu.Unlock()
	if y.crumb != "" {
		return nil
	}

	if y.opts.CookieURL != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.opts.CookieURL, nil)
		if err != nil {
			return fmt.Errorf("build cookie request: %w", err)
		}
		req.Header.Set("User-Agent", y.opts.UserAgent)
		resp, err := y.client.Do(req)
		if err != nil {
			return fmt.Errorf("fetch cookie: %w", err)
		}
		_ = resp.Body.Close()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.opts.CrumbURL, nil)
	if err != nil {
		return fmt.Errorf("build crumb request: %w", err)
	}
	req.Header.Set("User-Agent", y.opts.UserAgent)
	resp, err := y.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch crumb: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("crumb endpoint returned HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read crumb: %w", err)
	}
	crumb := strings.TrimSpace(string(body))
	if crumb == "" {
		return errors.New("empty crumb received")
	}

	y.crumb = crumb
	y.logger.Debug().Int("crumb_len", len(crumb)).Msg("obtained crumb")
	return nil
}

func (y *Yahoo) currentCrumb() string {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.crumb
}

type sparkResponse struct {
	Spark struct {
		Result []struct {
			Symbol   string        `json:"symbol"`
			Response []sparkSeries `json:"response"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"spark"`
}

type sparkSeries struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

// toBars pairs timestamps with closes, dropping null and non-finite closes.
func toBars(s sparkSeries) []Bar {
	if len(s.Indicators.Quote) == 0 {
		return nil
	}
	closes := s.Indicators.Quote[0].Close
	n := min(len(s.Timestamp), len(closes))
	bars := make([]Bar, 0, n)
	for i := 0; i < n; i++ {
		c := closes[i]
		if c == nil || math.IsNaN(*c) || math.IsInf(*c, 0) {
			continue
		}
		bars = append(bars, Bar{
			Date:  time.Unix(s.Timestamp[i], 0).UTC().Truncate(24 * time.Hour),
			Close: *c,
		})
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars
}

func chunk(symbols []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(symbols); start += size {
		end := min(start+size, len(symbols))
		out = append(out, symbols[start:end])
	}
	return out
}

type errorResponse struct {
	Finance struct {
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"finance"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.Finance.Error != nil {
		if apiErr.Finance.Error.Description != "" {
			return fmt.Errorf("yahoo api error (%d): %s", status, apiErr.Finance.Error.Description)
		}
		return fmt.Errorf("yahoo api error (%d): %s", status, apiErr.Finance.Error.Code)
	}
	if len(payload) > 0 {
		return fmt.Errorf("yahoo api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("yahoo api error (%d)", status)
}

var _ SeriesProvider = (*Yahoo)(nil)
