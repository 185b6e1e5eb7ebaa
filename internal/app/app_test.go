package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"momentum-scanner/internal/config"
	"momentum-scanner/internal/market"
	"momentum-scanner/internal/scheduler"
	"momentum-scanner/internal/service"
	"momentum-scanner/internal/status"
	"momentum-scanner/internal/storage"
)

// sparkServer serves n rising daily closes for every requested symbol.
func sparkServer(t *testing.T, n int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		b.WriteString(`{"spark":{"result":[`)
		for i, sym := range strings.Split(r.URL.Query().Get("symbols"), ",") {
			if i > 0 {
				b.WriteString(",")
			}
			ts := make([]string, n)
			cs := make([]string, n)
			for j := 0; j < n; j++ {
				ts[j] = fmt.Sprint(1704153600 + int64(j)*86400)
				cs[j] = fmt.Sprint(100 + float64(j)*0.5 + float64(i))
			}
			fmt.Fprintf(&b, `{"symbol":%q,"response":[{"timestamp":[%s],"indicators":{"quote":[{"close":[%s]}]}}]}`,
				sym, strings.Join(ts, ","), strings.Join(cs, ","))
		}
		b.WriteString(`],"error":null}}`)
		_, _ = w.Write([]byte(b.String()))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	return &config.Config{
		Scan: config.ScanConfig{
			Universe: []market.Instrument{
				{Name: "Gold BeES", Symbol: "GOLDBEES.NS"},
				{Name: "Nifty IT ETF", Symbol: "ITBEES.NS"},
			},
			MinHistory:   150,
			ShortWindow:  50,
			LongWindow:   150,
			RSIPeriod:    14,
			FetchTimeout: 5 * time.Second,
		},
		Report: config.ReportConfig{Dir: t.TempDir(), Prefix: "Momentum_Report_", Chart: true},
		Yahoo:  config.YahooConfig{BaseURL: baseURL, BatchSize: 20, Workers: 2, RequestTimeout: 5 * time.Second},
	}
}

func TestScanOnceTable(t *testing.T) {
	srv := sparkServer(t, 200)
	a := NewApp(testConfig(t, srv.URL), zerolog.Nop())

	var out bytes.Buffer
	require.NoError(t, a.scanOnce(context.Background(), ScanOptions{}, &out))

	text := out.String()
	require.Contains(t, text, "GOLDBEES.NS")
	require.Contains(t, text, "ITBEES.NS")
	require.Contains(t, text, "STAGE 2 (BUY)")
	require.Contains(t, text, "report: ")

	entries, err := os.ReadDir(a.Config.Report.Dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestScanOnceJSON(t *testing.T) {
	srv := sparkServer(t, 200)
	a := NewApp(testConfig(t, srv.URL), zerolog.Nop())

	var out bytes.Buffer
	require.NoError(t, a.scanOnce(context.Background(), ScanOptions{JSON: true}, &out))

	var snap status.JobStatus
	require.NoError(t, json.Unmarshal(out.Bytes(), &snap))
	require.False(t, snap.Running)
	require.Len(t, snap.Results, 2)
	require.Equal(t, status.Progress{Done: 2, Total: 2}, snap.Progress)
	require.NotNil(t, snap.ArtifactPath)
}

func TestScanOnceShortHistory(t *testing.T) {
	srv := sparkServer(t, 100)
	a := NewApp(testConfig(t, srv.URL), zerolog.Nop())

	var out bytes.Buffer
	require.NoError(t, a.scanOnce(context.Background(), ScanOptions{}, &out))
	require.Contains(t, out.String(), "no instrument had enough history")
}

func TestScanOnceProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	a := NewApp(testConfig(t, srv.URL), zerolog.Nop())

	err := a.scanOnce(context.Background(), ScanOptions{}, &bytes.Buffer{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "scan failed")
}

func TestPrintRuns(t *testing.T) {
	started := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	runs := []storage.ScanRun{
		{
			ID:           "0b7c9a5e-1111-2222-3333-444455556666",
			StartedAt:    started,
			FinishedAt:   started.Add(1500 * time.Millisecond),
			Status:       storage.RunCompleted,
			ArtifactPath: "Momentum_Report_x.csv",
			Results:      []market.MetricRecord{{Symbol: "ITBEES.NS", Oscillator: 72.5}},
		},
		{
			ID:         "short",
			StartedAt:  started,
			FinishedAt: started.Add(time.Second),
			Status:     storage.RunFailed,
			Error:      "fetch series:\nboom",
		},
	}

	var out bytes.Buffer
	require.NoError(t, printRuns(&out, runs))

	text := out.String()
	require.Contains(t, text, "0b7c9a5e ")
	require.Contains(t, text, "ITBEES.NS (72.50)")
	require.Contains(t, text, "1.5s")
	require.Contains(t, text, "fetch series: boom")
	require.Equal(t, 3, strings.Count(text, "\n"))
}

func TestPrintRunsEmpty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printRuns(&out, nil))
	require.Equal(t, "no scan runs found\n", out.String())
}

type starterFunc func(ctx context.Context) error

func (f starterFunc) StartScan(ctx context.Context) error { return f(ctx) }

func TestScheduledScanSkipsWhenRunning(t *testing.T) {
	tick := scheduledScan(starterFunc(func(context.Context) error { return service.ErrScanInProgress }))
	err := tick(context.Background(), time.Now())
	require.ErrorIs(t, err, scheduler.ErrSkipped)
	require.ErrorIs(t, err, service.ErrScanInProgress)

	boom := errors.New("executor stopped")
	tick = scheduledScan(starterFunc(func(context.Context) error { return boom }))
	err = tick(context.Background(), time.Now())
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, scheduler.ErrSkipped)

	tick = scheduledScan(starterFunc(func(context.Context) error { return nil }))
	require.NoError(t, tick(context.Background(), time.Now()))
}
