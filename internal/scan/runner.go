// Package scan implements the background scan job: fetch the universe in one
// batched call, score each instrument, rank, persist the report and publish
// the outcome into the shared status state.
package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"momentum-scanner/internal/alerting"
	"momentum-scanner/internal/fetcher"
	"momentum-scanner/internal/indicator"
	"momentum-scanner/internal/market"
	"momentum-scanner/internal/status"
	"momentum-scanner/internal/storage"
)

// DefaultMinHistory is the number of observations an instrument needs to be scored.
const DefaultMinHistory = 150

// ArtifactStore is the part of the report store the runner needs.
type ArtifactStore interface {
	PurgeStale() int
	Write(records []market.MetricRecord) (string, error)
	WriteChart(records []market.MetricRecord) (string, error)
}

// Options tune a Runner.
type Options struct {
	Universe     []market.Instrument
	MinHistory   int
	FetchTimeout time.Duration
	Chart        bool
}

// Runner owns the scan pipeline. It touches the status state only to advance
// progress and for the final completion or failure transition.
type Runner struct {
	opts     Options
	provider fetcher.SeriesProvider
	scorer   indicator.Scorer
	store    ArtifactStore
	state    *status.State
	recorder storage.RunRecorder
	notifier alerting.Notifier
	logger   zerolog.Logger
}

// NewRunner wires a runner. recorder and notifier may be nil.
func NewRunner(opts Options, provider fetcher.SeriesProvider, scorer indicator.Scorer, store ArtifactStore, state *status.State, recorder storage.RunRecorder, notifier alerting.Notifier, logger zerolog.Logger) *Runner {
	if opts.MinHistory <= 0 {
		opts.MinHistory = DefaultMinHistory
	}
	return &Runner{
		opts:     opts,
		provider: provider,
		scorer:   scorer,
		store:    store,
		state:    state,
		recorder: recorder,
		notifier: notifier,
		logger:   logger.With().Str("component", "scan_runner").Logger(),
	}
}

// Run executes one admitted job. It never returns an error and never panics:
// every failure is logged and turned into a status reset, so the running flag
// cannot stay set.
func (r *Runner) Run(ctx context.Context) {
	runID := uuid.NewString()
	started := time.Now().UTC()
	logger := r.logger.With().Str("run_id", runID).Logger()
	logger.Info().Int("universe", len(r.opts.Universe)).Msg("scan started")

	out, err := r.safeExecute(ctx, runID)
	if err != nil {
		r.state.Fail(err)
		logger.Error().Err(err).Dur("elapsed", time.Since(started)).Msg("scan failed")
	} else {
		r.state.Complete(out)
		logger.Info().
			Int("results", len(out.Results)).
			Str("artifact", out.ArtifactPath).
			Dur("elapsed", time.Since(started)).
			Msg("scan completed")
	}

	r.afterRun(ctx, logger, storage.ScanRun{
		ID:           runID,
		StartedAt:    started,
		FinishedAt:   time.Now().UTC(),
		Results:      out.Results,
		ArtifactPath: out.ArtifactPath,
	}, err)
}

func (r *Runner) safeExecute(ctx context.Context, runID string) (out status.Outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("scan panicked: %v", p)
		}
	}()
	return r.Execute(ctx, runID)
}

// Execute runs the pipeline and returns the outcome without publishing it.
func (r *Runner) Execute(ctx context.Context, runID string) (status.Outcome, error) {
	if len(r.opts.Universe) == 0 {
		return status.Outcome{}, errors.New("scan: empty universe")
	}

	// advisory; the store logs and swallows removal errors
	r.store.PurgeStale()

	fetchCtx := ctx
	if r.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, r.opts.FetchTimeout)
		defer cancel()
	}
	series, err := r.provider.FetchSeries(fetchCtx, market.Symbols(r.opts.Universe))
	if err != nil {
		return status.Outcome{}, fmt.Errorf("fetch series: %w", err)
	}

	records := make([]market.MetricRecord, 0, len(r.opts.Universe))
	for _, inst := range r.opts.Universe {
		rec, ok, err := r.scoreOne(inst, series[inst.Symbol])
		r.state.Advance()
		if err != nil {
			return status.Outcome{}, err
		}
		if ok {
			records = append(records, rec)
		}
	}

	market.Rank(records)

	path, err := r.store.Write(records)
	if err != nil {
		return status.Outcome{}, fmt.Errorf("persist report: %w", err)
	}

	out := status.Outcome{
		RunID:        runID,
		Results:      records,
		ArtifactPath: path,
		FinishedAt:   time.Now().UTC(),
	}

	if r.opts.Chart && len(records) > 0 {
		chartPath, err := r.store.WriteChart(records)
		if err != nil {
			r.logger.Warn().Err(err).Msg("chart not written")
		} else {
			out.ChartPath = chartPath
		}
	}
	return out, nil
}

// scoreOne returns ok=false for instruments that are skipped for lack of history.
func (r *Runner) scoreOne(inst market.Instrument, bars []fetcher.Bar) (market.MetricRecord, bool, error) {
	if len(bars) < r.opts.MinHistory {
		r.logger.Debug().Str("symbol", inst.Symbol).Int("observations", len(bars)).Int("required", r.opts.MinHistory).
			Msg("skipping instrument with short history")
		return market.MetricRecord{}, false, nil
	}

	rec, err := r.scorer.Score(inst, fetcher.Closes(bars))
	if errors.Is(err, indicator.ErrInsufficientHistory) {
		r.logger.Debug().Str("symbol", inst.Symbol).Err(err).Msg("skipping instrument")
		return market.MetricRecord{}, false, nil
	}
	if err != nil {
		return market.MetricRecord{}, false, fmt.Errorf("score %s: %w", inst.Symbol, err)
	}
	return rec, true, nil
}

// afterRun records the run and sends a notification. Both are best effort.
func (r *Runner) afterRun(ctx context.Context, logger zerolog.Logger, run storage.ScanRun, runErr error) {
	if r.recorder == nil && r.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	run.Status = storage.RunCompleted
	if runErr != nil {
		run.Status = storage.RunFailed
		run.Error = runErr.Error()
		run.Results = nil
		run.ArtifactPath = ""
	}

	if r.recorder != nil {
		if err := r.recorder.InsertRun(ctx, run); err != nil {
			logger.Error().Err(err).Msg("failed to record scan run")
		}
	}

	if r.notifier != nil {
		note := alerting.Notification{
			RunID:        run.ID,
			FinishedAt:   run.FinishedAt,
			Results:      run.Results,
			ArtifactPath: run.ArtifactPath,
			Error:        run.Error,
		}
		if err := r.notifier.Notify(ctx, note); err != nil {
			logger.Error().Err(err).Msg("failed to dispatch scan notification")
		}
	}
}
