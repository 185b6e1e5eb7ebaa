// Package service is the transport-independent surface of the scanner:
// admission of scan jobs, status snapshots and artifact lookup.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"momentum-scanner/internal/scan"
	"momentum-scanner/internal/status"
)

var (
	// ErrScanInProgress is returned when a job is already running.
	ErrScanInProgress = errors.New("scan already in progress")
	// ErrNoReport is returned when no job has completed yet.
	ErrNoReport = errors.New("no report generated yet")
	// ErrReportMissing matches MissingReportError with errors.Is.
	ErrReportMissing = errors.New("report missing on server")
)

// MissingReportError reports a recorded artifact path that no longer resolves.
type MissingReportError struct {
	Path string
}

func (e *MissingReportError) Error() string {
	return fmt.Sprintf("%s: %s", ErrReportMissing, e.Path)
}

func (e *MissingReportError) Is(target error) bool {
	return target == ErrReportMissing
}

// Job is one scan execution.
type Job interface {
	Run(ctx context.Context)
}

// Submitter hands work to a background worker without blocking.
type Submitter interface {
	Submit(task scan.Task) error
}

// Resolver checks that an artifact path still exists.
type Resolver interface {
	Resolve(path string) bool
}

// Service coordinates the status state, the executor and the artifact store.
type Service struct {
	state    *status.State
	executor Submitter
	job      Job
	resolver Resolver
	logger   zerolog.Logger
}

// New constructs the service.
func New(state *status.State, executor Submitter, job Job, resolver Resolver, logger zerolog.Logger) *Service {
	return &Service{
		state:    state,
		executor: executor,
		job:      job,
		resolver: resolver,
		logger:   logger.With().Str("component", "service").Logger(),
	}
}

// StartScan admits a new job and schedules it in the background. It returns
// as soon as the job is scheduled; ctx only scopes the call, not the job.
func (s *Service) StartScan(ctx context.Context) error {
	if !s.state.TrySetRunning() {
		s.logger.Debug().Msg("scan rejected, already running")
		return ErrScanInProgress
	}

	if err := s.executor.Submit(s.job.Run); err != nil {
		s.state.Release()
		return fmt.Errorf("schedule scan: %w", err)
	}

	s.logger.Info().Msg("scan scheduled")
	return nil
}

// Status returns a snapshot of the current state.
func (s *Service) Status() status.JobStatus {
	return s.state.Snapshot()
}

// Artifact returns the path of the last completed report.
func (s *Service) Artifact() (string, error) {
	return s.resolve(s.state.Snapshot().ArtifactPath)
}

// Chart returns the path of the chart of the last completed scan.
func (s *Service) Chart() (string, error) {
	return s.resolve(s.state.Snapshot().ChartPath)
}

func (s *Service) resolve(path *string) (string, error) {
	if path == nil {
		return "", ErrNoReport
	}
	if !s.resolver.Resolve(*path) {
		return "", &MissingReportError{Path: *path}
	}
	return *path, nil
}
