package storage

import (
	"time"

	"momentum-scanner/internal/market"
)

// RunStatus is the terminal state of a scan run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// ScanRun is one finished scan as persisted in history.
type ScanRun struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	Status       RunStatus
	Error        string
	ArtifactPath string
	Results      []market.MetricRecord
	CreatedAt    time.Time
}
