// Package status holds the shared, lock-protected record of scan progress and
// of the last completed scan's results.
package status

import (
	"sync"
	"time"

	"momentum-scanner/internal/market"
)

// Progress counts scored instruments against the universe size.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// JobStatus is a point-in-time copy of the state.
type JobStatus struct {
	Running      bool                  `json:"running"`
	Progress     Progress              `json:"progress"`
	Results      []market.MetricRecord `json:"results"`
	ArtifactPath *string               `json:"artifactPath"`
	ChartPath    *string               `json:"chartPath,omitempty"`
	RunID        string                `json:"runId,omitempty"`
	LastError    string                `json:"lastError,omitempty"`
	StartedAt    *time.Time            `json:"startedAt,omitempty"`
	FinishedAt   *time.Time            `json:"finishedAt,omitempty"`
}

// Outcome is what a successful run publishes.
type Outcome struct {
	RunID        string
	Results      []market.MetricRecord
	ArtifactPath string
	ChartPath    string
	FinishedAt   time.Time
}

// State is the single shared status record. All reads and writes hold mu, and
// only for the duration of a field copy or assignment.
type State struct {
	mu  sync.Mutex
	cur JobStatus
	now func() time.Time
}

// New creates an idle state for a universe of total instruments.
func New(total int) *State {
	return &State{
		cur: JobStatus{
			Progress: Progress{Total: total},
			Results:  []market.MetricRecord{},
		},
		now: time.Now,
	}
}

// TrySetRunning is the single-flight admission gate. It reports whether the
// caller may start a job; on success the state is marked running, progress is
// reset and the previous error cleared. Results of the last completed job stay.
func (s *State) TrySetRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur.Running {
		return false
	}
	started := s.now().UTC()
	s.cur.Running = true
	s.cur.Progress.Done = 0
	s.cur.LastError = ""
	s.cur.StartedAt = &started
	return true
}

// Release clears the running flag without touching anything else. It is used
// when an admitted job could not be scheduled.
func (s *State) Release() {
	s.mu.Lock()
	s.cur.Running = false
	s.mu.Unlock()
}

// Advance records one more scored instrument.
func (s *State) Advance() {
	s.mu.Lock()
	if s.cur.Progress.Done < s.cur.Progress.Total {
		s.cur.Progress.Done++
	}
	s.mu.Unlock()
}

// Complete publishes a finished job and clears the running flag in one step.
func (s *State) Complete(out Outcome) {
	results := append([]market.MetricRecord(nil), out.Results...)
	if results == nil {
		results = []market.MetricRecord{}
	}
	finished := out.FinishedAt
	if finished.IsZero() {
		finished = s.now()
	}
	finished = finished.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.Results = results
	s.cur.ArtifactPath = optional(out.ArtifactPath)
	s.cur.ChartPath = optional(out.ChartPath)
	s.cur.RunID = out.RunID
	s.cur.FinishedAt = &finished
	s.cur.LastError = ""
	s.cur.Running = false
}

// Fail clears the running flag and records err, leaving results and artifact
// paths of the last completed job untouched.
func (s *State) Fail(err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	finished := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.LastError = msg
	s.cur.FinishedAt = &finished
	s.cur.Running = false
}

// Snapshot returns a deep copy of the current record.
func (s *State) Snapshot() JobStatus {
	s.mu.Lock()
	snap := s.cur
	snap.Results = append([]market.MetricRecord(nil), s.cur.Results...)
	s.mu.Unlock()

	if snap.Results == nil {
		snap.Results = []market.MetricRecord{}
	}
	snap.ArtifactPath = clonePtr(snap.ArtifactPath)
	snap.ChartPath = clonePtr(snap.ChartPath)
	snap.StartedAt = clonePtr(snap.StartedAt)
	snap.FinishedAt = clonePtr(snap.FinishedAt)
	return snap
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
