package scan

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

var (
	// ErrExecutorBusy is returned when the single task slot is already taken.
	ErrExecutorBusy = errors.New("scan: executor busy")
	// ErrExecutorStopped is returned after the executor has shut down.
	ErrExecutorStopped = errors.New("scan: executor stopped")
)

// Task is a unit of background work. The context is the executor's, not the
// submitter's, so a task outlives the request that scheduled it.
type Task func(ctx context.Context)

// Executor runs submitted tasks one at a time on a single worker goroutine.
// It holds at most one pending task; Submit never blocks.
type Executor struct {
	tasks  chan Task
	mu     sync.Mutex
	closed bool
	logger zerolog.Logger
}

// NewExecutor creates an executor with a one-slot queue.
func NewExecutor(logger zerolog.Logger) *Executor {
	return &Executor{
		tasks:  make(chan Task, 1),
		logger: logger.With().Str("component", "executor").Logger(),
	}
}

// Submit hands task to the worker without waiting for it to run.
func (e *Executor) Submit(task Task) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrExecutorStopped
	}
	select {
	case e.tasks <- task:
		return nil
	default:
		return ErrExecutorBusy
	}
}

// Run executes tasks until ctx is cancelled. A task still queued at shutdown
// is run with the cancelled context so it can release whatever it holds.
func (e *Executor) Run(ctx context.Context) {
	e.logger.Debug().Msg("executor started")
	for {
		select {
		case <-ctx.Done():
			e.mu.Lock()
			e.closed = true
			e.mu.Unlock()
			select {
			case task := <-e.tasks:
				e.logger.Warn().Msg("running queued task with cancelled context")
				task(ctx)
			default:
			}
			e.logger.Debug().Msg("executor stopped")
			return
		case task := <-e.tasks:
			task(ctx)
		}
	}
}
