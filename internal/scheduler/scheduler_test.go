package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNextTickAligned(t *testing.T) {
	s := New(Options{Interval: time.Hour, AlignToStart: true}, zerolog.Nop())

	now := time.Date(2024, 5, 1, 10, 17, 0, 0, time.UTC)
	if got, want := s.nextTick(now), time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("nextTick = %s, want %s", got, want)
	}

	onBoundary := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)
	if got, want := s.nextTick(onBoundary), time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("nextTick on boundary = %s, want %s", got, want)
	}
}

func TestNextTickUnaligned(t *testing.T) {
	s := New(Options{Interval: 15 * time.Minute}, zerolog.Nop())
	now := time.Date(2024, 5, 1, 10, 17, 0, 0, time.UTC)
	if got := s.nextTick(now); !got.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected next tick %s", got)
	}
	if got := s.bucketStart(now); !got.Equal(now) {
		t.Fatalf("unaligned bucket should be the tick time, got %s", got)
	}
}

func TestRunKeepsTickingAfterSkipsAndErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	s := New(Options{Interval: 5 * time.Millisecond, RunOnStart: true}, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, bucket time.Time) error {
			n := calls.Add(1)
			switch {
			case n == 1:
				return ErrSkipped
			case n == 2:
				return errors.New("boom")
			case n >= 3:
				cancel()
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run should end with context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	if calls.Load() < 3 {
		t.Fatalf("expected at least 3 ticks, got %d", calls.Load())
	}
}

func TestRunStopsDuringStartupDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(Options{Interval: time.Hour, StartupDelay: time.Hour}, zerolog.Nop())
	err := s.Run(ctx, func(context.Context, time.Time) error {
		t.Fatal("tick should not run")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewPanicsOnZeroInterval(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("New should panic on zero interval")
		}
	}()
	New(Options{}, zerolog.Nop())
}
