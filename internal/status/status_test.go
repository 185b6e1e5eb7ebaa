package status

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"momentum-scanner/internal/market"
)

func TestTrySetRunningSingleFlight(t *testing.T) {
	s := New(10)

	const attempts = 64
	var admitted atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if s.TrySetRunning() {
				admitted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.EqualValues(t, 1, admitted.Load())
	require.True(t, s.Snapshot().Running)
}

func TestCompletePublishesAndReleases(t *testing.T) {
	s := New(2)
	require.True(t, s.TrySetRunning())
	s.Advance()
	s.Advance()
	s.Advance() // capped at total

	snap := s.Snapshot()
	require.Equal(t, Progress{Done: 2, Total: 2}, snap.Progress)
	require.Nil(t, snap.ArtifactPath)

	s.Complete(Outcome{
		RunID:        "run-1",
		Results:      []market.MetricRecord{{Symbol: "AAA", Oscillator: 60}},
		ArtifactPath: "/tmp/r.csv",
	})

	snap = s.Snapshot()
	require.False(t, snap.Running)
	require.Len(t, snap.Results, 1)
	require.NotNil(t, snap.ArtifactPath)
	require.Equal(t, "/tmp/r.csv", *snap.ArtifactPath)
	require.Nil(t, snap.ChartPath)
	require.Equal(t, "run-1", snap.RunID)
	require.NotNil(t, snap.FinishedAt)
	require.True(t, s.TrySetRunning(), "a completed state admits the next job")
}

func TestFailKeepsPreviousResults(t *testing.T) {
	s := New(1)
	require.True(t, s.TrySetRunning())
	s.Complete(Outcome{Results: []market.MetricRecord{{Symbol: "AAA"}}, ArtifactPath: "a.csv"})

	require.True(t, s.TrySetRunning())
	inFlight := s.Snapshot()
	require.True(t, inFlight.Running)
	require.Len(t, inFlight.Results, 1, "a job in flight does not clear the last results")

	s.Fail(errors.New("provider down"))

	snap := s.Snapshot()
	require.False(t, snap.Running)
	require.Equal(t, "provider down", snap.LastError)
	require.Len(t, snap.Results, 1)
	require.Equal(t, "a.csv", *snap.ArtifactPath)

	require.True(t, s.TrySetRunning())
	require.Empty(t, s.Snapshot().LastError, "admission clears the previous error")
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New(1)
	require.True(t, s.TrySetRunning())
	s.Complete(Outcome{Results: []market.MetricRecord{{Symbol: "AAA"}}, ArtifactPath: "a.csv"})

	snap := s.Snapshot()
	snap.Results[0].Symbol = "mutated"
	*snap.ArtifactPath = "mutated"

	again := s.Snapshot()
	require.Equal(t, "AAA", again.Results[0].Symbol)
	require.Equal(t, "a.csv", *again.ArtifactPath)
}

func TestRelease(t *testing.T) {
	s := New(1)
	require.True(t, s.TrySetRunning())
	s.Release()
	require.False(t, s.Snapshot().Running)
}

func TestSnapshotDoesNotBlockOnWriters(t *testing.T) {
	s := New(1000)
	require.True(t, s.TrySetRunning())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			s.Advance()
		}
	}()

	deadline := time.After(2 * time.Second)
	for i := 0; i < 1000; i++ {
		select {
		case <-deadline:
			t.Fatal("snapshot starved")
		default:
			_ = s.Snapshot()
		}
	}
	<-done
	require.Equal(t, 1000, s.Snapshot().Progress.Done)
}

func TestNewStateHasEmptyResults(t *testing.T) {
	snap := New(3).Snapshot()
	require.NotNil(t, snap.Results)
	require.Empty(t, snap.Results)
	require.Equal(t, 3, snap.Progress.Total)
	require.False(t, snap.Running)
}
