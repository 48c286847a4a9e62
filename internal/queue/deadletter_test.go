package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benvon/tag-a-log/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakePruner struct {
	mu      sync.Mutex
	calls   []time.Duration
	results []pruneResult
}

type pruneResult struct {
	n   int
	err error
}

func (f *fakePruner) PruneDeadLetters(_ context.Context, olderThan time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, olderThan)
	if len(f.results) == 0 {
		return 0, nil
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r.n, r.err
}

func (f *fakePruner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestDeadLetterCollector_Collect(t *testing.T) {
	tests := []struct {
		name        string
		result      pruneResult
		wantN       int
		wantErr     bool
		wantCounted float64
	}{
		{name: "nothing to discard", result: pruneResult{}, wantN: 0},
		{name: "discards old jobs", result: pruneResult{n: 3}, wantN: 3, wantCounted: 3},
		{name: "broker error", result: pruneResult{err: errors.New("channel closed")}, wantErr: true},
		{
			name:        "partial progress before error is still counted",
			result:      pruneResult{n: 2, err: errors.New("connection reset")},
			wantN:       2,
			wantErr:     true,
			wantCounted: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pruner := &fakePruner{results: []pruneResult{tt.result}}
			c := NewDeadLetterCollector(pruner, time.Hour, 48*time.Hour, nil)

			before := testutil.ToFloat64(metrics.DeadLettersDiscardedTotal)
			n, err := c.collect(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("collect() error = %v, wantErr %v", err, tt.wantErr)
			}
			if n != tt.wantN {
				t.Errorf("collect() = %d, want %d", n, tt.wantN)
			}
			if got := testutil.ToFloat64(metrics.DeadLettersDiscardedTotal) - before; got != tt.wantCounted {
				t.Errorf("discarded counter grew by %v, want %v", got, tt.wantCounted)
			}
			if len(pruner.calls) != 1 || pruner.calls[0] != 48*time.Hour {
				t.Errorf("pruner calls = %v, want one call with 48h", pruner.calls)
			}
		})
	}
}

func TestDeadLetterCollector_NilPruner(t *testing.T) {
	c := NewDeadLetterCollector(nil, time.Hour, time.Hour, nil)
	n, err := c.collect(context.Background())
	if err != nil || n != 0 {
		t.Errorf("collect() = %d, %v; want 0, nil", n, err)
	}
}

func TestDeadLetterCollector_RunPrunesImmediately(t *testing.T) {
	pruner := &fakePruner{}
	c := NewDeadLetterCollector(pruner, time.Hour, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for pruner.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if pruner.callCount() != 1 {
		t.Errorf("pruner called %d times, want 1", pruner.callCount())
	}
}

func TestDeadLetterCollector_RunRejectsBadInterval(t *testing.T) {
	c := NewDeadLetterCollector(&fakePruner{}, 0, time.Hour, nil)
	if err := c.Run(context.Background()); err == nil {
		t.Error("expected error for zero interval")
	}
}
