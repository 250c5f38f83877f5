package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRun(t *testing.T) {
	ch := Run(context.Background(), func(ctx context.Context) (int, error) {
		return 42, nil
	})

	r := <-ch
	if r.Err != nil || r.Value != 42 {
		t.Errorf("expected 42, got %v (%v)", r.Value, r.Err)
	}
	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after the result")
	}
}

func TestRun_Error(t *testing.T) {
	boom := errors.New("boom")
	v, err := Await(context.Background(), Run(context.Background(), func(ctx context.Context) (string, error) {
		return "", boom
	}))
	if !errors.Is(err, boom) || v != "" {
		t.Errorf("expected boom, got %q, %v", v, err)
	}
}

func TestAwait_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	defer close(release)

	ch := Run(context.Background(), func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	})
	cancel()

	if _, err := Await(ctx, ch); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestMap_KeepsOrderAndLimitsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	items := []int{1, 2, 3, 4, 5, 6, 7, 8}

	results := Map(context.Background(), items, 3, func(ctx context.Context, n int) (int, error) {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		if n == 5 {
			return 0, errors.New("five")
		}
		return n * n, nil
	})

	if len(results) != len(items) {
		t.Fatalf("expected %d results, got %d", len(items), len(results))
	}
	for i, r := range results {
		n := items[i]
		if n == 5 {
			if r.Err == nil {
				t.Error("expected error for item 5")
			}
			continue
		}
		if r.Err != nil || r.Value != n*n {
			t.Errorf("item %d: expected %d, got %d (%v)", n, n*n, r.Value, r.Err)
		}
	}
	if peak.Load() > 3 {
		t.Errorf("expected at most 3 concurrent calls, saw %d", peak.Load())
	}
}

func TestMap_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	results := Map(ctx, []string{"a", "b", "c"}, 1, func(ctx context.Context, s string) (string, error) {
		calls.Add(1)
		return s, nil
	})

	for i, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("result %d: expected context.Canceled, got %v", i, r.Err)
		}
	}
	if calls.Load() != 0 {
		t.Errorf("expected no calls after cancellation, got %d", calls.Load())
	}
}
