package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestRunPreservesSubmissionOrder(t *testing.T) {
	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}
	// Jitter completion order: earlier items sleep longer.
	results, err := Run(context.Background(), items,
		func(ctx context.Context, i int, v int) (int, error) {
			time.Sleep(time.Duration(50-i) * 100 * time.Microsecond)
			return v * 2, nil
		}, Options{Workers: 8})
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range results {
		if r != i*2 {
			t.Fatalf("results[%d] = %d, want %d", i, r, i*2)
		}
	}
}

func TestRunCapsWorkersAtItemCount(t *testing.T) {
	var active, peak int64
	var mu sync.Mutex
	items := []int{1, 2, 3}
	_, err := Run(context.Background(), items,
		func(ctx context.Context, i int, v int) (int, error) {
			n := atomic.AddInt64(&active, 1)
			mu.Lock()
			if n > peak {
				peak = n
			}
			mu.Unlock()
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt64(&active, -1)
			return v, nil
		}, Options{Workers: 100})
	if err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if peak > int64(len(items)) {
		t.Errorf("peak concurrency %d exceeds item count %d", peak, len(items))
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	items := []int{0, 1, 2, 3, 4}
	var completed int64
	results, err := Run(context.Background(), items,
		func(ctx context.Context, i int, v int) (string, error) {
			if v == 1 || v == 3 {
				return "", fmt.Errorf("boom %d", v)
			}
			atomic.AddInt64(&completed, 1)
			return fmt.Sprintf("ok%d", v), nil
		}, Options{Workers: 2})
	if err == nil {
		t.Fatal("want error when any unit fails")
	}
	if got := FailedIndexes(err); !cmp.Equal([]int{1, 3}, got) {
		t.Errorf("FailedIndexes = %v, want [1 3]", got)
	}
	// Successful siblings still completed and their results survive.
	if completed != 3 {
		t.Errorf("completed = %d, want 3", completed)
	}
	if results[4] != "ok4" {
		t.Errorf("results[4] = %q, want ok4", results[4])
	}

	var ue *UnitError
	if !errors.As(err, &ue) {
		t.Error("joined error should expose UnitError")
	}
}

func TestRunProgressTicksOnce(t *testing.T) {
	var ticks int64
	items := make([]struct{}, 17)
	_, err := Run(context.Background(), items,
		func(ctx context.Context, i int, _ struct{}) (struct{}, error) {
			return struct{}{}, nil
		}, Options{Workers: 4, OnDone: func() { atomic.AddInt64(&ticks, 1) }})
	if err != nil {
		t.Fatal(err)
	}
	if ticks != 17 {
		t.Errorf("ticks = %d, want 17", ticks)
	}
}

func TestRunEmpty(t *testing.T) {
	results, err := Run(context.Background(), nil,
		func(ctx context.Context, i int, _ int) (int, error) { return 0, nil },
		Options{Workers: 4})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("results = %v, want empty", results)
	}
}

func TestRunContextCancelStopsLeasing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	items := make([]int, 100)
	var started int64
	_, err := Run(ctx, items,
		func(ctx context.Context, i int, _ int) (int, error) {
			if atomic.AddInt64(&started, 1) == 3 {
				cancel()
			}
			time.Sleep(time.Millisecond)
			return 0, nil
		}, Options{Workers: 2})
	if err == nil {
		t.Fatal("cancelled run should report an error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled in the chain", err)
	}
	if n := atomic.LoadInt64(&started); n == 100 {
		t.Error("cancellation should stop leasing new items")
	}
}
