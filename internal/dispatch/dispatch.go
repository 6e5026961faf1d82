// Package dispatch runs independent units of work across a bounded
// local worker pool. Results come back in submission order no matter
// how execution interleaves, and one unit's failure never cancels its
// in-flight siblings: the pool drains, then reports every failure at
// once.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Worker processes item i of the batch. It must not share mutable
// state with other invocations beyond read-only configuration.
type Worker[T, R any] func(ctx context.Context, i int, item T) (R, error)

// Options tunes a Run.
type Options struct {
	// Workers caps pool size. Values < 1 mean one worker; the pool
	// never exceeds the number of items.
	Workers int

	// OnDone, when non-nil, is called once per completed item, in
	// completion order (which may differ from submission order).
	OnDone func()
}

// UnitError wraps a single item's failure with its submission index.
type UnitError struct {
	Index int
	Err   error
}

func (e *UnitError) Error() string { return fmt.Sprintf("unit %d: %v", e.Index, e.Err) }
func (e *UnitError) Unwrap() error { return e.Err }

// Run fans items out over the pool and collects results in submission
// order. On failure the returned error joins one UnitError per failed
// item (ascending index); results of successful items are still
// returned. Context cancellation stops leasing new items but lets
// started items finish.
func Run[T, R any](ctx context.Context, items []T, worker Worker[T, R], opts Options) ([]R, error) {
	results := make([]R, len(items))
	errs := make([]error, len(items))
	if len(items) == 0 {
		return results, nil
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}

	feed := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range feed {
				r, err := worker(ctx, i, items[i])
				if err != nil {
					errs[i] = err
				} else {
					results[i] = r
				}
				if opts.OnDone != nil {
					opts.OnDone()
				}
			}
		}()
	}

feeding:
	for i := range items {
		select {
		case feed <- i:
		case <-ctx.Done():
			for j := i; j < len(items); j++ {
				errs[j] = ctx.Err()
			}
			break feeding
		}
	}
	close(feed)
	wg.Wait()

	var failed []error
	for i, err := range errs {
		if err != nil {
			failed = append(failed, &UnitError{Index: i, Err: err})
		}
	}
	if len(failed) > 0 {
		return results, errors.Join(failed...)
	}
	return results, nil
}

// FailedIndexes extracts the submission indexes of every UnitError
// inside err, in ascending order. Returns nil when err carries none.
func FailedIndexes(err error) []int {
	var out []int
	collect(err, &out)
	return out
}

func collect(err error, out *[]int) {
	if err == nil {
		return
	}
	// errors.As would stop at the first match; walk the joined tree so
	// every failed index is reported.
	switch e := err.(type) {
	case *UnitError:
		*out = append(*out, e.Index)
	case interface{ Unwrap() []error }:
		for _, sub := range e.Unwrap() {
			collect(sub, out)
		}
	case interface{ Unwrap() error }:
		collect(e.Unwrap(), out)
	}
}
