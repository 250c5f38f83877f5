// Package worker runs blocking operations off the caller's goroutine.
package worker

import (
	"context"
	"sync"

	"github.com/kozaktomas/sketch-match/internal/constants"
)

// Result carries the outcome of one background call.
type Result[T any] struct {
	Value T
	Err   error
}

// Run calls fn on a new goroutine and delivers its result on the returned channel.
// The channel is buffered so the goroutine never blocks if the caller stops listening.
func Run[T any](ctx context.Context, fn func(context.Context) (T, error)) <-chan Result[T] {
	ch := make(chan Result[T], constants.ResultChannelBuffer)
	go func() {
		defer close(ch)
		v, err := fn(ctx)
		ch <- Result[T]{Value: v, Err: err}
	}()
	return ch
}

// Await waits for the result of Run or for ctx to be done, whichever comes first.
func Await[T any](ctx context.Context, ch <-chan Result[T]) (T, error) {
	select {
	case r := <-ch:
		return r.Value, r.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Map calls fn for every item with at most concurrency calls in flight and returns the
// results in input order. Items not started before ctx is done get ctx.Err().
func Map[I, O any](ctx context.Context, items []I, concurrency int, fn func(context.Context, I) (O, error)) []Result[O] {
	if concurrency <= 0 {
		concurrency = constants.WorkerPoolSize
	}

	results := make([]Result[O], len(items))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, item := range items {
		if !acquire(ctx, sem) {
			for j := i; j < len(items); j++ {
				results[j].Err = ctx.Err()
			}
			break
		}

		wg.Add(1)
		go func(i int, item I) {
			defer wg.Done()
			defer func() { <-sem }()
			v, err := fn(ctx, item)
			results[i] = Result[O]{Value: v, Err: err}
		}(i, item)
	}

	wg.Wait()
	return results
}

func acquire(ctx context.Context, sem chan struct{}) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case sem <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}
