// Package workpool runs work items over a bounded set of goroutines, each
// holding its own resource.
package workpool

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// ItemError records the failure of one work item.
type ItemError struct {
	Index int
	Item  string
	Err   error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("%s: %v", e.Item, e.Err)
}

func (e ItemError) Unwrap() error {
	return e.Err
}

// Errors collects item failures.
type Errors struct {
	Errors []ItemError
	mu     sync.Mutex
}

// Add appends an error to the collection (thread-safe).
func (e *Errors) Add(index int, item string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ItemError{Index: index, Item: item, Err: err})
	e.mu.Unlock()
}

// HasErrors returns true if any errors were collected.
func (e *Errors) HasErrors() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

// Error implements the error interface.
func (e *Errors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	default:
		return fmt.Sprintf("%d items failed (first: %v)", len(e.Errors), e.Errors[0])
	}
}

// ProgressFunc is called after each item is processed.
type ProgressFunc func()

// Resource describes the per-worker value handed to each task.
type Resource[R any] struct {
	Init  func() (R, error)
	Close func(R)
}

// Map calls fn for every item with at most workers goroutines, each holding
// a resource from res. Results are returned in item order; the slot of a
// failed item holds the zero value and its error is collected. Cancelling ctx
// stops items that have not started.
func Map[I any, T any, R any](
	ctx context.Context,
	items []I,
	workers int,
	res Resource[R],
	fn func(context.Context, R, I) (T, error),
	onProgress ProgressFunc,
) ([]T, *Errors) {
	if len(items) == 0 {
		return nil, nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(items))

	type slot struct {
		resource R
		err      error
	}
	resources := make(chan *slot, workers)
	for range workers {
		s := &slot{}
		if res.Init != nil {
			s.resource, s.err = res.Init()
		}
		resources <- s
	}

	results := make([]T, len(items))
	errs := &Errors{}
	tick := func() {
		if onProgress != nil {
			onProgress()
		}
	}

	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx)
	for i, item := range items {
		p.Go(func(ctx context.Context) error {
			defer tick()
			if err := ctx.Err(); err != nil {
				errs.Add(i, fmt.Sprint(item), err)
				return nil
			}

			s := <-resources
			defer func() { resources <- s }()
			if s.err != nil {
				errs.Add(i, fmt.Sprint(item), s.err)
				return nil
			}

			result, err := fn(ctx, s.resource, item)
			if err != nil {
				errs.Add(i, fmt.Sprint(item), err)
				return nil
			}
			results[i] = result
			return nil
		})
	}
	_ = p.Wait()

	close(resources)
	for s := range resources {
		if s.err == nil && res.Close != nil {
			res.Close(s.resource)
		}
	}

	if !errs.HasErrors() {
		return results, nil
	}
	return results, errs
}
