package worker

import (
	"context"
)

// Outcome is the result of applying a function to one item of a batch
type Outcome[R any] struct {
	Index int
	Value R
	Err   error
}

// GetError returns the error from the outcome
func (o *Outcome[R]) GetError() error {
	return o.Err
}

// mapJob applies fn to a single item
type mapJob[T, R any] struct {
	index int
	item  T
	fn    func(ctx context.Context, item T) (R, error)
}

// Execute executes the map job
func (j *mapJob[T, R]) Execute(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return &Outcome[R]{Index: j.index, Err: err}
	}
	v, err := j.fn(ctx, j.item)
	return &Outcome[R]{Index: j.index, Value: v, Err: err}
}

// Map applies fn to every item on a pool of the given size and returns one
// Outcome per item, in input order. Items that never ran because ctx was
// cancelled carry ctx's error.
func Map[T, R any](ctx context.Context, workers int, items []T, fn func(ctx context.Context, item T) (R, error)) []Outcome[R] {
	outcomes := make([]Outcome[R], len(items))
	if len(items) == 0 {
		return outcomes
	}

	if workers > len(items) {
		workers = len(items)
	}

	pool := NewPool(ctx, workers)
	pool.Start()

	for i, item := range items {
		if !pool.Submit(&mapJob[T, R]{index: i, item: item, fn: fn}) {
			break
		}
	}

	results := pool.Wait()

	for i := range outcomes {
		outcomes[i] = Outcome[R]{Index: i, Err: context.Canceled}
		if err := ctx.Err(); err != nil {
			outcomes[i].Err = err
		}
	}
	for i, r := range results {
		if r == nil {
			continue
		}
		outcomes[i] = *r.(*Outcome[R])
	}

	return outcomes
}
