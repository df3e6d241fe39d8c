// Package pool runs independent units of work on a bounded number of
// goroutines and hands every result, success or failure, to a single
// aggregating caller.
//
// Units never share state with each other: each one reads its own input and
// returns its own value. Results travel over a channel and are consumed only
// by the goroutine that called Each or Run, so the aggregate needs no locks.
package pool

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jamesainslie/treesum/pkg/treesum/types"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the concurrency bound used when none is configured.
const DefaultWorkers = 4

// ErrUnitPanic is wrapped by the error of a unit that panicked.
var ErrUnitPanic = errors.New("unit of work panicked")

// Unit is one independent piece of work.
type Unit[T any] func() (T, error)

// Result is the outcome of a single unit. Index is the unit's position in
// the slice handed to Each or Run.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// Pool bounds how many units execute at once.
type Pool struct {
	workers int
}

// New returns a Pool running at most workers units simultaneously.
// A worker count below one is rejected.
func New(workers int) (*Pool, error) {
	if err := types.ValidateWorkers(workers); err != nil {
		return nil, err
	}
	return &Pool{workers: workers}, nil
}

// Workers returns the concurrency bound.
func (p *Pool) Workers() int {
	return p.workers
}

// Each runs every unit and calls fn once per result, in completion order,
// from the calling goroutine. It returns after all units have finished and
// fn has seen every result. A failing unit never stops its siblings.
func Each[T any](p *Pool, units []Unit[T], fn func(Result[T])) {
	if len(units) == 0 {
		return
	}

	// Buffered to len(units) so workers never block on a slow aggregator.
	results := make(chan Result[T], len(units))

	var g errgroup.Group
	g.SetLimit(p.workers)

	go func() {
		for i, unit := range units {
			g.Go(func() error {
				results <- runUnit(i, unit)
				return nil
			})
		}
		_ = g.Wait() // units report failures as values
		close(results)
	}()

	for r := range results {
		fn(r)
	}
}

// Run executes every unit and returns all results ordered by unit index.
func Run[T any](p *Pool, units []Unit[T]) []Result[T] {
	out := make([]Result[T], 0, len(units))
	Each(p, units, func(r Result[T]) {
		out = append(out, r)
	})

	sort.Slice(out, func(i, j int) bool {
		return out[i].Index < out[j].Index
	})
	return out
}

// runUnit executes a unit, converting a panic into a failure value.
func runUnit[T any](index int, unit Unit[T]) (res Result[T]) {
	res.Index = index
	defer func() {
		if r := recover(); r != nil {
			var zero T
			res.Value = zero
			res.Err = fmt.Errorf("%w: %v", ErrUnitPanic, r)
		}
	}()

	res.Value, res.Err = unit()
	return res
}
