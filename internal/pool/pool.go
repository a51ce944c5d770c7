// Package pool provides the fixed-size worker pool used inside a single
// simulation step. Workers are joined before every call returns, so no
// goroutine outlives the step that started it.
//
// A nil *Pool is valid and runs everything on the calling goroutine.
package pool

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

var ErrSize = errors.New("pool: worker count must be at least 1")

type Pool struct {
	workers int
}

// New builds a pool with n workers. n <= 0 is rejected so a bad
// configuration fails at startup instead of on the first step.
func New(n int) (*Pool, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrSize, n)
	}
	return &Pool{workers: n}, nil
}

// DefaultSize is the number of logical CPUs usable by the process.
func DefaultSize() int { return runtime.NumCPU() }

func (p *Pool) Workers() int {
	if p == nil {
		return 1
	}
	return p.workers
}

// Each runs fn for every index in [0, n) with at most Workers() calls in
// flight and returns the first error. Once ctx is done no further calls are
// started and Each returns the first fn error or, failing that, ctx.Err().
func (p *Pool) Each(ctx context.Context, n int, fn func(i int) error) error {
	if p == nil || p.workers == 1 || n <= 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error { return fn(i) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// For splits [0, n) into contiguous chunks of at least minChunk items and
// runs fn on each chunk in parallel.
func (p *Pool) For(n, minChunk int, fn func(start, end int)) {
	workers := p.Workers()
	if minChunk < 1 {
		minChunk = 1
	}
	if n <= minChunk || workers <= 1 {
		fn(0, n)
		return
	}

	if n/minChunk < workers {
		workers = n / minChunk
	}
	chunkSize := (n + workers - 1) / workers

	var g errgroup.Group
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		g.Go(func() error {
			fn(start, end)
			return nil
		})
	}
	_ = g.Wait()
}
