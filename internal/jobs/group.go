// Package jobs runs indexing jobs: a coordinating orchestrator that owns
// job lifecycle and collection metadata, per-item workers that own only
// their unit's outcome, and a bounded fan-out group joining the two.
package jobs

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"vodsearch/internal/catalog"
)

// Outcome is a worker unit's result. Units never fail their group; a
// broken item is reported as Success=false and the rest keep going.
type Outcome struct {
	ItemID  string
	Success bool
}

// UnitFunc processes one item.
type UnitFunc func(ctx context.Context, item catalog.Item) Outcome

// Group is the fanned-out work for one job: one unit per item, bounded
// parallelism, cancellable as a whole. Its ID is the opaque handle
// recorded on the job so cancellation can reach every child unit.
type Group struct {
	ID string

	total     int
	completed atomic.Int64
	succeeded atomic.Int64

	cancel context.CancelFunc
	done   chan struct{}
}

// RunGroup dispatches one unit per item and returns immediately. The
// group observes ctx: cancelling it stops in-flight units and skips the
// rest.
func RunGroup(ctx context.Context, items []catalog.Item, unit UnitFunc, parallelism int) *Group {
	if parallelism < 1 {
		parallelism = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	g := &Group{
		ID:     uuid.NewString(),
		total:  len(items),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(parallelism)

	go func() {
		defer close(g.done)
		defer cancel()

		for _, item := range items {
			if egCtx.Err() != nil {
				break
			}
			item := item
			eg.Go(func() error {
				if egCtx.Err() != nil {
					return nil
				}
				out := unit(egCtx, item)
				g.completed.Add(1)
				if out.Success {
					g.succeeded.Add(1)
				}
				return nil
			})
		}
		_ = eg.Wait()
	}()

	return g
}

// Total returns the number of units dispatched.
func (g *Group) Total() int { return g.total }

// Completed returns the number of finished units, success or not.
func (g *Group) Completed() int { return int(g.completed.Load()) }

// Succeeded returns the number of units that reported success.
func (g *Group) Succeeded() int { return int(g.succeeded.Load()) }

// Done is closed once every unit has finished or been skipped.
func (g *Group) Done() <-chan struct{} { return g.done }

// Cancel stops in-flight units and skips the rest.
func (g *Group) Cancel() { g.cancel() }
