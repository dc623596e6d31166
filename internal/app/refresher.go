// Package app orchestrates core services across whole warehouses.
package app

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"fulfillment-core/internal/core"
)

// BatchLister enumerates the batches whose ready sets need refreshing.
type BatchLister interface {
	ListOpenBatches(ctx context.Context) ([]core.Batch, error)
}

// ReadyRecomputer recomputes one batch's ready set.
type ReadyRecomputer interface {
	RecomputeReadyToPick(ctx context.Context, batchCode string) (*core.AllocationOutcome, error)
}

// Refresher recomputes ready-to-pick sets for all open batches. Batches are
// independent work units, so they refresh concurrently up to limit; within one
// batch the allocation service's row lock serializes runs.
type Refresher struct {
	batches BatchLister
	alloc   ReadyRecomputer
	limit   int
}

// NewRefresher creates a refresher with at least one concurrent slot.
func NewRefresher(batches BatchLister, alloc ReadyRecomputer, limit int) *Refresher {
	if limit <= 0 {
		limit = 1
	}
	return &Refresher{batches: batches, alloc: alloc, limit: limit}
}

// RefreshAll recomputes every open batch and returns the outcomes sorted by
// batch code. The first failing batch cancels the remaining work.
func (r *Refresher) RefreshAll(ctx context.Context) ([]core.AllocationOutcome, error) {
	open, err := r.batches.ListOpenBatches(ctx)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	outcomes := make([]core.AllocationOutcome, 0, len(open))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit)
	for _, batch := range open {
		batch := batch
		g.Go(func() error {
			outcome, err := r.alloc.RecomputeReadyToPick(ctx, batch.Code)
			if err != nil {
				return err
			}
			mu.Lock()
			outcomes = append(outcomes, *outcome)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].BatchCode < outcomes[j].BatchCode })
	return outcomes, nil
}
