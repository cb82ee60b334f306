package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/quantmill/marketlake/internal/metrics"
	"github.com/quantmill/marketlake/internal/scd"
)

// CommitBootstrap builds the initial dimension and commits it at version 0.
func CommitBootstrap(ctx context.Context, store DimensionStore, snap scd.Snapshot, effectiveTsUs int64) (scd.Dimension, error) {
	_, version, err := store.Load(ctx)
	if err != nil {
		return scd.Dimension{}, fmt.Errorf("load dimension: %w", err)
	}
	dim, err := scd.Bootstrap(snap, effectiveTsUs)
	if err != nil {
		return scd.Dimension{}, err
	}
	if err := store.Save(ctx, dim, version); err != nil {
		return scd.Dimension{}, fmt.Errorf("save dimension: %w", err)
	}
	return dim, nil
}

// CommitUpsert applies an SCD2 upsert against the stored dimension under
// optimistic concurrency: on a version conflict the whole upsert is
// recomputed against the latest snapshot and retried, up to maxRetries.
func CommitUpsert(ctx context.Context, store DimensionStore, snap scd.Snapshot, effectiveTsUs int64, delistings []scd.NaturalKey, maxRetries int) (scd.Dimension, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		current, version, err := store.Load(ctx)
		if err != nil {
			return scd.Dimension{}, fmt.Errorf("load dimension: %w", err)
		}

		next, err := scd.Upsert(current, snap, effectiveTsUs, delistings)
		if err != nil {
			return scd.Dimension{}, err
		}

		err = store.Save(ctx, next, version)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return scd.Dimension{}, fmt.Errorf("save dimension: %w", err)
		}
		metrics.Get().IncDimensionConflict()
		lastErr = err
	}
	return scd.Dimension{}, fmt.Errorf("dimension upsert lost %d races: %w", maxRetries, lastErr)
}
