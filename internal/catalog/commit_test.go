package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/quantmill/marketlake/internal/metrics"
	"github.com/quantmill/marketlake/internal/scd"
)

func dimFixture() scd.Dimension {
	dim, err := scd.Bootstrap(scd.Snapshot{
		{Exchange: "NYSE", ExchangeSymbol: "AAPL"}: {CanonicalSymbol: "AAPL"},
	}, 1_600_000_000_000_000)
	if err != nil {
		panic(err)
	}
	return dim
}

func TestCommitBootstrap(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	snap := scd.Snapshot{
		{Exchange: "NYSE", ExchangeSymbol: "AAPL"}: {CanonicalSymbol: "AAPL"},
		{Exchange: "NYSE", ExchangeSymbol: "FB"}:   {CanonicalSymbol: "FB"},
	}
	dim, err := CommitBootstrap(ctx, m, snap, 1_600_000_000_000_000)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if len(dim.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(dim.Rows))
	}

	loaded, version, err := m.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if version != 1 || len(loaded.Rows) != 2 {
		t.Errorf("version=%d rows=%d after bootstrap", version, len(loaded.Rows))
	}
}

// conflictingStore wraps Memory and fails the first n saves with a
// version conflict, simulating a concurrent committer.
type conflictingStore struct {
	*Memory
	conflicts int
}

func (s *conflictingStore) Save(ctx context.Context, dim scd.Dimension, expectedVersion int64) error {
	if s.conflicts > 0 {
		s.conflicts--
		// Bump the real version behind the caller's back.
		if err := s.Memory.Save(ctx, dim, expectedVersion); err != nil {
			return err
		}
		return ErrVersionConflict
	}
	return s.Memory.Save(ctx, dim, expectedVersion)
}

func TestCommitUpsertRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	store := &conflictingStore{Memory: NewMemory(), conflicts: 2}
	before := testutil.ToFloat64(metrics.Get().DimensionConflicts)

	snap := scd.Snapshot{
		{Exchange: "NYSE", ExchangeSymbol: "AAPL"}: {CanonicalSymbol: "AAPL"},
	}
	dim, err := CommitUpsert(ctx, store, snap, 1_600_000_000_000_000, nil, 5)
	if err != nil {
		t.Fatalf("upsert should succeed after retries: %v", err)
	}
	if len(dim.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(dim.Rows))
	}
	if got := testutil.ToFloat64(metrics.Get().DimensionConflicts) - before; got != 2 {
		t.Errorf("dimension conflict counter advanced by %v, want 2", got)
	}
}

func TestCommitUpsertGivesUpAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	store := &conflictingStore{Memory: NewMemory(), conflicts: 10}

	snap := scd.Snapshot{
		{Exchange: "NYSE", ExchangeSymbol: "AAPL"}: {CanonicalSymbol: "AAPL"},
	}
	_, err := CommitUpsert(ctx, store, snap, 1_600_000_000_000_000, nil, 3)
	if err == nil || !strings.Contains(err.Error(), "lost 3 races") {
		t.Fatalf("expected retry exhaustion, got %v", err)
	}
}
