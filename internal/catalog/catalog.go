// Package catalog holds the lake's bookkeeping stores: the ingest manifest
// that makes file processing idempotent, and the versioned symbol
// dimension store with optimistic concurrency.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/quantmill/marketlake/internal/scd"
)

// Status is the manifest lifecycle state of a bronze file.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// FileIdentity is the idempotency identity of a bronze file: the same
// tuple means the same file, already-processed or not.
type FileIdentity struct {
	Vendor     string
	DataType   string
	BronzePath string
	FileHash   string
}

// Counts are the per-file row counts recorded on completion.
type Counts struct {
	Read        int64
	Written     int64
	Quarantined int64
}

// ManifestEntry is the manifest record for one file identity.
type ManifestEntry struct {
	FileID        int64
	Identity      FileIdentity
	Status        Status
	Counts        Counts
	ErrorCategory string
	DiscoveredAt  time.Time
	UpdatedAt     time.Time
}

// ManifestStore tracks file identities through the ingest lifecycle.
// Claim provides the mutual exclusion between concurrent ingest calls:
// exactly one caller wins the pending->processing transition.
type ManifestStore interface {
	// ResolveFileID returns the file id for an identity, creating a
	// pending entry on first discovery.
	ResolveFileID(ctx context.Context, id FileIdentity) (int64, error)

	// Lookup returns the manifest entry for an identity, or nil if the
	// identity was never discovered.
	Lookup(ctx context.Context, id FileIdentity) (*ManifestEntry, error)

	// Claim attempts the transition to processing. Pending and failed
	// entries are claimable; succeeded entries only with force. An entry
	// already processing is claimable only with force: without it another
	// worker may own the file, with it an operator is recovering a file a
	// crashed run left stuck.
	Claim(ctx context.Context, fileID int64, force bool) (bool, error)

	// FilterPending returns the subset of candidates not yet successfully
	// ingested.
	FilterPending(ctx context.Context, candidates []FileIdentity) ([]FileIdentity, error)

	// UpdateStatus records the final status and counts for a file. It is
	// always the last durable action of an ingest run.
	UpdateStatus(ctx context.Context, fileID int64, status Status, counts Counts, errorCategory string) error
}

// ErrVersionConflict is returned by DimensionStore.Save when a concurrent
// writer advanced the dimension version first.
var ErrVersionConflict = errors.New("dimension version conflict")

// DimensionStore persists the symbol dimension with optimistic
// concurrency. Load returns the snapshot and its version; Save commits a
// new snapshot only if expectedVersion is still current.
type DimensionStore interface {
	Load(ctx context.Context) (scd.Dimension, int64, error)
	Save(ctx context.Context, dim scd.Dimension, expectedVersion int64) error
}
