// Package lakestore writes accepted and quarantined rows as checksummed
// parquet objects to blob storage, one object per (table, file) with a
// JSON manifest sidecar.
package lakestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quantmill/marketlake/internal/tables"
)

// ObjectRef locates one table append in the lake.
type ObjectRef struct {
	Table  string
	FileID int64
}

// Path returns the parquet object key for this append. The key is a pure
// function of the ref, so a deterministic re-run of the same file lands on
// the same key with identical bytes.
func (r ObjectRef) Path(prefix string) string {
	return fmt.Sprintf("%s%s/file_id=%d/part-%d.parquet", prefix, r.Table, r.FileID, r.FileID)
}

// ManifestPath returns the sidecar manifest key for this append.
func (r ObjectRef) ManifestPath(prefix string) string {
	return fmt.Sprintf("%s%s/file_id=%d/_manifest.json", prefix, r.Table, r.FileID)
}

// RunManifest is the sidecar written next to each parquet object.
type RunManifest struct {
	Table     string    `json:"table"`
	FileID    int64     `json:"file_id"`
	RowCount  int64     `json:"row_count"`
	ByteSize  int64     `json:"byte_size"`
	Checksum  string    `json:"checksum"`
	Producer  Producer  `json:"producer"`
	CreatedAt time.Time `json:"created_at"`
}

// Producer describes the software that wrote the object.
type Producer struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MarshalJSON returns the manifest as indented JSON bytes.
func (m *RunManifest) MarshalJSON() ([]byte, error) {
	type Alias RunManifest
	return json.MarshalIndent((*Alias)(m), "", "  ")
}

// EventStore appends accepted canonical rows to a lake table. Append-only:
// duplicate prevention lives in the ingest manifest, not here.
type EventStore interface {
	Append(ctx context.Context, table string, fileID int64, rows []tables.Row) error
}

// QuarantineStore appends rejected rows with their reasons. Records are
// retained forever; nothing is silently dropped.
type QuarantineStore interface {
	AppendQuarantine(ctx context.Context, table string, fileID int64, recs []tables.QuarantineRecord) error
}
