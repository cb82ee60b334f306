package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/quantmill/marketlake/internal/scd"
)

// Memory is an in-process catalog used by tests and single-host dry runs.
// It implements both ManifestStore and DimensionStore with the same
// transition semantics as the Postgres catalog.
type Memory struct {
	mu         sync.Mutex
	nextFileID int64
	entries    map[FileIdentity]*ManifestEntry

	dim        scd.Dimension
	dimVersion int64
}

// NewMemory creates an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{
		nextFileID: 1,
		entries:    make(map[FileIdentity]*ManifestEntry),
	}
}

func (m *Memory) ResolveFileID(ctx context.Context, id FileIdentity) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[id]; ok {
		return e.FileID, nil
	}
	e := &ManifestEntry{
		FileID:       m.nextFileID,
		Identity:     id,
		Status:       StatusPending,
		DiscoveredAt: time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	m.nextFileID++
	m.entries[id] = e
	return e.FileID, nil
}

func (m *Memory) Lookup(ctx context.Context, id FileIdentity) (*ManifestEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (m *Memory) Claim(ctx context.Context, fileID int64, force bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.byID(fileID)
	if e == nil {
		return false, nil
	}
	switch e.Status {
	case StatusPending, StatusFailed:
	case StatusSucceeded, StatusProcessing:
		// Force re-claims completed files and files a crashed run left
		// in processing; re-runs overwrite the same keys with the same
		// bytes.
		if !force {
			return false, nil
		}
	default:
		return false, nil
	}
	e.Status = StatusProcessing
	e.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *Memory) FilterPending(ctx context.Context, candidates []FileIdentity) ([]FileIdentity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []FileIdentity
	for _, id := range candidates {
		if e, ok := m.entries[id]; ok && e.Status == StatusSucceeded {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

func (m *Memory) UpdateStatus(ctx context.Context, fileID int64, status Status, counts Counts, errorCategory string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.byID(fileID)
	if e == nil {
		return nil
	}
	e.Status = status
	e.Counts = counts
	e.ErrorCategory = errorCategory
	e.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) byID(fileID int64) *ManifestEntry {
	for _, e := range m.entries {
		if e.FileID == fileID {
			return e
		}
	}
	return nil
}

func (m *Memory) Load(ctx context.Context) (scd.Dimension, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := make([]scd.Row, len(m.dim.Rows))
	copy(rows, m.dim.Rows)
	return scd.Dimension{Rows: rows}, m.dimVersion, nil
}

func (m *Memory) Save(ctx context.Context, dim scd.Dimension, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if expectedVersion != m.dimVersion {
		return ErrVersionConflict
	}
	rows := make([]scd.Row, len(dim.Rows))
	copy(rows, dim.Rows)
	m.dim = scd.Dimension{Rows: rows}
	m.dimVersion++
	return nil
}
