// Package lineage stamps rows with their source file identity and their
// deterministic position within the file.
package lineage

import (
	"sort"

	"github.com/quantmill/marketlake/internal/tables"
)

// Assign orders rows by the table's sort keys and stamps file_id and a
// 1-indexed file_seq over that order. The row set plus the file id fully
// determine every file_seq value, which is what makes replays
// byte-identical: ties on the sort keys fall back to the row's canonical
// JSON, so the order is total.
func Assign(rows []tables.Row, fileID int64, sortKeys []string) []tables.Row {
	out := make([]tables.Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}

	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i], out[j], sortKeys)
	})

	for i, r := range out {
		r[tables.ColFileID] = fileID
		r[tables.ColFileSeq] = int64(i + 1)
	}
	return out
}

func less(a, b tables.Row, sortKeys []string) bool {
	for _, key := range sortKeys {
		if c := compareValue(a[key], b[key]); c != 0 {
			return c < 0
		}
	}
	return a.CanonicalJSON() < b.CanonicalJSON()
}

// compareValue orders two column values of the same declared kind. Absent
// values sort first so rows missing an optional sort key still order
// deterministically.
func compareValue(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	switch av := a.(type) {
	case int64:
		if bv, ok := b.(int64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			default:
				return 0
			}
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			default:
				return 0
			}
		}
	case string:
		if bv, ok := b.(string); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			default:
				return 0
			}
		}
	}
	// Mixed representations (e.g. pre-conform strings vs typed values):
	// fall through to the caller's canonical JSON tie-break.
	return 0
}
