package scd

import "sort"

// Resolver answers as-of lookups against a dimension value: which row
// version was valid for a natural key at a given event time. A row never
// resolves against a version that became current after the row's own event
// time; that is what forbids lookahead.
type Resolver struct {
	byKey map[NaturalKey][]Row
}

// NewResolver indexes a dimension for as-of lookup. The dimension is
// assumed valid (Validate has passed), so per-key windows do not overlap.
func NewResolver(dim Dimension) *Resolver {
	byKey := make(map[NaturalKey][]Row)
	for _, r := range dim.Rows {
		byKey[r.Key] = append(byKey[r.Key], r)
	}
	for _, rows := range byKey {
		sort.Slice(rows, func(i, j int) bool {
			return rows[i].ValidFromTsUs < rows[j].ValidFromTsUs
		})
	}
	return &Resolver{byKey: byKey}
}

// Resolve returns the row whose window contains eventTsUs, i.e.
// valid_from <= event_ts < valid_until.
func (r *Resolver) Resolve(key NaturalKey, eventTsUs int64) (Row, bool) {
	rows := r.byKey[key]
	if len(rows) == 0 {
		return Row{}, false
	}
	// First window starting after the event time; the candidate is the one
	// before it.
	i := sort.Search(len(rows), func(i int) bool {
		return rows[i].ValidFromTsUs > eventTsUs
	})
	if i == 0 {
		return Row{}, false
	}
	row := rows[i-1]
	if eventTsUs >= row.ValidUntilTsUs {
		return Row{}, false
	}
	return row, true
}
