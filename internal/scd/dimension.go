// Package scd maintains the slowly-changing symbol dimension. All
// transforms are pure: they take a dimension value and return a new one,
// leaving versioning and commit to the storage boundary.
package scd

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// MaxValidUntil is the open-ended validity sentinel for current rows.
const MaxValidUntil = int64(math.MaxInt64)

// ErrInvariant is wrapped by every dimension invariant violation.
var ErrInvariant = errors.New("dimension invariant violation")

// NaturalKey is the durable business identifier of a listed instrument,
// constant across dimension versions.
type NaturalKey struct {
	Exchange       string
	ExchangeSymbol string
}

func (k NaturalKey) String() string {
	return k.Exchange + ":" + k.ExchangeSymbol
}

// Attributes are the tracked instrument attributes. Any change to these
// closes the current row and opens a new version.
type Attributes struct {
	CanonicalSymbol string
	MarketType      string
	BaseAsset       string
	QuoteAsset      string
	TickSize        float64
	LotSize         float64
	ContractSize    float64
}

// Row is one versioned dimension row. A row is current when its validity
// window is open-ended.
type Row struct {
	Key NaturalKey
	Attributes
	ValidFromTsUs  int64
	ValidUntilTsUs int64
	SymbolID       int64
}

// Current reports whether the row's validity window is open-ended.
func (r Row) Current() bool {
	return r.ValidUntilTsUs == MaxValidUntil
}

// Snapshot is an instrument listing as observed at a point in time:
// natural key to tracked attributes.
type Snapshot map[NaturalKey]Attributes

// Dimension is an immutable dimension value. Rows are kept sorted by
// (exchange, exchange_symbol, valid_from) so transforms and serialization
// are deterministic.
type Dimension struct {
	Rows []Row
}

// sortedKeys returns snapshot keys in deterministic order.
func sortedKeys(snap Snapshot) []NaturalKey {
	keys := make([]NaturalKey, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Exchange != keys[j].Exchange {
			return keys[i].Exchange < keys[j].Exchange
		}
		return keys[i].ExchangeSymbol < keys[j].ExchangeSymbol
	})
	return keys
}

func sortRows(rows []Row) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Key.Exchange != b.Key.Exchange {
			return a.Key.Exchange < b.Key.Exchange
		}
		if a.Key.ExchangeSymbol != b.Key.ExchangeSymbol {
			return a.Key.ExchangeSymbol < b.Key.ExchangeSymbol
		}
		return a.ValidFromTsUs < b.ValidFromTsUs
	})
}

// Bootstrap builds the initial dimension from a snapshot: one current row
// per natural key, valid from effectiveTsUs, symbol ids assigned.
func Bootstrap(snap Snapshot, effectiveTsUs int64) (Dimension, error) {
	rows := make([]Row, 0, len(snap))
	for _, key := range sortedKeys(snap) {
		rows = append(rows, Row{
			Key:            key,
			Attributes:     snap[key],
			ValidFromTsUs:  effectiveTsUs,
			ValidUntilTsUs: MaxValidUntil,
			SymbolID:       SymbolID(key, effectiveTsUs),
		})
	}
	dim := Dimension{Rows: rows}
	if err := Validate(dim); err != nil {
		return Dimension{}, err
	}
	return dim, nil
}

// Upsert applies a new snapshot observation at effectiveTsUs. Keys whose
// tracked attributes changed get their current row closed and a new
// current row opened; unchanged keys are a no-op; keys absent from the
// dimension are new listings. Keys in delistings get their current row
// closed with no replacement. A key present in both the snapshot and the
// delistings is treated as delisted.
func Upsert(dim Dimension, snap Snapshot, effectiveTsUs int64, delistings []NaturalKey) (Dimension, error) {
	delisted := make(map[NaturalKey]bool, len(delistings))
	for _, k := range delistings {
		delisted[k] = true
	}

	current := make(map[NaturalKey]int, len(dim.Rows))
	rows := make([]Row, len(dim.Rows))
	copy(rows, dim.Rows)
	for i, r := range rows {
		if r.Current() {
			current[r.Key] = i
		}
	}

	closeCurrent := func(key NaturalKey) error {
		i, ok := current[key]
		if !ok {
			return nil
		}
		if effectiveTsUs <= rows[i].ValidFromTsUs {
			return fmt.Errorf("%w: effective ts %d not after valid_from %d for %s",
				ErrInvariant, effectiveTsUs, rows[i].ValidFromTsUs, key)
		}
		rows[i].ValidUntilTsUs = effectiveTsUs
		delete(current, key)
		return nil
	}

	for _, key := range sortedKeys(snap) {
		if delisted[key] {
			continue
		}
		if i, ok := current[key]; ok {
			if rows[i].Attributes == snap[key] {
				continue
			}
			if err := closeCurrent(key); err != nil {
				return Dimension{}, err
			}
		}
		rows = append(rows, Row{
			Key:            key,
			Attributes:     snap[key],
			ValidFromTsUs:  effectiveTsUs,
			ValidUntilTsUs: MaxValidUntil,
			SymbolID:       SymbolID(key, effectiveTsUs),
		})
	}

	for _, key := range sortedNaturalKeys(delistings) {
		if err := closeCurrent(key); err != nil {
			return Dimension{}, err
		}
	}

	sortRows(rows)
	out := Dimension{Rows: rows}
	if err := Validate(out); err != nil {
		return Dimension{}, err
	}
	return out, nil
}

func sortedNaturalKeys(keys []NaturalKey) []NaturalKey {
	out := make([]NaturalKey, len(keys))
	copy(out, keys)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Exchange != out[j].Exchange {
			return out[i].Exchange < out[j].Exchange
		}
		return out[i].ExchangeSymbol < out[j].ExchangeSymbol
	})
	return out
}

// Validate checks the dimension invariants: strict window ordering, unique
// (key, valid_from), non-overlapping windows per key, and at most one
// current row per key.
func Validate(dim Dimension) error {
	byKey := make(map[NaturalKey][]Row)
	for _, r := range dim.Rows {
		if r.ValidFromTsUs >= r.ValidUntilTsUs {
			return fmt.Errorf("%w: %s window [%d, %d) is not strictly ordered",
				ErrInvariant, r.Key, r.ValidFromTsUs, r.ValidUntilTsUs)
		}
		byKey[r.Key] = append(byKey[r.Key], r)
	}

	for key, rows := range byKey {
		sort.Slice(rows, func(i, j int) bool {
			return rows[i].ValidFromTsUs < rows[j].ValidFromTsUs
		})
		currentCount := 0
		for i, r := range rows {
			if r.Current() {
				currentCount++
			}
			if i == 0 {
				continue
			}
			prev := rows[i-1]
			if r.ValidFromTsUs == prev.ValidFromTsUs {
				return fmt.Errorf("%w: duplicate primary key (%s, %d)",
					ErrInvariant, key, r.ValidFromTsUs)
			}
			if prev.ValidUntilTsUs > r.ValidFromTsUs {
				return fmt.Errorf("%w: %s windows [%d, %d) and [%d, %d) overlap",
					ErrInvariant, key,
					prev.ValidFromTsUs, prev.ValidUntilTsUs,
					r.ValidFromTsUs, r.ValidUntilTsUs)
			}
		}
		if currentCount > 1 {
			return fmt.Errorf("%w: %s has %d current rows", ErrInvariant, key, currentCount)
		}
	}
	return nil
}

// AssignSymbolIDs re-derives every row's symbol id. Bootstrap and Upsert
// already stamp ids on new rows; this exists to re-stamp a dimension loaded
// from a store that predates id assignment.
func AssignSymbolIDs(dim Dimension) Dimension {
	rows := make([]Row, len(dim.Rows))
	copy(rows, dim.Rows)
	for i := range rows {
		rows[i].SymbolID = SymbolID(rows[i].Key, rows[i].ValidFromTsUs)
	}
	return Dimension{Rows: rows}
}
