package tables

import (
	"encoding/json"
	"strconv"
)

// Row is the vendor-neutral intermediate row representation used by the
// pipeline stages. Values may still be strings straight out of a vendor
// parser; the conform stage casts them to the declared column types.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns the column value as a string.
func (r Row) String(col string) (string, bool) {
	v, ok := r[col]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Int64 returns the column value as an int64, accepting int64, int,
// integral float64 and numeric strings.
func (r Row) Int64(col string) (int64, bool) {
	v, ok := r[col]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		if t == float64(int64(t)) {
			return int64(t), true
		}
		return 0, false
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Float64 returns the column value as a float64, accepting float64, int64,
// int and numeric strings.
func (r Row) Float64(col string) (float64, bool) {
	v, ok := r[col]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// CanonicalJSON serializes the row with sorted keys. Used as the final
// lineage tie-break and as the quarantine payload, so it must be stable for
// a given row.
func (r Row) CanonicalJSON() string {
	// encoding/json sorts map keys, so this is deterministic.
	b, err := json.Marshal(map[string]any(r))
	if err != nil {
		return ""
	}
	return string(b)
}
