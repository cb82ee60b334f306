// Package conform normalizes validated rows onto a canonical table schema.
package conform

import (
	"fmt"
	"strconv"
	"time"

	"github.com/quantmill/marketlake/internal/tables"
)

// MissingColumnError reports a required column entirely absent from the
// input. It is a configuration-level failure, never a per-row one: a feed
// that drops a required column needs operator attention, not quarantine.
type MissingColumnError struct {
	Table  string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("required column %q absent from input for table %s", e.Column, e.Table)
}

// Normalize conforms rows to the schema: declared-but-absent nullable
// columns become nil, present columns are cast to their declared kinds,
// undeclared columns are dropped. Rows that reach this stage have passed
// validation, so a cast failure is an internal defect and aborts the file.
func Normalize(rows []tables.Row, schema tables.Schema) ([]tables.Row, error) {
	if len(rows) == 0 {
		return []tables.Row{}, nil
	}

	for _, col := range schema.Columns {
		if !col.Required {
			continue
		}
		present := false
		for _, r := range rows {
			if v, ok := r[col.Name]; ok && v != nil {
				present = true
				break
			}
		}
		if !present {
			return nil, &MissingColumnError{Table: schema.Table, Column: col.Name}
		}
	}

	out := make([]tables.Row, len(rows))
	for i, r := range rows {
		conformed := make(tables.Row, len(schema.Columns))
		for _, col := range schema.Columns {
			v, ok := r[col.Name]
			if !ok || v == nil {
				conformed[col.Name] = nil
				continue
			}
			cast, err := castValue(v, col.Kind)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i, col.Name, err)
			}
			conformed[col.Name] = cast
		}
		out[i] = conformed
	}
	return out, nil
}

func castValue(v any, kind tables.Kind) (any, error) {
	switch kind {
	case tables.KindString:
		switch t := v.(type) {
		case string:
			return t, nil
		case int64:
			return strconv.FormatInt(t, 10), nil
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64), nil
		}
	case tables.KindInt64:
		switch t := v.(type) {
		case int64:
			return t, nil
		case int:
			return int64(t), nil
		case float64:
			if t == float64(int64(t)) {
				return int64(t), nil
			}
		case string:
			n, err := strconv.ParseInt(t, 10, 64)
			if err == nil {
				return n, nil
			}
		}
	case tables.KindFloat64:
		switch t := v.(type) {
		case float64:
			return t, nil
		case int64:
			return float64(t), nil
		case int:
			return float64(t), nil
		case string:
			f, err := strconv.ParseFloat(t, 64)
			if err == nil {
				return f, nil
			}
		}
	case tables.KindDate:
		if s, ok := v.(string); ok {
			if _, err := time.Parse("2006-01-02", s); err == nil {
				return s, nil
			}
		}
	}
	return nil, fmt.Errorf("cannot cast %T value %v to kind %d", v, v, kind)
}
