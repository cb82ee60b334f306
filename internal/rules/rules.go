// Package rules holds the row validation predicates. Rules are pure:
// a rule inspects one row and returns a rejection reason or accepts it.
// Rejected rows go to quarantine, never get dropped, and never fail the
// file.
package rules

import (
	"fmt"
	"strings"

	"github.com/quantmill/marketlake/internal/tables"
)

// Rule classifies a single row. An empty reason means the row passes.
type Rule struct {
	Name  string
	Check func(tables.Row) (reason string)
}

// Rejection pairs a rejected row with the reason it failed.
type Rejection struct {
	Row    tables.Row
	Reason string
}

// Apply runs rules over rows in order, splitting them into accepted rows
// and rejections. Input order is preserved on both sides; a row is
// rejected by the first rule it fails.
func Apply(rows []tables.Row, ruleSet []Rule) (accepted []tables.Row, rejected []Rejection) {
	accepted = make([]tables.Row, 0, len(rows))
	for _, row := range rows {
		reason := ""
		for _, rule := range ruleSet {
			if r := rule.Check(row); r != "" {
				reason = r
				break
			}
		}
		if reason != "" {
			rejected = append(rejected, Rejection{Row: row, Reason: reason})
			continue
		}
		accepted = append(accepted, row)
	}
	return accepted, rejected
}

// Generic returns the vendor-independent rules for a table spec: natural
// key presence, a parseable positive event timestamp, a derived trading
// date, and sane numeric fields for the table's value columns.
func Generic(spec *tables.Spec) []Rule {
	rules := []Rule{
		requireNonBlank(tables.ColExchange),
		requireNonBlank(tables.ColExchangeSymbol),
		{
			Name: "event_ts_us",
			Check: func(r tables.Row) string {
				ts, ok := r.Int64(tables.ColEventTsUs)
				if !ok {
					return "missing or non-integer event_ts_us"
				}
				if ts <= 0 {
					return fmt.Sprintf("non-positive event_ts_us %d", ts)
				}
				return ""
			},
		},
		requireNonBlank(tables.ColTradingDate),
	}

	switch spec.Table {
	case tables.TradesTable:
		rules = append(rules,
			requirePositive("price"),
			requireNonNegative("size"),
		)
	case tables.QuotesTable:
		rules = append(rules,
			requirePositive("bid_price"),
			requirePositive("ask_price"),
			requireNonNegative("bid_size"),
			requireNonNegative("ask_size"),
		)
	}
	return rules
}

// Venue returns the venue-specific rules declared by the spec, applied
// after the generic set.
func Venue(spec *tables.Spec) []Rule {
	rules := make([]Rule, 0, len(spec.VenueRequired))
	for _, field := range spec.VenueRequired {
		rules = append(rules, requireNonBlank(field))
	}
	return rules
}

func requireNonBlank(col string) Rule {
	return Rule{
		Name: col,
		Check: func(r tables.Row) string {
			s, ok := r.String(col)
			if !ok || strings.TrimSpace(s) == "" {
				return fmt.Sprintf("missing required field %s", col)
			}
			return ""
		},
	}
}

func requirePositive(col string) Rule {
	return Rule{
		Name: col,
		Check: func(r tables.Row) string {
			f, ok := r.Float64(col)
			if !ok {
				return fmt.Sprintf("missing or non-numeric %s", col)
			}
			if f <= 0 {
				return fmt.Sprintf("non-positive %s %v", col, f)
			}
			return ""
		},
	}
}

func requireNonNegative(col string) Rule {
	return Rule{
		Name: col,
		Check: func(r tables.Row) string {
			f, ok := r.Float64(col)
			if !ok {
				return fmt.Sprintf("missing or non-numeric %s", col)
			}
			if f < 0 {
				return fmt.Sprintf("negative %s %v", col, f)
			}
			return ""
		},
	}
}
