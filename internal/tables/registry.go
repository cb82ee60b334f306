// Package tables declares the canonical lake table schemas and the static
// source registry mapping vendor feeds onto them.
package tables

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownSource is returned when a (vendor, data_type) pair has no
// registry entry.
var ErrUnknownSource = errors.New("unknown vendor/data_type combination")

// Spec binds a vendor feed to a canonical table: the target schema, the
// vendor-to-canonical column renames, and any venue-specific required
// fields checked after the generic rules.
type Spec struct {
	Vendor   string
	DataType string
	Table    string
	Schema   Schema

	// Renames maps vendor-native column names to canonical ones.
	// Columns not listed pass through under their original name.
	Renames map[string]string

	// VenueRequired lists canonical columns this venue must populate on
	// every row, beyond what the generic rules demand.
	VenueRequired []string
}

// Registry resolves vendor feeds to table specs and exchanges to their
// trading timezones. All entries are validated eagerly at construction so
// an unknown combination fails at startup, not per file.
type Registry struct {
	specs map[string]*Spec
	zones map[string]*time.Location
}

func specKey(vendor, dataType string) string {
	return vendor + "/" + dataType
}

// NewRegistry builds a registry from specs and an exchange->IANA timezone
// map. Duplicate entries, specs referencing sort keys or venue fields
// outside their schema, and unloadable timezones are all construction
// errors.
func NewRegistry(specs []Spec, exchangeTZ map[string]string) (*Registry, error) {
	if len(specs) == 0 {
		return nil, errors.New("at least one source spec must be configured")
	}

	byKey := make(map[string]*Spec, len(specs))
	for i := range specs {
		s := specs[i]
		if s.Vendor == "" || s.DataType == "" || s.Table == "" {
			return nil, fmt.Errorf("spec %d: vendor, data_type and table are required", i)
		}
		key := specKey(s.Vendor, s.DataType)
		if _, ok := byKey[key]; ok {
			return nil, fmt.Errorf("duplicate spec for %s", key)
		}
		for _, k := range s.Schema.SortKeys {
			if _, ok := s.Schema.Column(k); !ok {
				return nil, fmt.Errorf("spec %s: sort key %q not in schema %s", key, k, s.Table)
			}
		}
		for _, f := range s.VenueRequired {
			if _, ok := s.Schema.Column(f); !ok {
				return nil, fmt.Errorf("spec %s: venue field %q not in schema %s", key, f, s.Table)
			}
		}
		byKey[key] = &s
	}

	zones := make(map[string]*time.Location, len(exchangeTZ))
	for exch, name := range exchangeTZ {
		loc, err := time.LoadLocation(name)
		if err != nil {
			return nil, fmt.Errorf("exchange %s: load timezone %q: %w", exch, name, err)
		}
		zones[exch] = loc
	}

	return &Registry{specs: byKey, zones: zones}, nil
}

// Resolve returns the table spec for a vendor feed.
func (r *Registry) Resolve(vendor, dataType string) (*Spec, error) {
	s, ok := r.specs[specKey(vendor, dataType)]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownSource, vendor, dataType)
	}
	return s, nil
}

// Location returns the trading timezone for an exchange.
func (r *Registry) Location(exchange string) (*time.Location, bool) {
	loc, ok := r.zones[exchange]
	return loc, ok
}

// DefaultExchangeTimezones maps the exchanges the default registry knows
// about to their trading timezones.
func DefaultExchangeTimezones() map[string]string {
	return map[string]string{
		"NYSE":     "America/New_York",
		"NASDAQ":   "America/New_York",
		"CME":      "America/Chicago",
		"LSE":      "Europe/London",
		"XETRA":    "Europe/Berlin",
		"TSE":      "Asia/Tokyo",
		"BINANCE":  "UTC",
		"COINBASE": "UTC",
	}
}

// DefaultSpecs returns the built-in vendor feed registry.
func DefaultSpecs() []Spec {
	return []Spec{
		{
			Vendor:   "databento",
			DataType: "trades",
			Table:    TradesTable,
			Schema:   TradesSchema(),
			Renames: map[string]string{
				"ts_event":   ColEventTsUs,
				"publisher":  ColExchange,
				"raw_symbol": ColExchangeSymbol,
				"sequence":   "trade_id",
			},
			VenueRequired: []string{"side"},
		},
		{
			Vendor:   "tardis",
			DataType: "trades",
			Table:    TradesTable,
			Schema:   TradesSchema(),
			Renames: map[string]string{
				"timestamp": ColEventTsUs,
				"symbol":    ColExchangeSymbol,
				"amount":    "size",
				"id":        "trade_id",
			},
			VenueRequired: []string{"trade_id"},
		},
		{
			Vendor:   "tardis",
			DataType: "quotes",
			Table:    QuotesTable,
			Schema:   QuotesSchema(),
			Renames: map[string]string{
				"timestamp":  ColEventTsUs,
				"symbol":     ColExchangeSymbol,
				"bid_amount": "bid_size",
				"ask_amount": "ask_size",
			},
		},
	}
}

// DefaultRegistry builds the registry from the built-in specs and
// exchange timezones.
func DefaultRegistry() (*Registry, error) {
	return NewRegistry(DefaultSpecs(), DefaultExchangeTimezones())
}
