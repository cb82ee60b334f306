package tables

import (
	"errors"
	"strings"
	"testing"
)

func TestDefaultRegistryResolves(t *testing.T) {
	reg, err := DefaultRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	spec, err := reg.Resolve("databento", "trades")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if spec.Table != TradesTable {
		t.Errorf("table = %s, want %s", spec.Table, TradesTable)
	}
	if spec.Renames["ts_event"] != ColEventTsUs {
		t.Errorf("ts_event rename = %q, want %s", spec.Renames["ts_event"], ColEventTsUs)
	}
}

func TestResolveUnknownSource(t *testing.T) {
	reg, err := DefaultRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if _, err := reg.Resolve("bloomberg", "trades"); !errors.Is(err, ErrUnknownSource) {
		t.Fatalf("expected ErrUnknownSource, got %v", err)
	}
	if _, err := reg.Resolve("databento", "quotes"); !errors.Is(err, ErrUnknownSource) {
		t.Fatalf("vendor without the data type must not resolve, got %v", err)
	}
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	specs := []Spec{
		{Vendor: "v", DataType: "trades", Table: TradesTable, Schema: TradesSchema()},
		{Vendor: "v", DataType: "trades", Table: TradesTable, Schema: TradesSchema()},
	}
	if _, err := NewRegistry(specs, nil); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestNewRegistryRejectsUnknownSortKey(t *testing.T) {
	schema := TradesSchema()
	schema.SortKeys = []string{"no_such_column"}
	specs := []Spec{{Vendor: "v", DataType: "trades", Table: TradesTable, Schema: schema}}
	if _, err := NewRegistry(specs, nil); err == nil || !strings.Contains(err.Error(), "sort key") {
		t.Fatalf("expected sort key error, got %v", err)
	}
}

func TestNewRegistryRejectsUnknownVenueField(t *testing.T) {
	specs := []Spec{{
		Vendor:        "v",
		DataType:      "trades",
		Table:         TradesTable,
		Schema:        TradesSchema(),
		VenueRequired: []string{"no_such_column"},
	}}
	if _, err := NewRegistry(specs, nil); err == nil || !strings.Contains(err.Error(), "venue field") {
		t.Fatalf("expected venue field error, got %v", err)
	}
}

func TestNewRegistryRejectsBadTimezone(t *testing.T) {
	specs := []Spec{{Vendor: "v", DataType: "trades", Table: TradesTable, Schema: TradesSchema()}}
	if _, err := NewRegistry(specs, map[string]string{"X": "Mars/Olympus"}); err == nil {
		t.Fatal("expected timezone load error")
	}
}

func TestLocation(t *testing.T) {
	reg, err := DefaultRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	loc, ok := reg.Location("NYSE")
	if !ok || loc.String() != "America/New_York" {
		t.Errorf("NYSE location = %v ok=%v", loc, ok)
	}
	if _, ok := reg.Location("UNKNOWN"); ok {
		t.Error("unknown exchange must not have a location")
	}
}
