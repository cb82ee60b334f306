package scd

import "testing"

// Window boundaries are half-open: valid_from is inclusive, valid_until
// exclusive.
func TestResolveBoundaries(t *testing.T) {
	fb := key("NYSE", "FB")
	dim := Dimension{Rows: []Row{
		{Key: fb, Attributes: attrs("FB"), ValidFromTsUs: 1000, ValidUntilTsUs: 2000, SymbolID: 1},
		{Key: fb, Attributes: attrs("META"), ValidFromTsUs: 2000, ValidUntilTsUs: MaxValidUntil, SymbolID: 2},
	}}
	resolver := NewResolver(dim)

	cases := []struct {
		name     string
		ts       int64
		symbolID int64
		ok       bool
	}{
		{"before first window", 999, 0, false},
		{"valid_from inclusive", 1000, 1, true},
		{"inside first window", 1500, 1, true},
		{"valid_until exclusive, next window starts", 2000, 2, true},
		{"inside open-ended window", 1 << 60, 2, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			row, ok := resolver.Resolve(fb, tc.ts)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && row.SymbolID != tc.symbolID {
				t.Errorf("symbol id = %d, want %d", row.SymbolID, tc.symbolID)
			}
		})
	}
}

func TestResolveUnknownKey(t *testing.T) {
	resolver := NewResolver(Dimension{})
	if _, ok := resolver.Resolve(key("NYSE", "NOPE"), 1000); ok {
		t.Error("unknown key must not resolve")
	}
}

func TestResolveGapBetweenWindows(t *testing.T) {
	abc := key("NYSE", "ABC")
	dim := Dimension{Rows: []Row{
		{Key: abc, ValidFromTsUs: 1000, ValidUntilTsUs: 2000, SymbolID: 1},
		{Key: abc, ValidFromTsUs: 3000, ValidUntilTsUs: MaxValidUntil, SymbolID: 2},
	}}
	resolver := NewResolver(dim)

	if _, ok := resolver.Resolve(abc, 2500); ok {
		t.Error("timestamps in the gap must not resolve")
	}
	if row, ok := resolver.Resolve(abc, 3000); !ok || row.SymbolID != 2 {
		t.Errorf("relisting start must resolve to the new window, got %+v ok=%v", row, ok)
	}
}
