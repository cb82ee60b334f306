package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeBronzeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestScanDiscoversVendorLayout(t *testing.T) {
	dir := t.TempDir()
	writeBronzeFile(t, dir, "databento/trades/2020-09-13.csv", "a,b\n1,2\n")
	writeBronzeFile(t, dir, "tardis/quotes/2020-09-13.csv", "a,b\n3,4\n")
	writeBronzeFile(t, dir, "stray.csv", "a,b\n5,6\n")

	scanner, err := NewScanner(context.Background(), ScannerConfig{BucketURL: "file://" + dir})
	if err != nil {
		t.Fatalf("open scanner: %v", err)
	}
	defer scanner.Close()

	metas, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("discovered %d files, want 2 (stray file outside layout skipped)", len(metas))
	}
	byVendor := map[string]FileMetadata{}
	for _, m := range metas {
		byVendor[m.Vendor] = m
	}
	db, ok := byVendor["databento"]
	if !ok || db.DataType != "trades" {
		t.Fatalf("databento file missing or wrong: %+v", byVendor)
	}
	if db.ContentHash == "" {
		t.Error("content hash must be set")
	}
}

// Identical bytes under different names share a content hash; the
// bronze path still distinguishes their identities.
func TestScanHashIsContentBased(t *testing.T) {
	dir := t.TempDir()
	writeBronzeFile(t, dir, "databento/trades/a.csv", "a,b\n1,2\n")
	writeBronzeFile(t, dir, "databento/trades/b.csv", "a,b\n1,2\n")
	writeBronzeFile(t, dir, "databento/trades/c.csv", "a,b\n9,9\n")

	scanner, err := NewScanner(context.Background(), ScannerConfig{BucketURL: "file://" + dir})
	if err != nil {
		t.Fatalf("open scanner: %v", err)
	}
	defer scanner.Close()

	metas, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	hashes := map[string]string{}
	for _, m := range metas {
		hashes[filepath.Base(m.Path)] = m.ContentHash
	}
	if hashes["a.csv"] != hashes["b.csv"] {
		t.Error("identical content must hash identically")
	}
	if hashes["a.csv"] == hashes["c.csv"] {
		t.Error("different content must hash differently")
	}
}

func TestSplitKey(t *testing.T) {
	cases := []struct {
		key      string
		vendor   string
		dataType string
		ok       bool
	}{
		{"databento/trades/f.csv", "databento", "trades", true},
		{"databento/trades/2020/09/f.csv", "databento", "trades", true},
		{"databento/f.csv", "", "", false},
		{"f.csv", "", "", false},
		{"/trades/f.csv", "", "", false},
	}
	for _, tc := range cases {
		vendor, dataType, ok := splitKey(tc.key)
		if vendor != tc.vendor || dataType != tc.dataType || ok != tc.ok {
			t.Errorf("splitKey(%q) = %q, %q, %v; want %q, %q, %v",
				tc.key, vendor, dataType, ok, tc.vendor, tc.dataType, tc.ok)
		}
	}
}
