package source

import (
	"context"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestParseCSV(t *testing.T) {
	data := []byte("ts_event,raw_symbol,price\n1600000000000000,AAPL,101.25\n1600000000000001,MSFT,205.5\n")
	rows, err := ParseCSV(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("parsed %d rows, want 2", len(rows))
	}
	if v, _ := rows[0].String("raw_symbol"); v != "AAPL" {
		t.Errorf("raw_symbol = %q, want AAPL", v)
	}
	// Values stay as strings until the conform stage.
	if _, ok := rows[0]["price"].(string); !ok {
		t.Errorf("price = %T, want string", rows[0]["price"])
	}
}

// Empty CSV fields are absent from the row so required-field rules
// catch them.
func TestParseCSVEmptyFieldsOmitted(t *testing.T) {
	data := []byte("a,b,c\n1,,3\n")
	rows, err := ParseCSV(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := rows[0]["b"]; ok {
		t.Error("empty field must be omitted, not stored")
	}
	if v, _ := rows[0].String("c"); v != "3" {
		t.Errorf("c = %q, want 3", v)
	}
}

func TestParseCSVRaggedRows(t *testing.T) {
	data := []byte("a,b,c\n1,2\n")
	rows, err := ParseCSV(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := rows[0]["c"]; ok {
		t.Error("short record must not populate trailing columns")
	}
}

func TestParseCSVEmptyInput(t *testing.T) {
	if _, err := ParseCSV(nil); err == nil {
		t.Fatal("expected error for missing header row")
	}
}

func TestParseCSVHeaderOnly(t *testing.T) {
	rows, err := ParseCSV([]byte("a,b,c\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(rows))
	}
}

func TestParseZstdCompressed(t *testing.T) {
	dir := t.TempDir()
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	compressed := enc.EncodeAll([]byte("a,b\n1,2\n"), nil)
	enc.Close()

	writeBronzeFile(t, dir, "databento/trades/f.csv.zst", string(compressed))

	scanner, err := NewScanner(context.Background(), ScannerConfig{BucketURL: "file://" + dir})
	if err != nil {
		t.Fatalf("open scanner: %v", err)
	}
	defer scanner.Close()

	parser, err := NewCSVParser(scanner)
	if err != nil {
		t.Fatalf("parser: %v", err)
	}
	defer parser.Close()

	rows, err := parser.Parse(context.Background(), FileMetadata{Path: "databento/trades/f.csv.zst"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("parsed %d rows, want 1", len(rows))
	}
	if v, _ := rows[0].String("b"); v != "2" {
		t.Errorf("b = %q, want 2", v)
	}
}
