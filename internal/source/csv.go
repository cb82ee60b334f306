package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/quantmill/marketlake/internal/tables"
)

// CSVParser is the reference parser for vendors that drop CSV files,
// optionally zstd-compressed (.zst suffix). Values stay as strings; the
// pipeline's validation and conform stages own typing.
type CSVParser struct {
	scanner *Scanner
	decoder *zstd.Decoder
}

// NewCSVParser creates a parser reading bronze objects via the scanner.
func NewCSVParser(scanner *Scanner) (*CSVParser, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &CSVParser{scanner: scanner, decoder: dec}, nil
}

// Parse reads the bronze object behind meta and returns its raw rows,
// keyed by the vendor's own header names.
func (p *CSVParser) Parse(ctx context.Context, meta FileMetadata) ([]tables.Row, error) {
	data, err := p.scanner.ReadAll(ctx, meta.Path)
	if err != nil {
		return nil, err
	}

	if strings.HasSuffix(meta.Path, ".zst") {
		data, err = p.decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress %s: %w", meta.Path, err)
		}
	}

	return ParseCSV(data)
}

// Close releases decoder resources.
func (p *CSVParser) Close() {
	if p.decoder != nil {
		p.decoder.Close()
	}
}

// ParseCSV decodes CSV bytes with a header row into raw rows. Empty
// fields are omitted rather than stored as empty strings, so downstream
// required-field rules see them as absent.
func ParseCSV(data []byte) ([]tables.Row, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("decode csv: missing header row")
	}

	header := records[0]
	rows := make([]tables.Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(tables.Row, len(header))
		for i, col := range header {
			if i >= len(rec) {
				break
			}
			if rec[i] == "" {
				continue
			}
			row[col] = rec[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}
