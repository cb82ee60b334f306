package tables

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"
)

// TradeRow is the parquet row layout for market_trades.
type TradeRow struct {
	Exchange       string  `parquet:"exchange"`
	ExchangeSymbol string  `parquet:"exchange_symbol"`
	SymbolID       int64   `parquet:"symbol_id"`
	EventTsUs      int64   `parquet:"event_ts_us"`
	TradingDate    string  `parquet:"trading_date"`
	Price          float64 `parquet:"price"`
	Size           float64 `parquet:"size"`
	Side           *string `parquet:"side,optional"`
	TradeID        *string `parquet:"trade_id,optional"`
	FileID         int64   `parquet:"file_id"`
	FileSeq        int64   `parquet:"file_seq"`
}

// QuoteRow is the parquet row layout for market_quotes.
type QuoteRow struct {
	Exchange       string  `parquet:"exchange"`
	ExchangeSymbol string  `parquet:"exchange_symbol"`
	SymbolID       int64   `parquet:"symbol_id"`
	EventTsUs      int64   `parquet:"event_ts_us"`
	TradingDate    string  `parquet:"trading_date"`
	BidPrice       float64 `parquet:"bid_price"`
	BidSize        float64 `parquet:"bid_size"`
	AskPrice       float64 `parquet:"ask_price"`
	AskSize        float64 `parquet:"ask_size"`
	FileID         int64   `parquet:"file_id"`
	FileSeq        int64   `parquet:"file_seq"`
}

// QuarantineParquetRow is the parquet row layout for quarantined rows. The
// original row travels as canonical JSON so nothing is lost regardless of
// which stage rejected it.
type QuarantineParquetRow struct {
	FileID  int64  `parquet:"file_id"`
	Table   string `parquet:"table_name"`
	Stage   string `parquet:"stage"`
	Reason  string `parquet:"reason"`
	Payload string `parquet:"payload"`
}

// QuarantineRecord is the in-memory form of a rejected row.
type QuarantineRecord struct {
	Row    Row
	Stage  string
	Reason string
}

// ParquetOutput is the encoded artifact for one table append.
type ParquetOutput struct {
	Data     []byte
	Checksum string
	RowCount int64
}

// ToParquet encodes normalized rows into the table's parquet layout. Rows
// must already be conformed to the schema; an unexpected shape here is a
// bug upstream, not a per-row condition.
func ToParquet(table string, rows []Row) (*ParquetOutput, error) {
	var (
		data []byte
		err  error
	)
	switch table {
	case TradesTable:
		data, err = writeParquet(encodeTrades(rows))
	case QuotesTable:
		data, err = writeParquet(encodeQuotes(rows))
	default:
		return nil, fmt.Errorf("no parquet layout for table %q", table)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", table, err)
	}
	return &ParquetOutput{
		Data:     data,
		Checksum: ComputeChecksum(data),
		RowCount: int64(len(rows)),
	}, nil
}

// QuarantineToParquet encodes quarantine records for one source file.
func QuarantineToParquet(table string, fileID int64, recs []QuarantineRecord) (*ParquetOutput, error) {
	out := make([]QuarantineParquetRow, len(recs))
	for i, rec := range recs {
		out[i] = QuarantineParquetRow{
			FileID:  fileID,
			Table:   table,
			Stage:   rec.Stage,
			Reason:  rec.Reason,
			Payload: rec.Row.CanonicalJSON(),
		}
	}
	data, err := writeParquet(out)
	if err != nil {
		return nil, fmt.Errorf("encode quarantine for %s: %w", table, err)
	}
	return &ParquetOutput{
		Data:     data,
		Checksum: ComputeChecksum(data),
		RowCount: int64(len(recs)),
	}, nil
}

func encodeTrades(rows []Row) []TradeRow {
	out := make([]TradeRow, len(rows))
	for i, r := range rows {
		t := TradeRow{}
		t.Exchange, _ = r.String(ColExchange)
		t.ExchangeSymbol, _ = r.String(ColExchangeSymbol)
		t.SymbolID, _ = r.Int64(ColSymbolID)
		t.EventTsUs, _ = r.Int64(ColEventTsUs)
		t.TradingDate, _ = r.String(ColTradingDate)
		t.Price, _ = r.Float64("price")
		t.Size, _ = r.Float64("size")
		t.Side = optString(r, "side")
		t.TradeID = optString(r, "trade_id")
		t.FileID, _ = r.Int64(ColFileID)
		t.FileSeq, _ = r.Int64(ColFileSeq)
		out[i] = t
	}
	return out
}

func encodeQuotes(rows []Row) []QuoteRow {
	out := make([]QuoteRow, len(rows))
	for i, r := range rows {
		q := QuoteRow{}
		q.Exchange, _ = r.String(ColExchange)
		q.ExchangeSymbol, _ = r.String(ColExchangeSymbol)
		q.SymbolID, _ = r.Int64(ColSymbolID)
		q.EventTsUs, _ = r.Int64(ColEventTsUs)
		q.TradingDate, _ = r.String(ColTradingDate)
		q.BidPrice, _ = r.Float64("bid_price")
		q.BidSize, _ = r.Float64("bid_size")
		q.AskPrice, _ = r.Float64("ask_price")
		q.AskSize, _ = r.Float64("ask_size")
		q.FileID, _ = r.Int64(ColFileID)
		q.FileSeq, _ = r.Int64(ColFileSeq)
		out[i] = q
	}
	return out
}

func optString(r Row, col string) *string {
	if s, ok := r.String(col); ok {
		return &s
	}
	return nil
}

func writeParquet[T any](rows []T) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := parquet.NewGenericWriter[T](buf, parquet.Compression(&parquet.Zstd))
	if len(rows) > 0 {
		if _, err := w.Write(rows); err != nil {
			return nil, fmt.Errorf("write rows: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close writer: %w", err)
	}
	return buf.Bytes(), nil
}
