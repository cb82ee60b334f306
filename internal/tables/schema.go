package tables

// Kind enumerates the canonical column types.
type Kind int

const (
	KindString Kind = iota
	KindInt64
	KindFloat64
	// KindDate is a calendar date carried as a "YYYY-MM-DD" string.
	KindDate
)

// Column declares one column of a canonical table schema.
type Column struct {
	Name     string
	Kind     Kind
	Required bool
}

// Schema declares the canonical shape of a lake table. SortKeys define the
// deterministic order rows are sequenced in before lineage assignment.
type Schema struct {
	Table    string
	Columns  []Column
	SortKeys []string
}

// Column returns the declared column with the given name.
func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Lineage columns stamped on every accepted row.
const (
	ColFileID  = "file_id"
	ColFileSeq = "file_seq"
)

// Columns shared by all market-data tables.
const (
	ColExchange       = "exchange"
	ColExchangeSymbol = "exchange_symbol"
	ColSymbolID       = "symbol_id"
	ColEventTsUs      = "event_ts_us"
	ColTradingDate    = "trading_date"
)

// TradesTable is the canonical trade prints table.
const TradesTable = "market_trades"

// QuotesTable is the canonical top-of-book quotes table.
const QuotesTable = "market_quotes"

// TradesSchema returns the canonical schema for market_trades.
func TradesSchema() Schema {
	return Schema{
		Table: TradesTable,
		Columns: []Column{
			{Name: ColExchange, Kind: KindString, Required: true},
			{Name: ColExchangeSymbol, Kind: KindString, Required: true},
			{Name: ColSymbolID, Kind: KindInt64, Required: true},
			{Name: ColEventTsUs, Kind: KindInt64, Required: true},
			{Name: ColTradingDate, Kind: KindDate, Required: true},
			{Name: "price", Kind: KindFloat64, Required: true},
			{Name: "size", Kind: KindFloat64, Required: true},
			{Name: "side", Kind: KindString, Required: false},
			{Name: "trade_id", Kind: KindString, Required: false},
			{Name: ColFileID, Kind: KindInt64, Required: true},
			{Name: ColFileSeq, Kind: KindInt64, Required: true},
		},
		SortKeys: []string{ColEventTsUs, ColExchange, ColExchangeSymbol, "trade_id"},
	}
}

// QuotesSchema returns the canonical schema for market_quotes.
func QuotesSchema() Schema {
	return Schema{
		Table: QuotesTable,
		Columns: []Column{
			{Name: ColExchange, Kind: KindString, Required: true},
			{Name: ColExchangeSymbol, Kind: KindString, Required: true},
			{Name: ColSymbolID, Kind: KindInt64, Required: true},
			{Name: ColEventTsUs, Kind: KindInt64, Required: true},
			{Name: ColTradingDate, Kind: KindDate, Required: true},
			{Name: "bid_price", Kind: KindFloat64, Required: true},
			{Name: "bid_size", Kind: KindFloat64, Required: true},
			{Name: "ask_price", Kind: KindFloat64, Required: true},
			{Name: "ask_size", Kind: KindFloat64, Required: true},
			{Name: ColFileID, Kind: KindInt64, Required: true},
			{Name: ColFileSeq, Kind: KindInt64, Required: true},
		},
		SortKeys: []string{ColEventTsUs, ColExchange, ColExchangeSymbol},
	}
}

// SchemaVersion identifies the canonical schema generation. Schema changes
// require a full lake rebuild, so this only moves on breaking changes.
const SchemaVersion = "1.0.0"
