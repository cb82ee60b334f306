package conform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmill/marketlake/internal/tables"
)

func validTrade() tables.Row {
	return tables.Row{
		tables.ColExchange:       "NYSE",
		tables.ColExchangeSymbol: "AAPL",
		tables.ColSymbolID:       int64(12345),
		tables.ColEventTsUs:      "1600000000000000",
		tables.ColTradingDate:    "2020-09-13",
		tables.ColFileID:         int64(1),
		tables.ColFileSeq:        int64(1),
		"price":                  "101.25",
		"size":                   "10",
	}
}

func TestNormalizeCastsToDeclaredKinds(t *testing.T) {
	out, err := Normalize([]tables.Row{validTrade()}, tables.TradesSchema())
	require.NoError(t, err)
	row := out[0]

	assert.Equal(t, int64(1600000000000000), row[tables.ColEventTsUs])
	assert.Equal(t, 101.25, row["price"])
	assert.Equal(t, 10.0, row["size"])
}

func TestNormalizeNullableAbsentBecomesNil(t *testing.T) {
	out, err := Normalize([]tables.Row{validTrade()}, tables.TradesSchema())
	require.NoError(t, err)
	row := out[0]

	v, present := row["side"]
	assert.True(t, present, "nullable column must be materialized")
	assert.Nil(t, v)
	v, present = row["trade_id"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestNormalizeDropsUndeclaredColumns(t *testing.T) {
	row := validTrade()
	row["vendor_extra"] = "noise"

	out, err := Normalize([]tables.Row{row}, tables.TradesSchema())
	require.NoError(t, err)
	assert.NotContains(t, out[0], "vendor_extra")
}

func TestNormalizeMissingRequiredColumn(t *testing.T) {
	row := validTrade()
	delete(row, "price")

	_, err := Normalize([]tables.Row{row}, tables.TradesSchema())
	var missing *MissingColumnError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "price", missing.Column)
	assert.Equal(t, tables.TradesTable, missing.Table)
}

// The column check is per file, not per row: a column present on some
// rows does not trigger the configuration failure.
func TestNormalizeRequiredColumnOnSomeRows(t *testing.T) {
	a := validTrade()
	b := validTrade()
	b["side"] = "buy"

	out, err := Normalize([]tables.Row{a, b}, tables.TradesSchema())
	require.NoError(t, err)
	assert.Nil(t, out[0]["side"])
	assert.Equal(t, "buy", out[1]["side"])
}

func TestNormalizeEmptyInput(t *testing.T) {
	out, err := Normalize(nil, tables.TradesSchema())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCastValueRejectsMismatch(t *testing.T) {
	_, err := castValue("not-a-number", tables.KindInt64)
	assert.Error(t, err, "non-numeric string must not cast to int64")

	_, err = castValue(1.5, tables.KindInt64)
	assert.Error(t, err, "fractional float must not cast to int64")

	_, err = castValue("2020-13-45", tables.KindDate)
	assert.Error(t, err, "invalid date must not cast")
}
