package scd

import (
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/crypto/blake2b"
)

// SymbolID derives the surrogate id for a dimension row version. It hashes
// exchange|exchange_symbol|valid_from with BLAKE2b-256 and takes the first
// 8 bytes big-endian, masked non-negative. Ids are reproducible without a
// central counter and stable across row ordering.
func SymbolID(key NaturalKey, validFromTsUs int64) int64 {
	h := blake2b.Sum256([]byte(fmt.Sprintf("%s|%s|%d",
		key.Exchange, key.ExchangeSymbol, validFromTsUs)))
	return int64(binary.BigEndian.Uint64(h[:8]) & math.MaxInt64)
}
