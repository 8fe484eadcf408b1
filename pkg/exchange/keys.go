package exchange

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Pebble key schema. Prefix-based so that whole families can be range
// scanned on boot, with numeric ids zero-padded for lexicographic order.
const (
	prefixBalance   = "bal:"  // ledger balance entries
	prefixOrder     = "ord:"  // order records
	prefixCancelled = "cxl:"  // cancelled-set membership
	prefixFilled    = "fil:"  // filled-set membership
	prefixEvent     = "evt:"  // append-only event journal
	prefixMeta      = "meta:" // singleton state (counters, fee config)
)

// Meta key names.
const (
	metaOrderCount = "ordercount"
	metaEventSeq   = "eventseq"
	metaAdmin      = "admin"
	metaFeeAccount = "feeaccount"
	metaFeePercent = "feepercent"
)

// balanceKey returns the key for one (asset, account) ledger entry.
// Format: "bal:{asset}:{account}"
func balanceKey(asset, account common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixBalance, asset.Hex(), account.Hex()))
}

// balanceKeyParse recovers (asset, account) from a balance key.
func balanceKeyParse(key []byte) (common.Address, common.Address, error) {
	rest := strings.TrimPrefix(string(key), prefixBalance)
	parts := strings.Split(rest, ":")
	if len(parts) != 2 || !common.IsHexAddress(parts[0]) || !common.IsHexAddress(parts[1]) {
		return common.Address{}, common.Address{}, fmt.Errorf("malformed balance key: %q", key)
	}
	return common.HexToAddress(parts[0]), common.HexToAddress(parts[1]), nil
}

// orderKey returns the key for an order record.
// Format: "ord:{id:020d}"
func orderKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixOrder, id))
}

func cancelledKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixCancelled, id))
}

func filledKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixFilled, id))
}

// eventKey returns the journal key for one event.
// Format: "evt:{seq:020d}", so iteration order is emission order.
func eventKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixEvent, seq))
}

func metaKey(name string) []byte {
	return []byte(prefixMeta + name)
}

// idFromKey recovers the numeric id from a zero-padded key suffix.
func idFromKey(key []byte, prefix string) (uint64, error) {
	return strconv.ParseUint(strings.TrimPrefix(string(key), prefix), 10, 64)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan:
// the prefix with its last byte incremented.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
