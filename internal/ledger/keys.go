package ledger

import (
	"strconv"

	"github.com/pkg/errors"
)

// CounterTag is the symbol key holding the number of payments recorded so far.
const CounterTag = "P_COUNT"

const (
	symbolPrefix = "sym:"
	u64Prefix    = "u64:"
)

// SymbolKey encodes a fixed tag key. The prefix keeps tags and ids in disjoint key spaces.
func SymbolKey(tag string) string {
	return symbolPrefix + tag
}

// PaymentKey encodes the key a payment is stored under.
func PaymentKey(id uint64) string {
	return u64Prefix + strconv.FormatUint(id, 10)
}

func counterKey() string {
	return SymbolKey(CounterTag)
}

func encodeCounter(n uint64) []byte {
	return []byte(strconv.FormatUint(n, 10))
}

func decodeCounter(raw []byte) (uint64, error) {
	n, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "decode counter %q", raw)
	}
	return n, nil
}
