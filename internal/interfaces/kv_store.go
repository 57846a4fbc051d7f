package interfaces

import (
	"context"
	"time"
)

// KVReader reads a single entry from the ledger namespace.
// The boolean is false when the key is absent or was evicted by expiry.
type KVReader interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

// KVTx is the view of the namespace inside one atomic Update.
type KVTx interface {
	KVReader
	Set(ctx context.Context, key string, value []byte) error
	// SetPinned stores value outside the retention window: expiry never evicts it.
	// Get sees pinned keys ahead of ordinary ones.
	SetPinned(ctx context.Context, key string, value []byte) error
	// ExtendRetention keeps the namespace alive for at least extendTo when its remaining
	// lifetime is unbounded-but-unset or below threshold.
	ExtendRetention(ctx context.Context, threshold, extendTo time.Duration) error
}

// KVStore is a persistence backend holding one ledger namespace.
// Writes made inside fn are committed together, or not at all when fn returns an error.
type KVStore interface {
	KVReader
	Update(ctx context.Context, fn func(tx KVTx) error) error
	Close() error
}
