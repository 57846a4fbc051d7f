package memory

import (
	"context" // standard Go package for request-scoped context (timeouts, cancellation)
	"sync"    // standard Go package for concurrency primitives like Mutex
	"time"    // standard Go package for expiry timestamps

	interfaces "github.com/sheikh-saqib/micropayments-ledger/internal/interfaces" // interface KVStore
)

// MemoryKVStore is an in-memory implementation of interfaces.KVStore.
// It holds a single namespace in a map and is safe for concurrent use.
// Expiry is lazy: once the namespace expires, its ordinary entries are dropped on
// the next access. Pinned entries are kept.
type MemoryKVStore struct {
	mu        sync.Mutex        // mutex to protect entries, pinned and expiresAt
	entries   map[string][]byte // committed key/value pairs, evicted on expiry
	pinned    map[string][]byte // committed key/value pairs that outlive expiry
	expiresAt time.Time         // zero until the first retention extension
	now       func() time.Time  // wall clock, replaceable in tests
}

// Option configures a MemoryKVStore.
type Option func(*MemoryKVStore)

// WithNow replaces the clock used for expiry decisions.
func WithNow(now func() time.Time) Option {
	return func(m *MemoryKVStore) {
		m.now = now
	}
}

// NewMemoryKVStore creates and returns a new, empty MemoryKVStore
func NewMemoryKVStore(opts ...Option) *MemoryKVStore {
	m := &MemoryKVStore{
		entries: make(map[string][]byte),
		pinned:  make(map[string][]byte),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a copy of the value stored under key.
func (m *MemoryKVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {

	m.mu.Lock()         // lock to prevent concurrent modification while reading
	defer m.mu.Unlock() // unlock automatically at the end

	m.evictIfExpired()

	value, ok := m.lookup(key)
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(value), true, nil // return a copy so external code can't modify internal state
}

// Update runs fn against a staged view of the namespace and applies its writes
// only if fn succeeds. The store lock is held for the whole call.
func (m *MemoryKVStore) Update(ctx context.Context, fn func(tx interfaces.KVTx) error) error {

	m.mu.Lock()         // lock for the whole transaction so writers run one at a time
	defer m.mu.Unlock() // unlock automatically at the end

	m.evictIfExpired()

	tx := &memoryTx{
		store:     m,
		staged:    make(map[string][]byte),
		pinned:    make(map[string][]byte),
		expiresAt: m.expiresAt,
	}
	if err := fn(tx); err != nil {
		return err // nothing staged reaches the maps
	}

	for k, v := range tx.staged {
		m.entries[k] = v // apply staged writes
	}
	for k, v := range tx.pinned {
		m.pinned[k] = v
	}
	m.expiresAt = tx.expiresAt // commit the retention extension, if any
	return nil
}

// ExpiresAt reports when the namespace will be evicted. The zero time means never.
func (m *MemoryKVStore) ExpiresAt() time.Time {
	m.mu.Lock()         // lock to read expiresAt consistently
	defer m.mu.Unlock() // unlock automatically at the end
	return m.expiresAt
}

func (m *MemoryKVStore) Close() error {
	return nil // nothing to release
}

// lookup checks pinned entries first. Callers hold mu.
func (m *MemoryKVStore) lookup(key string) ([]byte, bool) {
	if v, ok := m.pinned[key]; ok {
		return v, true
	}
	v, ok := m.entries[key]
	return v, ok
}

// evictIfExpired drops the ordinary entries once the namespace lifetime is over.
// Callers hold mu.
func (m *MemoryKVStore) evictIfExpired() {
	if m.expiresAt.IsZero() || m.now().Before(m.expiresAt) {
		return // still alive
	}
	m.entries = make(map[string][]byte) // pinned entries survive
	m.expiresAt = time.Time{}
}

// memoryTx buffers writes until the surrounding Update succeeds.
type memoryTx struct {
	store     *MemoryKVStore    // committed state, read-through for Get
	staged    map[string][]byte // pending ordinary writes
	pinned    map[string][]byte // pending pinned writes
	expiresAt time.Time         // pending expiry
}

func (tx *memoryTx) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok := tx.pinned[key]; ok {
		return cloneBytes(v), true, nil // own pinned writes first
	}
	if _, ok := tx.store.pinned[key]; !ok {
		if v, ok := tx.staged[key]; ok {
			return cloneBytes(v), true, nil // then own ordinary writes
		}
	}
	v, ok := tx.store.lookup(key)
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(v), true, nil
}

func (tx *memoryTx) Set(ctx context.Context, key string, value []byte) error {
	tx.staged[key] = cloneBytes(value) // copy so the caller can reuse its buffer
	return nil
}

func (tx *memoryTx) SetPinned(ctx context.Context, key string, value []byte) error {
	tx.pinned[key] = cloneBytes(value) // copy so the caller can reuse its buffer
	return nil
}

func (tx *memoryTx) ExtendRetention(ctx context.Context, threshold, extendTo time.Duration) error {
	now := tx.store.now()
	if tx.expiresAt.IsZero() || tx.expiresAt.Sub(now) < threshold {
		tx.expiresAt = now.Add(extendTo) // unset or running low: push it out
	}
	return nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Compile-time check: ensure MemoryKVStore implements KVStore interface
var _ interfaces.KVStore = (*MemoryKVStore)(nil)
