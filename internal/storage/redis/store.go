package redis

import (
	"context"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	interfaces "github.com/sheikh-saqib/micropayments-ledger/internal/interfaces"
)

const (
	keyPrefix    = "ledger:"
	pinnedSuffix = ":pinned"
	maxTxRetries = 16
)

// ErrTxConflict is returned when an Update lost the optimistic race maxTxRetries times in a row.
var ErrTxConflict = errors.New("redis update kept conflicting")

// RedisKVStore keeps the ordinary entries of a namespace in one hash so that a single
// PEXPIRE governs their retention. Pinned entries live in a second hash that never expires.
type RedisKVStore struct {
	rdb       *goredis.Client
	key       string
	pinnedKey string
}

func NewRedisKVStore(rdb *goredis.Client, namespace string) *RedisKVStore {
	return &RedisKVStore{
		rdb:       rdb,
		key:       keyPrefix + namespace,
		pinnedKey: keyPrefix + namespace + pinnedSuffix,
	}
}

func (s *RedisKVStore) Get(ctx context.Context, field string) ([]byte, bool, error) {
	return hget(ctx, s.rdb, field, s.pinnedKey, s.key)
}

// Update watches the namespace hash, runs fn, and applies the staged writes in MULTI/EXEC.
// A concurrent modification aborts EXEC and fn is run again from scratch.
func (s *RedisKVStore) Update(ctx context.Context, fn func(tx interfaces.KVTx) error) error {
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.rdb.Watch(ctx, func(tx *goredis.Tx) error {
			rtx := &redisTx{
				tx:        tx,
				key:       s.key,
				pinnedKey: s.pinnedKey,
				staged:    make(map[string][]byte),
				pinned:    make(map[string][]byte),
			}
			if err := fn(rtx); err != nil {
				return err
			}
			return rtx.commit(ctx)
		}, s.key, s.pinnedKey)

		if err == goredis.TxFailedErr {
			continue
		}
		return err
	}
	return ErrTxConflict
}

// TTL reports the remaining lifetime of the ordinary entries, negative when it has none.
func (s *RedisKVStore) TTL(ctx context.Context) (time.Duration, error) {
	return s.rdb.PTTL(ctx, s.key).Result()
}

func (s *RedisKVStore) Close() error {
	return s.rdb.Close()
}

type redisTx struct {
	tx        *goredis.Tx
	key       string
	pinnedKey string
	staged    map[string][]byte
	pinned    map[string][]byte
	extendTo  time.Duration
}

func (t *redisTx) Get(ctx context.Context, field string) ([]byte, bool, error) {
	if v, ok := t.pinned[field]; ok {
		return v, true, nil
	}
	if v, ok := t.staged[field]; ok {
		return v, true, nil
	}
	return hget(ctx, t.tx, field, t.pinnedKey, t.key)
}

func (t *redisTx) Set(ctx context.Context, field string, value []byte) error {
	t.staged[field] = value
	return nil
}

func (t *redisTx) SetPinned(ctx context.Context, field string, value []byte) error {
	t.pinned[field] = value
	return nil
}

func (t *redisTx) ExtendRetention(ctx context.Context, threshold, extendTo time.Duration) error {
	ttl, err := t.tx.PTTL(ctx, t.key).Result()
	if err != nil {
		return errors.Wrap(err, "pttl")
	}
	// PTTL is negative when no expiry is set or the hash does not exist yet
	if ttl < threshold {
		t.extendTo = extendTo
	}
	return nil
}

func (t *redisTx) commit(ctx context.Context) error {
	if len(t.staged) == 0 && len(t.pinned) == 0 && t.extendTo == 0 {
		return nil
	}
	_, err := t.tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		if len(t.staged) > 0 {
			p.HSet(ctx, t.key, flatten(t.staged)...)
		}
		if len(t.pinned) > 0 {
			p.HSet(ctx, t.pinnedKey, flatten(t.pinned)...)
		}
		if t.extendTo > 0 {
			p.PExpire(ctx, t.key, t.extendTo)
		}
		return nil
	})
	return err
}

// hashGetter is satisfied by both *goredis.Client and *goredis.Tx.
type hashGetter interface {
	HGet(ctx context.Context, key, field string) *goredis.StringCmd
}

// hget returns the field from the first hash that has it.
func hget(ctx context.Context, c hashGetter, field string, keys ...string) ([]byte, bool, error) {
	for _, key := range keys {
		v, err := c.HGet(ctx, key, field).Bytes()
		if err == goredis.Nil {
			continue
		} else if err != nil {
			return nil, false, errors.Wrapf(err, "hget %s %s", key, field)
		}
		return v, true, nil
	}
	return nil, false, nil
}

func flatten(m map[string][]byte) []any {
	values := make([]any, 0, 2*len(m))
	for field, v := range m {
		values = append(values, field, v)
	}
	return values
}

var _ interfaces.KVStore = (*RedisKVStore)(nil)
