package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	interfaces "github.com/sheikh-saqib/micropayments-ledger/internal/interfaces"
)

type fakeNow struct {
	t time.Time
}

func (f *fakeNow) Now() time.Time { return f.t }

func TestGetMissingKey(t *testing.T) {
	store := NewMemoryKVStore()

	v, ok, err := store.Get(context.Background(), "u64:1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestUpdateCommitsAllWrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryKVStore()

	err := store.Update(ctx, func(tx interfaces.KVTx) error {
		require.NoError(t, tx.Set(ctx, "a", []byte("1")))
		require.NoError(t, tx.Set(ctx, "b", []byte("2")))

		// staged writes are visible inside the transaction
		v, ok, err := tx.Get(ctx, "a")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("1"), v)
		return nil
	})
	require.NoError(t, err)

	for key, want := range map[string]string{"a": "1", "b": "2"} {
		v, ok, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte(want), v)
	}
}

func TestUpdateDiscardsWritesOnError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryKVStore()
	boom := errors.New("boom")

	err := store.Update(ctx, func(tx interfaces.KVTx) error {
		_ = tx.Set(ctx, "a", []byte("1"))
		_ = tx.ExtendRetention(ctx, time.Hour, time.Hour)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, ok, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, store.ExpiresAt().IsZero())
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryKVStore()
	require.NoError(t, store.Update(ctx, func(tx interfaces.KVTx) error {
		return tx.Set(ctx, "a", []byte("abc"))
	}))

	v, _, _ := store.Get(ctx, "a")
	v[0] = 'z'

	again, _, _ := store.Get(ctx, "a")
	assert.Equal(t, []byte("abc"), again)
}

func TestExtendRetention(t *testing.T) {
	ctx := context.Background()
	clock := &fakeNow{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewMemoryKVStore(WithNow(clock.Now))

	extend := func(threshold, to time.Duration) {
		require.NoError(t, store.Update(ctx, func(tx interfaces.KVTx) error {
			return tx.ExtendRetention(ctx, threshold, to)
		}))
	}

	// unset expiry is always extended
	extend(time.Hour, 2*time.Hour)
	assert.Equal(t, clock.t.Add(2*time.Hour), store.ExpiresAt())

	// 2h left, threshold 1h: unchanged
	clock.t = clock.t.Add(30 * time.Minute)
	extend(time.Hour, 2*time.Hour)
	assert.Equal(t, clock.t.Add(90*time.Minute), store.ExpiresAt())

	// 30m left, threshold 1h: pushed out again
	clock.t = clock.t.Add(time.Hour)
	extend(time.Hour, 2*time.Hour)
	assert.Equal(t, clock.t.Add(2*time.Hour), store.ExpiresAt())
}

func TestExpiredNamespaceIsEvicted(t *testing.T) {
	ctx := context.Background()
	clock := &fakeNow{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewMemoryKVStore(WithNow(clock.Now))

	require.NoError(t, store.Update(ctx, func(tx interfaces.KVTx) error {
		if err := tx.Set(ctx, "a", []byte("1")); err != nil {
			return err
		}
		return tx.ExtendRetention(ctx, time.Minute, time.Minute)
	}))

	clock.t = clock.t.Add(59 * time.Second)
	_, ok, _ := store.Get(ctx, "a")
	assert.True(t, ok)

	clock.t = clock.t.Add(time.Second)
	_, ok, _ = store.Get(ctx, "a")
	assert.False(t, ok)
	assert.True(t, store.ExpiresAt().IsZero())
}

func TestPinnedEntriesSurviveEviction(t *testing.T) {
	ctx := context.Background()
	clock := &fakeNow{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewMemoryKVStore(WithNow(clock.Now))

	require.NoError(t, store.Update(ctx, func(tx interfaces.KVTx) error {
		if err := tx.Set(ctx, "u64:1", []byte("payment")); err != nil {
			return err
		}
		if err := tx.SetPinned(ctx, "sym:P_COUNT", []byte("1")); err != nil {
			return err
		}
		v, ok, err := tx.Get(ctx, "sym:P_COUNT")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("1"), v)
		return tx.ExtendRetention(ctx, time.Minute, time.Minute)
	}))

	clock.t = clock.t.Add(time.Hour)

	_, ok, err := store.Get(ctx, "u64:1")
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := store.Get(ctx, "sym:P_COUNT")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)
}

func TestPinnedValueShadowsOrdinaryKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryKVStore()

	require.NoError(t, store.Update(ctx, func(tx interfaces.KVTx) error {
		return tx.Set(ctx, "sym:P_COUNT", []byte("3"))
	}))
	require.NoError(t, store.Update(ctx, func(tx interfaces.KVTx) error {
		// an ordinary value written before pinning is still readable
		v, ok, err := tx.Get(ctx, "sym:P_COUNT")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("3"), v)
		return tx.SetPinned(ctx, "sym:P_COUNT", []byte("4"))
	}))

	v, _, err := store.Get(ctx, "sym:P_COUNT")
	require.NoError(t, err)
	assert.Equal(t, []byte("4"), v)
}
