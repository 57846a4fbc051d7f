// Package sqlkv stores a ledger namespace in two SQL tables through sqlx.
// It backs both the postgres and the sqlite storage packages.
package sqlkv

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	interfaces "github.com/sheikh-saqib/micropayments-ledger/internal/interfaces"
)

type Store struct {
	db        *sqlx.DB
	namespace string
	now       func() time.Time
}

type Option func(*Store)

// WithNow replaces the clock used for expiry decisions.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(db *sqlx.DB, namespace string, opts ...Option) *Store {
	s := &Store{
		db:        db,
		namespace: namespace,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates the ledger tables if they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrate ledger schema")
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, err := getPinned(ctx, s.db, s.namespace, key); err != nil || ok {
		return v, ok, err
	}

	var row struct {
		Value     []byte `db:"entry_value"`
		ExpiresAt int64  `db:"expires_at"`
	}
	err := s.db.GetContext(ctx, &row, s.db.Rebind(selectEntryQuery), s.namespace, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "select %s", key)
	}
	if expired(row.ExpiresAt, s.now()) {
		return nil, false, nil
	}
	return row.Value, true, nil
}

// Update runs fn inside one database transaction. The namespace row is written first,
// which serializes writers, and the ordinary entries of an expired namespace are purged
// before fn sees it. Pinned entries are never purged.
func (s *Store) Update(ctx context.Context, fn func(tx interfaces.KVTx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, tx.Rebind(lockNamespaceQuery), s.namespace); err != nil {
		return errors.Wrap(err, "lock namespace")
	}

	var expiresAt int64
	if err = tx.GetContext(ctx, &expiresAt, tx.Rebind(selectExpiryQuery), s.namespace); err != nil {
		return errors.Wrap(err, "select expiry")
	}

	now := s.now()
	if expired(expiresAt, now) {
		if _, err = tx.ExecContext(ctx, tx.Rebind(purgeEntriesQuery), s.namespace); err != nil {
			return errors.Wrap(err, "purge expired namespace")
		}
		if _, err = tx.ExecContext(ctx, tx.Rebind(setExpiryQuery), 0, s.namespace); err != nil {
			return errors.Wrap(err, "reset expiry")
		}
		expiresAt = 0
	}

	stx := &sqlTx{
		tx:        tx,
		namespace: s.namespace,
		expiresAt: expiresAt,
		now:       now,
	}
	if err = fn(stx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type sqlTx struct {
	tx        *sqlx.Tx
	namespace string
	expiresAt int64 // unix millis, 0 when unbounded
	now       time.Time
}

func (t *sqlTx) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, err := getPinned(ctx, t.tx, t.namespace, key); err != nil || ok {
		return v, ok, err
	}

	var value []byte
	err := t.tx.GetContext(ctx, &value, t.tx.Rebind(selectTxEntryQuery), t.namespace, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "select %s", key)
	}
	return value, true, nil
}

func (t *sqlTx) Set(ctx context.Context, key string, value []byte) error {
	// TEXT column: lib/pq would hex-encode a []byte argument
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(upsertEntryQuery), t.namespace, key, string(value))
	return errors.Wrapf(err, "upsert %s", key)
}

func (t *sqlTx) SetPinned(ctx context.Context, key string, value []byte) error {
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(upsertPinnedQuery), t.namespace, key, string(value))
	return errors.Wrapf(err, "upsert pinned %s", key)
}

func (t *sqlTx) ExtendRetention(ctx context.Context, threshold, extendTo time.Duration) error {
	if t.expiresAt != 0 && time.UnixMilli(t.expiresAt).Sub(t.now) >= threshold {
		return nil
	}
	next := t.now.Add(extendTo).UnixMilli()
	if _, err := t.tx.ExecContext(ctx, t.tx.Rebind(setExpiryQuery), next, t.namespace); err != nil {
		return errors.Wrap(err, "extend retention")
	}
	t.expiresAt = next
	return nil
}

// getter is satisfied by both *sqlx.DB and *sqlx.Tx.
type getter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	Rebind(query string) string
}

// getPinned reads from ledger_pinned through either the pool or a transaction.
func getPinned(ctx context.Context, q getter, namespace, key string) ([]byte, bool, error) {
	var value []byte
	err := q.GetContext(ctx, &value, q.Rebind(selectPinnedQuery), namespace, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "select pinned %s", key)
	}
	return value, true, nil
}

func expired(expiresAt int64, now time.Time) bool {
	return expiresAt != 0 && now.UnixMilli() >= expiresAt
}

var _ interfaces.KVStore = (*Store)(nil)
