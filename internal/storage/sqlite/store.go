package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/sheikh-saqib/micropayments-ledger/internal/storage/sqlkv"
)

const driverName = "sqlite3"

// Open opens (or creates) the database file at path and creates the ledger tables.
// Transactions begin IMMEDIATE so concurrent writers wait on the busy timeout
// instead of failing with SQLITE_BUSY halfway through.
func Open(ctx context.Context, path, namespace string, opts ...sqlkv.Option) (*sqlkv.Store, error) {
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite %s", path)
	}

	store := sqlkv.New(db, namespace, opts...)
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}
