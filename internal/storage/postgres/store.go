package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/sheikh-saqib/micropayments-ledger/internal/storage/sqlkv"
)

const driverName = "postgres"

// NewPostgresKVStore wraps an existing lib/pq connection pool.
func NewPostgresKVStore(db *sql.DB, namespace string, opts ...sqlkv.Option) *sqlkv.Store {
	return sqlkv.New(sqlx.NewDb(db, driverName), namespace, opts...)
}

// Open connects to dsn, checks the connection and creates the ledger tables.
func Open(ctx context.Context, dsn, namespace string, opts ...sqlkv.Option) (*sqlkv.Store, error) {
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}

	store := sqlkv.New(db, namespace, opts...)
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}
