package sqlkv

// Queries use '?' bindvars and are rebound to the driver's style by sqlx.
// The same statements run on PostgreSQL and SQLite.

var schema = []string{
	`CREATE TABLE IF NOT EXISTS ledger_namespaces (
		namespace  TEXT PRIMARY KEY,
		expires_at BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		namespace   TEXT NOT NULL,
		entry_key   TEXT NOT NULL,
		entry_value TEXT NOT NULL,
		PRIMARY KEY (namespace, entry_key)
	)`,
	// entries that outlive the namespace expiry
	`CREATE TABLE IF NOT EXISTS ledger_pinned (
		namespace   TEXT NOT NULL,
		entry_key   TEXT NOT NULL,
		entry_value TEXT NOT NULL,
		PRIMARY KEY (namespace, entry_key)
	)`,
}

const (
	selectEntryQuery = `SELECT e.entry_value, n.expires_at FROM ledger_entries e
	JOIN ledger_namespaces n ON n.namespace = e.namespace
	WHERE e.namespace = ? AND e.entry_key = ?`

	// lockNamespaceQuery always writes the namespace row so concurrent Updates queue on it.
	lockNamespaceQuery = `INSERT INTO ledger_namespaces (namespace, expires_at) VALUES (?, 0)
	ON CONFLICT (namespace) DO UPDATE SET namespace = excluded.namespace`

	selectExpiryQuery = `SELECT expires_at FROM ledger_namespaces WHERE namespace = ?`

	purgeEntriesQuery = `DELETE FROM ledger_entries WHERE namespace = ?`

	setExpiryQuery = `UPDATE ledger_namespaces SET expires_at = ? WHERE namespace = ?`

	selectTxEntryQuery = `SELECT entry_value FROM ledger_entries WHERE namespace = ? AND entry_key = ?`

	selectPinnedQuery = `SELECT entry_value FROM ledger_pinned WHERE namespace = ? AND entry_key = ?`

	upsertPinnedQuery = `INSERT INTO ledger_pinned (namespace, entry_key, entry_value) VALUES (?, ?, ?)
	ON CONFLICT (namespace, entry_key) DO UPDATE SET entry_value = excluded.entry_value`

	upsertEntryQuery = `INSERT INTO ledger_entries (namespace, entry_key, entry_value) VALUES (?, ?, ?)
	ON CONFLICT (namespace, entry_key) DO UPDATE SET entry_value = excluded.entry_value`
)
