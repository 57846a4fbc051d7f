package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp keeps Load from picking up a stray .env in the package directory.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
	return dir
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, 30*24*time.Hour, cfg.Retention.Threshold)
	assert.Equal(t, 30*24*time.Hour, cfg.Retention.ExtendTo)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "ledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  backend: redis
  namespace: tips
  redis_addr: cache:6379
retention:
  threshold: 1h
  extend_to: 2h
kafka:
  brokers: [k1:9092, k2:9092]
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.Storage.Backend)
	assert.Equal(t, "tips", cfg.Storage.Namespace)
	assert.Equal(t, "cache:6379", cfg.Storage.RedisAddr)
	assert.Equal(t, time.Hour, cfg.Retention.Threshold)
	assert.Equal(t, 2*time.Hour, cfg.Retention.ExtendTo)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	// untouched keys keep their defaults
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestEnvOverridesYAML(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "ledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: postgres\n"), 0o600))

	t.Setenv("LEDGER_BACKEND", "memory")
	t.Setenv("LEDGER_REDIS_DB", "3")
	t.Setenv("LEDGER_KAFKA_BROKERS", " a:1 , ,b:2")
	t.Setenv("LEDGER_RETENTION_THRESHOLD", "30m")
	t.Setenv("LEDGER_RETENTION_EXTEND_TO", "90m")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, 3, cfg.Storage.RedisDB)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)

	policy := cfg.RetentionPolicy()
	assert.Equal(t, 30*time.Minute, policy.Threshold)
	assert.Equal(t, 90*time.Minute, policy.ExtendTo)
}

func TestDotEnvIsLoaded(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LEDGER_NAMESPACE=from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("LEDGER_NAMESPACE") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Storage.Namespace)
}

func TestLoadRejectsBadInput(t *testing.T) {
	chdirTemp(t)

	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("LEDGER_BACKEND", "cassandra")
		_, err := Load("")
		assert.ErrorIs(t, err, ErrUnknownBackend)
	})

	t.Run("extend_to below threshold", func(t *testing.T) {
		t.Setenv("LEDGER_RETENTION_THRESHOLD", "2h")
		t.Setenv("LEDGER_RETENTION_EXTEND_TO", "1h")
		_, err := Load("")
		assert.ErrorIs(t, err, ErrInvalidRetention)
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("LEDGER_RETENTION_EXTEND_TO", "soon")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("bad redis db", func(t *testing.T) {
		t.Setenv("LEDGER_REDIS_DB", "zero")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load("does-not-exist.yaml")
		assert.Error(t, err)
	})
}

func TestValidateRetention(t *testing.T) {
	cfg := Default()
	cfg.Retention.ExtendTo = 0
	cfg.Retention.Threshold = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidRetention)

	cfg.Retention.ExtendTo = time.Minute
	assert.NoError(t, cfg.Validate())
}
