package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syncFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("sync", pflag.ContinueOnError)
	flags.String("rpc", defaultRPCURL, "")
	flags.String("pg-dsn", "", "")
	flags.String("address", "", "")
	flags.String("treasury-id", "", "")
	flags.Uint64("from", 0, "")
	flags.Uint64("batch-size", defaultBatchSize, "")
	flags.Int("max-retries", 3, "")
	return flags
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SYNC_PG_DSN", "postgres://localhost/treasury")

	cfg, err := Load("", syncFlags())
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/treasury", cfg.PGDSN)
	assert.Equal(t, defaultRPCURL, cfg.RPCURL)
	assert.Equal(t, uint64(2000), cfg.BatchSize)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBackoff)
	assert.Equal(t, 4, cfg.TimestampWorkers)
	assert.Equal(t, 5*time.Minute, cfg.Timeout)
	assert.Equal(t, defaultErrorsPath, cfg.Errors)
	assert.False(t, cfg.AllowRPCOverride)
	assert.Nil(t, cfg.FromBlock, "unset from must not override the cursor")
}

func TestLoadExplicitZeroFrom(t *testing.T) {
	flags := syncFlags()
	require.NoError(t, flags.Set("pg-dsn", "postgres://db"))
	require.NoError(t, flags.Set("from", "0"))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	require.NotNil(t, cfg.FromBlock)
	assert.Equal(t, uint64(0), *cfg.FromBlock)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("SYNC_PG_DSN", "postgres://db")
	t.Setenv("SYNC_FROM", "1200")
	t.Setenv("SYNC_BATCH_SIZE", "500")
	t.Setenv("SYNC_TIMESTAMP_WORKERS", "8")

	cfg, err := Load("", syncFlags())
	require.NoError(t, err)
	require.NotNil(t, cfg.FromBlock)
	assert.Equal(t, uint64(1200), *cfg.FromBlock)
	assert.Equal(t, uint64(500), cfg.BatchSize)
	assert.Equal(t, 8, cfg.TimestampWorkers)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.yaml")
	content := "pg-dsn: postgres://file\naddress: \"0x9999999999999999999999999999999999999999\"\ntreasury-id: t-1\nretry-backoff: 2s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres://file", cfg.PGDSN)
	assert.Equal(t, "0x9999999999999999999999999999999999999999", cfg.Address)
	assert.Equal(t, "t-1", cfg.TreasuryID)
	assert.Equal(t, 2*time.Second, cfg.RetryBackoff)
}

func TestLoadValidation(t *testing.T) {
	_, err := Load("", syncFlags())
	require.EqualError(t, err, "pg-dsn is required")

	flags := syncFlags()
	require.NoError(t, flags.Set("pg-dsn", "postgres://db"))
	require.NoError(t, flags.Set("batch-size", "0"))
	_, err = Load("", flags)
	require.EqualError(t, err, "batch-size must be positive")
}

func TestLoadServe(t *testing.T) {
	t.Setenv("SYNC_PG_DSN", "postgres://db")
	t.Setenv("SYNC_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SYNC_FROM", "10")

	cfg, err := LoadServe("", nil)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.MetricsEnabled)
	assert.Nil(t, cfg.Sync.FromBlock)
	assert.Equal(t, "postgres://db", cfg.Sync.PGDSN)
}

func TestLoadMigrate(t *testing.T) {
	t.Setenv("SYNC_PG_DSN", "postgres://db")
	t.Setenv("SYNC_VERSION", "1")

	cfg, err := LoadMigrate("", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cfg.Version)

	t.Setenv("SYNC_PG_DSN", "")
	_, err = LoadMigrate("", nil)
	require.Error(t, err)
}
