package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	old := os.Args
	os.Args = append([]string{"finsync"}, args...)
	t.Cleanup(func() { os.Args = old })
}

func TestLoadConfig_Defaults(t *testing.T) {
	withArgs(t)

	cfg := LoadConfig()

	assert.Equal(t, "finsync.db", cfg.DatabaseDSN)
	assert.Equal(t, "finsync-backups", cfg.S3Bucket)
	assert.Equal(t, 5*time.Second, cfg.QuiescencePeriod)
	assert.Equal(t, 3*time.Second, cfg.BackupDecayWindow)
	assert.Equal(t, 2*time.Second, cfg.RestoreDecayWindow)
	assert.Equal(t, uint64(5), cfg.ConnectRetryAttempts)
}

func TestLoadConfig_FlagsOverrideDefaults(t *testing.T) {
	withArgs(t, "-d", "other.db", "-b", "my-bucket", "-q", "10", "-i", "7")

	cfg := LoadConfig()

	assert.Equal(t, "other.db", cfg.DatabaseDSN)
	assert.Equal(t, "my-bucket", cfg.S3Bucket)
	assert.Equal(t, 10*time.Second, cfg.QuiescencePeriod)
	assert.Equal(t, 7*time.Second, cfg.OnlineCheckInterval)
}

func TestLoadConfig_JsonLayer(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "conf.json")
	require.NoError(t, os.WriteFile(file, []byte(`{
		"s3_bucket": "json-bucket",
		"s3_base_endpoint": "http://127.0.0.1:9000",
		"quiescence_period": "2s",
		"connect_retry_attempts": 3
	}`), 0o600))

	withArgs(t, "-c", file)

	cfg := LoadConfig()

	assert.Equal(t, "json-bucket", cfg.S3Bucket)
	assert.Equal(t, "http://127.0.0.1:9000", cfg.S3BaseEndpoint)
	assert.Equal(t, 2*time.Second, cfg.QuiescencePeriod)
	assert.Equal(t, uint64(3), cfg.ConnectRetryAttempts)
	// untouched by JSON
	assert.Equal(t, "finsync.db", cfg.DatabaseDSN)
}

func TestLoadConfig_FlagsBeatJson(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "conf.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"s3_bucket": "json-bucket"}`), 0o600))

	withArgs(t, "-c", file, "-b", "flag-bucket")

	cfg := LoadConfig()
	assert.Equal(t, "flag-bucket", cfg.S3Bucket)
}
