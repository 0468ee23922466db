// Package config loads runtime settings for the FinSync CLI.
//
// Values are resolved in three layers, later layers taking precedence:
// built-in defaults, a JSON file (-c/-config) and command-line flags.
package config

import "time"

// Config holds runtime settings for the FinSync client.
//
// The S3 fields address the backup object store (any S3-compatible
// endpoint, e.g. MinIO). QuiescencePeriod is the debounce window of the
// background scheduler; the decay windows control how long "synced" and
// "error" states stay visible before returning to idle.
type Config struct {
	DatabaseDSN string

	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string

	QuiescencePeriod     time.Duration
	BackupDecayWindow    time.Duration
	RestoreDecayWindow   time.Duration
	OnlineCheckInterval  time.Duration
	ConnectRetryInterval time.Duration
	ConnectRetryAttempts uint64
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabaseDSN = "finsync.db"
	c.S3Bucket = "finsync-backups"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = ""
	c.QuiescencePeriod = 5 * time.Second
	c.BackupDecayWindow = 3 * time.Second
	c.RestoreDecayWindow = 2 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
	c.ConnectRetryInterval = 1 * time.Second
	c.ConnectRetryAttempts = 5
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
