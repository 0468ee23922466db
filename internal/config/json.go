package config

import (
	"encoding/json"
	"os"

	"github.com/finsync-app/finsync/internal/flagx"
	"github.com/finsync-app/finsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "5s"
// or as integer nanoseconds. Values are copied into the runtime Config.
type JsonConfig struct {
	DatabaseDSN          string         `json:"database_dsn"`
	S3Bucket             string         `json:"s3_bucket"`
	S3Region             string         `json:"s3_region"`
	S3BaseEndpoint       string         `json:"s3_base_endpoint"`
	S3AccessKey          string         `json:"s3_access_key"`
	S3SecretKey          string         `json:"s3_secret_key"`
	QuiescencePeriod     timex.Duration `json:"quiescence_period"`
	BackupDecayWindow    timex.Duration `json:"backup_decay_window"`
	RestoreDecayWindow   timex.Duration `json:"restore_decay_window"`
	OnlineCheckInterval  timex.Duration `json:"online_check_interval"`
	ConnectRetryInterval timex.Duration `json:"connect_retry_interval"`
	ConnectRetryAttempts uint64         `json:"connect_retry_attempts"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// the -c/-config flags. Missing file path means no JSON layer. Read or
// unmarshal errors panic; configuration is unusable at that point.
//
// Only fields present in the JSON override the current values.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.S3Bucket != "" {
		cfg.S3Bucket = jc.S3Bucket
	}
	if jc.S3Region != "" {
		cfg.S3Region = jc.S3Region
	}
	if jc.S3BaseEndpoint != "" {
		cfg.S3BaseEndpoint = jc.S3BaseEndpoint
	}
	if jc.S3AccessKey != "" {
		cfg.S3AccessKey = jc.S3AccessKey
	}
	if jc.S3SecretKey != "" {
		cfg.S3SecretKey = jc.S3SecretKey
	}
	if jc.QuiescencePeriod.Duration != 0 {
		cfg.QuiescencePeriod = jc.QuiescencePeriod.Duration
	}
	if jc.BackupDecayWindow.Duration != 0 {
		cfg.BackupDecayWindow = jc.BackupDecayWindow.Duration
	}
	if jc.RestoreDecayWindow.Duration != 0 {
		cfg.RestoreDecayWindow = jc.RestoreDecayWindow.Duration
	}
	if jc.OnlineCheckInterval.Duration != 0 {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.ConnectRetryInterval.Duration != 0 {
		cfg.ConnectRetryInterval = jc.ConnectRetryInterval.Duration
	}
	if jc.ConnectRetryAttempts != 0 {
		cfg.ConnectRetryAttempts = jc.ConnectRetryAttempts
	}
}
