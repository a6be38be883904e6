package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/bloghub/internal/flagx"
	"github.com/dmitrijs2005/bloghub/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Duration fields accept
// either strings such as "60s" or integer nanoseconds. Only non-zero values
// override what is already in Config.
type JsonConfig struct {
	HTTPAddr                    string         `json:"http_addr"`
	HealthAddrGRPC              string         `json:"health_addr_grpc"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	CacheBackend                string         `json:"cache_backend"`
	RedisURL                    string         `json:"redis_url"`
	CacheTTL                    timex.Duration `json:"cache_ttl"`
	CacheMaxEntries             int            `json:"cache_max_entries"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	LogLevel                    string         `json:"log_level"`
}

// parseJson loads the file named by -c/-config into config.
// Unreadable files or invalid JSON panic: the server must not start on a
// config it could not read.
func parseJson(config *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	if err := readJSONFile(path, config); err != nil {
		panic(err)
	}
}

func readJSONFile(path string, config *Config) error {
	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	c.applyTo(config)
	return nil
}

func (c *JsonConfig) applyTo(config *Config) {
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.HealthAddrGRPC, c.HealthAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	setString(&config.CacheBackend, c.CacheBackend)
	setString(&config.RedisURL, c.RedisURL)
	if c.CacheTTL.Duration != 0 {
		config.CacheTTL = c.CacheTTL.Duration
	}
	if c.CacheMaxEntries != 0 {
		config.CacheMaxEntries = c.CacheMaxEntries
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
