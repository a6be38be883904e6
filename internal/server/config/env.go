package config

import (
	"github.com/spf13/viper"
)

// envPrefix namespaces environment variables, e.g. BLOGHUB_DATABASE_DSN.
const envPrefix = "BLOGHUB"

// parseEnv overlays values from BLOGHUB_* environment variables.
// Durations use Go syntax ("60s", "2h").
func parseEnv(config *Config) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)

	strs := map[string]*string{
		"http_addr":        &config.HTTPAddr,
		"health_addr_grpc": &config.HealthAddrGRPC,
		"database_dsn":     &config.DatabaseDSN,
		"secret_key":       &config.SecretKey,
		"cache_backend":    &config.CacheBackend,
		"redis_url":        &config.RedisURL,
		"s3_root_user":     &config.S3RootUser,
		"s3_root_password": &config.S3RootPassword,
		"s3_bucket":        &config.S3Bucket,
		"s3_region":        &config.S3Region,
		"s3_base_endpoint": &config.S3BaseEndpoint,
		"log_level":        &config.LogLevel,
	}
	for key, dst := range strs {
		_ = v.BindEnv(key)
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	_ = v.BindEnv("access_token_validity_duration")
	if v.IsSet("access_token_validity_duration") {
		config.AccessTokenValidityDuration = v.GetDuration("access_token_validity_duration")
	}

	_ = v.BindEnv("cache_ttl")
	if v.IsSet("cache_ttl") {
		config.CacheTTL = v.GetDuration("cache_ttl")
	}

	_ = v.BindEnv("cache_max_entries")
	if v.IsSet("cache_max_entries") {
		config.CacheMaxEntries = v.GetInt("cache_max_entries")
	}
}
