package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/authhub/internal/flagx"
	"github.com/dmitrijs2005/authhub/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept both
// "15m" strings and integer nanoseconds. Keys absent from the file keep the
// value they had before the file was applied.
type JsonConfig struct {
	HTTPAddr string `json:"http_addr"`
	GRPCAddr string `json:"grpc_addr"`

	DatabaseDSN   string `json:"database_dsn"`
	RunMigrations bool   `json:"run_migrations"`

	RedisAddr        string         `json:"redis_addr"`
	RedisPassword    string         `json:"redis_password"`
	RedisDB          int            `json:"redis_db"`
	RedisDialTimeout timex.Duration `json:"redis_dial_timeout"`
	RedisReadTimeout timex.Duration `json:"redis_read_timeout"`

	Issuer          string         `json:"issuer"`
	AccessTokenTTL  timex.Duration `json:"access_token_ttl"`
	RefreshTokenTTL timex.Duration `json:"refresh_token_ttl"`
	CacheWarmTTL    timex.Duration `json:"cache_warm_ttl"`
	StrictRotation  bool           `json:"strict_rotation"`

	SigningKeyDir string `json:"signing_key_dir"`
	ActiveKID     string `json:"active_kid"`
	S3KeyBucket   string `json:"s3_key_bucket"`
	S3KeyPrefix   string `json:"s3_key_prefix"`
	S3Region      string `json:"s3_region"`
	S3Endpoint    string `json:"s3_endpoint"`
	S3AccessKey   string `json:"s3_access_key"`
	S3SecretKey   string `json:"s3_secret_key"`

	BlacklistSweepInterval timex.Duration `json:"blacklist_sweep_interval"`
	BlacklistSweepBatch    int            `json:"blacklist_sweep_batch"`

	MatcherCacheTTL timex.Duration `json:"matcher_cache_ttl"`
	ServiceToken    string         `json:"service_token"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`

	ShutdownTimeout timex.Duration `json:"shutdown_timeout"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		HTTPAddr:               c.HTTPAddr,
		GRPCAddr:               c.GRPCAddr,
		DatabaseDSN:            c.DatabaseDSN,
		RunMigrations:          c.RunMigrations,
		RedisAddr:              c.RedisAddr,
		RedisPassword:          c.RedisPassword,
		RedisDB:                c.RedisDB,
		RedisDialTimeout:       timex.Duration{Duration: c.RedisDialTimeout},
		RedisReadTimeout:       timex.Duration{Duration: c.RedisReadTimeout},
		Issuer:                 c.Issuer,
		AccessTokenTTL:         timex.Duration{Duration: c.AccessTokenTTL},
		RefreshTokenTTL:        timex.Duration{Duration: c.RefreshTokenTTL},
		CacheWarmTTL:           timex.Duration{Duration: c.CacheWarmTTL},
		StrictRotation:         c.StrictRotation,
		SigningKeyDir:          c.SigningKeyDir,
		ActiveKID:              c.ActiveKID,
		S3KeyBucket:            c.S3KeyBucket,
		S3KeyPrefix:            c.S3KeyPrefix,
		S3Region:               c.S3Region,
		S3Endpoint:             c.S3Endpoint,
		S3AccessKey:            c.S3AccessKey,
		S3SecretKey:            c.S3SecretKey,
		BlacklistSweepInterval: timex.Duration{Duration: c.BlacklistSweepInterval},
		BlacklistSweepBatch:    c.BlacklistSweepBatch,
		MatcherCacheTTL:        timex.Duration{Duration: c.MatcherCacheTTL},
		ServiceToken:           c.ServiceToken,
		LogLevel:               c.LogLevel,
		LogFormat:              c.LogFormat,
		ShutdownTimeout:        timex.Duration{Duration: c.ShutdownTimeout},
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.HTTPAddr = j.HTTPAddr
	c.GRPCAddr = j.GRPCAddr
	c.DatabaseDSN = j.DatabaseDSN
	c.RunMigrations = j.RunMigrations
	c.RedisAddr = j.RedisAddr
	c.RedisPassword = j.RedisPassword
	c.RedisDB = j.RedisDB
	c.RedisDialTimeout = j.RedisDialTimeout.Duration
	c.RedisReadTimeout = j.RedisReadTimeout.Duration
	c.Issuer = j.Issuer
	c.AccessTokenTTL = j.AccessTokenTTL.Duration
	c.RefreshTokenTTL = j.RefreshTokenTTL.Duration
	c.CacheWarmTTL = j.CacheWarmTTL.Duration
	c.StrictRotation = j.StrictRotation
	c.SigningKeyDir = j.SigningKeyDir
	c.ActiveKID = j.ActiveKID
	c.S3KeyBucket = j.S3KeyBucket
	c.S3KeyPrefix = j.S3KeyPrefix
	c.S3Region = j.S3Region
	c.S3Endpoint = j.S3Endpoint
	c.S3AccessKey = j.S3AccessKey
	c.S3SecretKey = j.S3SecretKey
	c.BlacklistSweepInterval = j.BlacklistSweepInterval.Duration
	c.BlacklistSweepBatch = j.BlacklistSweepBatch
	c.MatcherCacheTTL = j.MatcherCacheTTL.Duration
	c.ServiceToken = j.ServiceToken
	c.LogLevel = j.LogLevel
	c.LogFormat = j.LogFormat
	c.ShutdownTimeout = j.ShutdownTimeout.Duration
}

// parseJson overlays the JSON file named by -c/-config/--config in args onto
// config. No flag means nothing to load.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	c.apply(config)
	return nil
}
