package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"http_addr":                "www.example:9000",
		"database_dsn":             "postgres://json",
		"redis_addr":               "redis:6379",
		"redis_db":                 3,
		"issuer":                   "https://id.example",
		"access_token_ttl":         "1m",
		"refresh_token_ttl":        "3m",
		"cache_warm_ttl":           60000000000,
		"strict_rotation":          true,
		"signing_key_dir":          "/etc/authhub/keys",
		"s3_key_bucket":            "keys",
		"blacklist_sweep_interval": "10s",
		"blacklist_sweep_batch":    50,
		"log_format":               "text",
	})

	t.Run("loads from json", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJson(cfg, []string{"-config", pathFlag}))

		assert.Equal(t, "www.example:9000", cfg.HTTPAddr)
		assert.Equal(t, "postgres://json", cfg.DatabaseDSN)
		assert.Equal(t, "redis:6379", cfg.RedisAddr)
		assert.Equal(t, 3, cfg.RedisDB)
		assert.Equal(t, "https://id.example", cfg.Issuer)
		assert.Equal(t, 1*time.Minute, cfg.AccessTokenTTL)
		assert.Equal(t, 3*time.Minute, cfg.RefreshTokenTTL)
		assert.Equal(t, time.Minute, cfg.CacheWarmTTL)
		assert.True(t, cfg.StrictRotation)
		assert.Equal(t, "/etc/authhub/keys", cfg.SigningKeyDir)
		assert.Equal(t, "keys", cfg.S3KeyBucket)
		assert.Equal(t, 10*time.Second, cfg.BlacklistSweepInterval)
		assert.Equal(t, 50, cfg.BlacklistSweepBatch)
		assert.Equal(t, "text", cfg.LogFormat)

		// keys absent from the file keep their defaults
		assert.Equal(t, ":50051", cfg.GRPCAddr)
		assert.Equal(t, "keys/", cfg.S3KeyPrefix)
	})

	t.Run("no config flag leaves config unchanged", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		before := *cfg

		require.NoError(t, parseJson(cfg, []string{"--issuer", "x"}))
		assert.Empty(t, cmp.Diff(before, *cfg))
	})

	t.Run("invalid JSON", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		cfg := &Config{}
		require.ErrorContains(t, parseJson(cfg, []string{"-c", bad}), "parse config")
	})

	t.Run("missing file", func(t *testing.T) {
		cfg := &Config{}
		require.ErrorContains(t, parseJson(cfg, []string{"-c", filepath.Join(dir, "nope.json")}), "read config")
	})
}
