package config

import (
	"github.com/dmitrijs2005/authhub/internal/flagx"
	"github.com/spf13/pflag"
)

// newFlagSet binds every Config field to a long flag. Defaults are the
// current values of config, so flags only override what they name.
//
// Short forms:
//
//	-a  http-addr     -g  grpc-addr
//	-d  database-dsn  -r  redis-addr
//	-i  issuer        -k  signing-key-dir
//	-t  access-token-ttl
//	-T  refresh-token-ttl
func newFlagSet(config *Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet("authhub", pflag.ContinueOnError)

	fs.StringVarP(&config.HTTPAddr, "http-addr", "a", config.HTTPAddr, "HTTP listen address")
	fs.StringVarP(&config.GRPCAddr, "grpc-addr", "g", config.GRPCAddr, "gRPC listen address")

	fs.StringVarP(&config.DatabaseDSN, "database-dsn", "d", config.DatabaseDSN, "PostgreSQL DSN")
	fs.BoolVar(&config.RunMigrations, "run-migrations", config.RunMigrations, "apply schema migrations at startup")

	fs.StringVarP(&config.RedisAddr, "redis-addr", "r", config.RedisAddr, "Redis address")
	fs.StringVar(&config.RedisPassword, "redis-password", config.RedisPassword, "Redis password")
	fs.IntVar(&config.RedisDB, "redis-db", config.RedisDB, "Redis database number")
	fs.DurationVar(&config.RedisDialTimeout, "redis-dial-timeout", config.RedisDialTimeout, "Redis dial timeout")
	fs.DurationVar(&config.RedisReadTimeout, "redis-read-timeout", config.RedisReadTimeout, "Redis read/write timeout")

	fs.StringVarP(&config.Issuer, "issuer", "i", config.Issuer, "token issuer (iss claim)")
	fs.DurationVarP(&config.AccessTokenTTL, "access-token-ttl", "t", config.AccessTokenTTL, "access token validity")
	fs.DurationVarP(&config.RefreshTokenTTL, "refresh-token-ttl", "T", config.RefreshTokenTTL, "refresh token validity")
	fs.DurationVar(&config.CacheWarmTTL, "cache-warm-ttl", config.CacheWarmTTL, "maximum TTL when warming the refresh-token cache")
	fs.BoolVar(&config.StrictRotation, "strict-rotation", config.StrictRotation, "reject the loser of concurrent refreshes")

	fs.StringVarP(&config.SigningKeyDir, "signing-key-dir", "k", config.SigningKeyDir, "directory of <kid>.pem RSA keys")
	fs.StringVar(&config.ActiveKID, "active-kid", config.ActiveKID, "kid used for signing (default: greatest kid)")
	fs.StringVar(&config.S3KeyBucket, "s3-key-bucket", config.S3KeyBucket, "S3 bucket holding <kid>.pem keys")
	fs.StringVar(&config.S3KeyPrefix, "s3-key-prefix", config.S3KeyPrefix, "S3 key prefix")
	fs.StringVar(&config.S3Region, "s3-region", config.S3Region, "S3 region")
	fs.StringVar(&config.S3Endpoint, "s3-endpoint", config.S3Endpoint, "S3 base endpoint (S3-compatible stores)")
	fs.StringVar(&config.S3AccessKey, "s3-access-key", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "s3-secret-key", config.S3SecretKey, "S3 secret key")

	fs.DurationVar(&config.BlacklistSweepInterval, "blacklist-sweep-interval", config.BlacklistSweepInterval, "blacklist cleanup period")
	fs.IntVar(&config.BlacklistSweepBatch, "blacklist-sweep-batch", config.BlacklistSweepBatch, "max entries removed per cleanup batch")

	fs.DurationVar(&config.MatcherCacheTTL, "matcher-cache-ttl", config.MatcherCacheTTL, "endpoint candidate cache TTL")
	fs.StringVar(&config.ServiceToken, "service-token", config.ServiceToken, "shared secret for internal permission endpoints")

	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "debug, info, warn or error")
	fs.StringVar(&config.LogFormat, "log-format", config.LogFormat, "json or text")

	fs.DurationVar(&config.ShutdownTimeout, "shutdown-timeout", config.ShutdownTimeout, "graceful shutdown budget")

	return fs
}

// parseFlags applies command-line flags from args and, for flags not given
// on the command line, AUTHHUB_* environment variables. The config file
// flags were consumed by parseJson and are stripped first.
func parseFlags(config *Config, args []string, lookupEnv func(string) (string, bool)) error {
	fs := newFlagSet(config)
	if err := fs.Parse(flagx.StripArgs(args, flagx.ConfigFlags)); err != nil {
		return err
	}
	return flagx.ApplyEnv(fs, EnvPrefix, lookupEnv)
}
