// Package cache builds the Redis client shared by the refresh token store
// and the blacklist, and owns the key spaces they write to.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key spaces. Forward and reverse refresh-token entries, blacklist
// membership and the blacklist expiry index are distinct and each must be
// invalidated on its own.
const (
	refreshByUserPrefix  = "refresh_token::user::"
	refreshByTokenPrefix = "refresh_token::token::"
	blacklistPrefix      = "blacklist:token:"

	// BlacklistExpiryKey is the sorted set of blacklisted jtis scored by
	// expiry epoch seconds.
	BlacklistExpiryKey = "blacklist:expiry"
)

func RefreshByUserKey(userID string) string { return refreshByUserPrefix + userID }

func RefreshByTokenKey(token string) string { return refreshByTokenPrefix + token }

func BlacklistKey(jti string) string { return blacklistPrefix + jti }

// Options configures NewRedisClient.
type Options struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
	ReadTimeout time.Duration
}

// NewRedisClient connects and pings. Read timeouts also bound writes so a
// hung server surfaces as an error instead of blocking a request.
func NewRedisClient(ctx context.Context, o Options) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  o.DialTimeout,
		ReadTimeout:  o.ReadTimeout,
		WriteTimeout: o.ReadTimeout,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping %s: %w", o.Addr, err)
	}
	return c, nil
}
