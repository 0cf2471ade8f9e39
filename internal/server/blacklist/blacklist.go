// Package blacklist keeps revoked token ids in Redis until their natural
// expiry. Each jti has a membership key with a TTL equal to its remaining
// validity, plus an entry in a sorted index scored by expiry so expired ids
// can be swept in bounded batches.
package blacklist

import (
	"context"
	"strconv"
	"time"

	"github.com/dmitrijs2005/authhub/internal/clock"
	"github.com/dmitrijs2005/authhub/internal/common"
	"github.com/dmitrijs2005/authhub/internal/logging"
	"github.com/dmitrijs2005/authhub/internal/server/cache"
	"github.com/redis/go-redis/v9"
)

type Blacklist struct {
	rdb   redis.UniversalClient
	clock clock.Clock
	log   logging.Logger
}

func New(rdb redis.UniversalClient, clk clock.Clock, log logging.Logger) *Blacklist {
	return &Blacklist{rdb: rdb, clock: clk, log: log.With("module", "blacklist")}
}

// Add blacklists jti until expiresAt. A token that is already past expiry
// cannot be used anyway and is not recorded.
func (b *Blacklist) Add(ctx context.Context, jti string, expiresAt time.Time) error {
	remaining := expiresAt.Sub(b.clock.Now())
	if remaining <= 0 {
		return nil
	}

	_, err := b.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, cache.BlacklistKey(jti), expiresAt.Unix(), remaining)
		p.ZAdd(ctx, cache.BlacklistExpiryKey, redis.Z{Score: float64(expiresAt.Unix()), Member: jti})
		return nil
	})
	if err != nil {
		return common.E(common.KindStoreUnavailable, "blacklist.Add", err, "jti", jti)
	}
	b.log.Debug(ctx, "token blacklisted", "jti", jti, "expires_at", expiresAt.Unix())
	return nil
}

// Contains reports whether jti is blacklisted. A lookup failure is returned
// as StoreUnavailable, never as false.
func (b *Blacklist) Contains(ctx context.Context, jti string) (bool, error) {
	n, err := b.rdb.Exists(ctx, cache.BlacklistKey(jti)).Result()
	if err != nil {
		return false, common.E(common.KindStoreUnavailable, "blacklist.Contains", err, "jti", jti)
	}
	return n > 0, nil
}

// FindExpired returns up to limit jtis whose recorded expiry is at or before
// now, oldest first.
func (b *Blacklist) FindExpired(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	jtis, err := b.rdb.ZRangeByScore(ctx, cache.BlacklistExpiryKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, common.E(common.KindStoreUnavailable, "blacklist.FindExpired", err)
	}
	return jtis, nil
}

// RemoveAll drops jtis from both the membership keys and the expiry index
// in one transaction. It returns how many index entries were removed.
func (b *Blacklist) RemoveAll(ctx context.Context, jtis []string) (int64, error) {
	if len(jtis) == 0 {
		return 0, nil
	}

	keys := make([]string, len(jtis))
	members := make([]any, len(jtis))
	for i, j := range jtis {
		keys[i] = cache.BlacklistKey(j)
		members[i] = j
	}

	var zrem *redis.IntCmd
	_, err := b.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, keys...)
		zrem = p.ZRem(ctx, cache.BlacklistExpiryKey, members...)
		return nil
	})
	if err != nil {
		return 0, common.E(common.KindStoreUnavailable, "blacklist.RemoveAll", err)
	}
	return zrem.Val(), nil
}
