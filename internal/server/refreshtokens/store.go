// Package refreshtokens implements the refresh token store: Postgres is the
// source of truth, Redis a cache-aside copy keyed both by principal and by
// token value.
package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/authhub/internal/clock"
	"github.com/dmitrijs2005/authhub/internal/common"
	"github.com/dmitrijs2005/authhub/internal/dbx"
	"github.com/dmitrijs2005/authhub/internal/logging"
	"github.com/dmitrijs2005/authhub/internal/server/cache"
	"github.com/dmitrijs2005/authhub/internal/server/repositories/repomanager"
	"github.com/redis/go-redis/v9"
)

type Store struct {
	db      *sql.DB
	repo    repomanager.RepositoryManager
	rdb     redis.UniversalClient
	clock   clock.Clock
	warmTTL time.Duration
	log     logging.Logger
}

// NewStore builds a Store. warmTTL caps the TTL of entries repopulated from
// the durable store.
func NewStore(db *sql.DB, repo repomanager.RepositoryManager, rdb redis.UniversalClient,
	clk clock.Clock, warmTTL time.Duration, log logging.Logger) *Store {
	return &Store{
		db:      db,
		repo:    repo,
		rdb:     rdb,
		clock:   clk,
		warmTTL: warmTTL,
		log:     log.With("module", "refreshtokens"),
	}
}

// Save makes token the principal's only refresh token. The durable write
// commits before the cache is touched; a durable failure leaves the cache
// alone. The previous token's reverse entry is dropped.
func (s *Store) Save(ctx context.Context, userID, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return common.E(common.KindValidation, "refreshtokens.Save", nil, "user_id", userID)
	}
	expiresAt := s.clock.Now().Add(ttl)

	var previous string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		r := s.repo.RefreshTokens(tx)

		old, err := r.LockByUser(ctx, userID)
		switch {
		case err == nil:
			previous = old.Token
		case errors.Is(err, common.ErrNotFound):
		default:
			return err
		}
		return r.Upsert(ctx, userID, token, expiresAt)
	})
	if err != nil {
		return durableErr("refreshtokens.Save", err, userID)
	}

	s.cachePair(ctx, userID, token, previous, ttl)
	return nil
}

// Rotate replaces oldToken with newToken only if oldToken is still current.
// Losing the race yields InvalidRefreshToken.
func (s *Store) Rotate(ctx context.Context, userID, oldToken, newToken string, ttl time.Duration) error {
	if ttl <= 0 {
		return common.E(common.KindValidation, "refreshtokens.Rotate", nil, "user_id", userID)
	}

	ok, err := s.repo.RefreshTokens(s.db).Replace(ctx, userID, oldToken, newToken, s.clock.Now().Add(ttl))
	if err != nil {
		return durableErr("refreshtokens.Rotate", err, userID)
	}
	if !ok {
		return common.E(common.KindInvalidRefreshToken, "refreshtokens.Rotate", nil, "user_id", userID)
	}

	s.cachePair(ctx, userID, newToken, oldToken, ttl)
	return nil
}

// cachePair writes both directions of the mapping and drops the previous
// token's reverse entry. Failures are logged, never returned: the durable
// record is already committed. On failure the principal's forward entry is
// evicted so it cannot keep pointing at a superseded token.
func (s *Store) cachePair(ctx context.Context, userID, token, previous string, ttl time.Duration) {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, cache.RefreshByUserKey(userID), token, ttl)
		p.Set(ctx, cache.RefreshByTokenKey(token), userID, ttl)
		if previous != "" && previous != token {
			p.Del(ctx, cache.RefreshByTokenKey(previous))
		}
		return nil
	})
	if err == nil {
		return
	}

	s.log.Warn(ctx, "refresh token cache write failed", append([]any{"user_id", userID}, logging.ErrAttrs(err)...)...)
	keys := []string{cache.RefreshByUserKey(userID)}
	if previous != "" && previous != token {
		keys = append(keys, cache.RefreshByTokenKey(previous))
	}
	if derr := s.rdb.Del(ctx, keys...).Err(); derr != nil {
		s.log.Warn(ctx, "refresh token cache eviction failed", append([]any{"user_id", userID}, logging.ErrAttrs(derr)...)...)
	}
}

// FindPrincipalByToken resolves the principal holding token. The cache is
// consulted first; on a miss or cache error the durable store answers and
// the cache is warmed. ok is false when the token is unknown or expired.
func (s *Store) FindPrincipalByToken(ctx context.Context, token string) (userID string, ok bool, err error) {
	v, err := s.rdb.Get(ctx, cache.RefreshByTokenKey(token)).Result()
	switch {
	case err == nil:
		return v, true, nil
	case !errors.Is(err, redis.Nil):
		s.log.Warn(ctx, "refresh token cache read failed, using durable store", logging.ErrAttrs(err)...)
	}

	rec, err := s.repo.RefreshTokens(s.db).FindByToken(ctx, token)
	if errors.Is(err, common.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, durableErr("refreshtokens.FindPrincipalByToken", err, "")
	}

	now := s.clock.Now()
	if rec.Expired(now) {
		return "", false, nil
	}
	s.warm(ctx, rec.UserID, rec.Token, rec.ExpiresAt.Sub(now))
	return rec.UserID, true, nil
}

// FindTokenByPrincipal is the symmetric cache-aside read keyed by principal.
func (s *Store) FindTokenByPrincipal(ctx context.Context, userID string) (token string, ok bool, err error) {
	v, err := s.rdb.Get(ctx, cache.RefreshByUserKey(userID)).Result()
	switch {
	case err == nil:
		return v, true, nil
	case !errors.Is(err, redis.Nil):
		s.log.Warn(ctx, "refresh token cache read failed, using durable store",
			append([]any{"user_id", userID}, logging.ErrAttrs(err)...)...)
	}

	rec, err := s.repo.RefreshTokens(s.db).FindByUser(ctx, userID)
	if errors.Is(err, common.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, durableErr("refreshtokens.FindTokenByPrincipal", err, userID)
	}

	now := s.clock.Now()
	if rec.Expired(now) {
		return "", false, nil
	}
	s.warm(ctx, rec.UserID, rec.Token, rec.ExpiresAt.Sub(now))
	return rec.Token, true, nil
}

// warm repopulates both entries with the remaining lifetime capped at the
// warm TTL. Best effort.
func (s *Store) warm(ctx context.Context, userID, token string, remaining time.Duration) {
	ttl := min(remaining, s.warmTTL)
	if ttl <= 0 {
		return
	}
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, cache.RefreshByUserKey(userID), token, ttl)
		p.Set(ctx, cache.RefreshByTokenKey(token), userID, ttl)
		return nil
	})
	if err != nil {
		s.log.Warn(ctx, "refresh token cache warm failed", append([]any{"user_id", userID}, logging.ErrAttrs(err)...)...)
	}
}

// Revoke removes the principal's refresh token from both stores. Revoking a
// principal without a token is not an error.
func (s *Store) Revoke(ctx context.Context, userID string) error {
	var token string
	if v, err := s.rdb.Get(ctx, cache.RefreshByUserKey(userID)).Result(); err == nil {
		token = v
	}

	r := s.repo.RefreshTokens(s.db)
	if token == "" {
		rec, err := r.FindByUser(ctx, userID)
		switch {
		case err == nil:
			token = rec.Token
		case errors.Is(err, common.ErrNotFound):
		default:
			return durableErr("refreshtokens.Revoke", err, userID)
		}
	}

	if err := r.DeleteByUser(ctx, userID); err != nil {
		return durableErr("refreshtokens.Revoke", err, userID)
	}

	keys := []string{cache.RefreshByUserKey(userID)}
	if token != "" {
		keys = append(keys, cache.RefreshByTokenKey(token))
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return common.E(common.KindStoreUnavailable, "refreshtokens.Revoke", err, "user_id", userID)
	}
	return nil
}

// RevokeByToken drops both cache entries for token. The principal is
// resolved from the cache, then the durable store; if it cannot be resolved
// only the token-keyed entry is removed and the other expires by TTL.
// The durable record is left for Save or Revoke, which key on the principal.
func (s *Store) RevokeByToken(ctx context.Context, token string) error {
	var userID string
	if v, err := s.rdb.Get(ctx, cache.RefreshByTokenKey(token)).Result(); err == nil {
		userID = v
	} else {
		rec, ferr := s.repo.RefreshTokens(s.db).FindByToken(ctx, token)
		if ferr == nil {
			userID = rec.UserID
		} else if !errors.Is(ferr, common.ErrNotFound) {
			s.log.Warn(ctx, "cannot resolve principal for token revocation", logging.ErrAttrs(ferr)...)
		}
	}

	keys := []string{cache.RefreshByTokenKey(token)}
	if userID != "" {
		keys = append(keys, cache.RefreshByUserKey(userID))
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return common.E(common.KindStoreUnavailable, "refreshtokens.RevokeByToken", err, "user_id", userID)
	}
	return nil
}

// PruneExpired deletes durable records that are past expiry.
func (s *Store) PruneExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.RefreshTokens(s.db).DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, durableErr("refreshtokens.PruneExpired", err, "")
	}
	return n, nil
}

// durableErr keeps tagged errors as they are and tags anything else (a
// failed BEGIN or COMMIT) as StoreUnavailable.
func durableErr(op string, err error, userID string) error {
	var e *common.Error
	if errors.As(err, &e) {
		return err
	}
	if userID != "" {
		return common.E(common.KindStoreUnavailable, op, err, "user_id", userID)
	}
	return common.E(common.KindStoreUnavailable, op, err)
}
