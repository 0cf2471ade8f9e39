// Package services contains server-side business logic. This file
// implements the session lifecycle: login, refresh, logout, me and
// authentication of access tokens.
package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/authhub/internal/clock"
	"github.com/dmitrijs2005/authhub/internal/common"
	"github.com/dmitrijs2005/authhub/internal/logging"
	"github.com/dmitrijs2005/authhub/internal/server/auth"
	"github.com/dmitrijs2005/authhub/internal/server/models"
	"github.com/dmitrijs2005/authhub/internal/server/repositories/repomanager"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
)

const tracerName = "github.com/dmitrijs2005/authhub/internal/server/services"

// RefreshTokenStore is the subset of the refresh token store the session
// lifecycle needs.
type RefreshTokenStore interface {
	Save(ctx context.Context, userID, token string, ttl time.Duration) error
	Rotate(ctx context.Context, userID, oldToken, newToken string, ttl time.Duration) error
	FindPrincipalByToken(ctx context.Context, token string) (string, bool, error)
	Revoke(ctx context.Context, userID string) error
	RevokeByToken(ctx context.Context, token string) error
}

type Blacklist interface {
	Add(ctx context.Context, jti string, expiresAt time.Time) error
	Contains(ctx context.Context, jti string) (bool, error)
}

type SnapshotResolver interface {
	Resolve(ctx context.Context, userID string) (models.Snapshot, error)
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type LoginResult struct {
	UserID string `json:"userId"`
	TokenPair
}

type MeResult struct {
	UserID      string   `json:"userId"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

type SessionOptions struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// StrictRotation makes concurrent refreshes of one token yield exactly
	// one winner.
	StrictRotation bool
}

// SessionManager drives a principal between anonymous and active sessions.
type SessionManager struct {
	db        *sql.DB
	repo      repomanager.RepositoryManager
	rbac      SnapshotResolver
	codec     *auth.Codec
	store     RefreshTokenStore
	blacklist Blacklist
	clock     clock.Clock
	opts      SessionOptions
	tracer    trace.Tracer
	log       logging.Logger
}

func NewSessionManager(db *sql.DB, repo repomanager.RepositoryManager, resolver SnapshotResolver, codec *auth.Codec,
	store RefreshTokenStore, bl Blacklist, clk clock.Clock, opts SessionOptions, log logging.Logger) *SessionManager {
	return &SessionManager{
		db:        db,
		repo:      repo,
		rbac:      resolver,
		codec:     codec,
		store:     store,
		blacklist: bl,
		clock:     clk,
		opts:      opts,
		tracer:    otel.Tracer(tracerName),
		log:       log.With("module", "session"),
	}
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// burnPassword spends one bcrypt comparison so unknown identifiers take as
// long as wrong passwords.
func burnPassword(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("authhub-dummy"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, common.KindOf(err).String())
	}
	span.End()
}

// Login verifies the credentials and opens a session. Unknown identifiers,
// wrong passwords and inactive users all yield InvalidCredentials.
func (s *SessionManager) Login(ctx context.Context, tenantID int64, identifier, password string) (res *LoginResult, err error) {
	ctx, span := s.tracer.Start(ctx, "session.Login", trace.WithAttributes(attribute.Int64("tenant_id", tenantID)))
	defer func() { endSpan(span, err) }()

	const op = "session.Login"
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, common.E(common.KindValidation, op, errors.New("identifier and password are required"))
	}

	user, err := s.repo.Users(s.db).FindByIdentifier(ctx, tenantID, identifier)
	if errors.Is(err, common.ErrNotFound) {
		burnPassword(password)
		return nil, common.E(common.KindInvalidCredentials, op, nil)
	}
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.log.Info(ctx, "login rejected", "user_id", user.ID, "reason", "password")
		return nil, common.E(common.KindInvalidCredentials, op, nil)
	}
	if !user.Active() {
		s.log.Info(ctx, "login rejected", "user_id", user.ID, "reason", "status")
		return nil, common.E(common.KindInvalidCredentials, op, nil)
	}

	pair, err := s.mintPair(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, user.ID, pair.RefreshToken, s.opts.RefreshTTL); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("user_id", user.ID))
	s.log.Info(ctx, "login", "user_id", user.ID, "tenant_id", user.TenantID)
	return &LoginResult{UserID: user.ID, TokenPair: *pair}, nil
}

// mintPair resolves the user's snapshot and signs a new access and refresh
// token.
func (s *SessionManager) mintPair(ctx context.Context, user *models.User) (*TokenPair, error) {
	snap, err := s.rbac.Resolve(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	access, _, err := s.codec.Mint(common.TokenKindAccess, user.ID, user.TenantID, snap, s.opts.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.codec.Mint(common.TokenKindRefresh, user.ID, 0, models.Snapshot{}, s.opts.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh exchanges a valid refresh token for a new pair. The presented
// token stops working: its cache entries are dropped, the new token
// supersedes it durably and its jti is blacklisted until natural expiry.
func (s *SessionManager) Refresh(ctx context.Context, refreshToken string) (pair *TokenPair, err error) {
	ctx, span := s.tracer.Start(ctx, "session.Refresh")
	defer func() { endSpan(span, err) }()

	const op = "session.Refresh"
	invalid := func(cause error, kv ...string) error {
		return common.E(common.KindInvalidRefreshToken, op, cause, kv...)
	}

	claims, err := s.codec.Verify(refreshToken)
	if err != nil {
		return nil, invalid(err)
	}
	if claims.Kind != common.TokenKindRefresh {
		return nil, invalid(nil, "kind", claims.Kind)
	}

	revoked, err := s.blacklist.Contains(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, invalid(nil, "jti", claims.ID)
	}

	userID, ok, err := s.store.FindPrincipalByToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if !ok || userID != claims.Subject {
		return nil, invalid(nil, "user_id", claims.Subject)
	}

	user, err := s.repo.Users(s.db).FindByID(ctx, userID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, invalid(nil, "user_id", userID)
	}
	if err != nil {
		return nil, err
	}
	if !user.Active() {
		return nil, invalid(nil, "user_id", userID)
	}

	pair, err = s.mintPair(ctx, user)
	if err != nil {
		return nil, err
	}

	if s.opts.StrictRotation {
		if err := s.store.Rotate(ctx, userID, refreshToken, pair.RefreshToken, s.opts.RefreshTTL); err != nil {
			return nil, err
		}
	} else {
		if err := s.store.RevokeByToken(ctx, refreshToken); err != nil {
			s.log.Warn(ctx, "dropping old refresh token from cache failed",
				append([]any{"user_id", userID}, logging.ErrAttrs(err)...)...)
		}
		if err := s.store.Save(ctx, userID, pair.RefreshToken, s.opts.RefreshTTL); err != nil {
			return nil, err
		}
	}

	if err := s.blacklist.Add(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		s.log.Warn(ctx, "blacklisting rotated refresh token failed",
			append([]any{"user_id", userID, "jti", claims.ID}, logging.ErrAttrs(err)...)...)
	}

	span.SetAttributes(attribute.String("user_id", userID))
	s.log.Info(ctx, "token refreshed", "user_id", userID)
	return pair, nil
}

// Logout ends userID's session. The caller must be userID. The caller's
// access token is blacklisted for its remaining validity and the refresh
// token is revoked from both stores. Repeating a logout is not an error.
func (s *SessionManager) Logout(ctx context.Context, caller *models.Principal, userID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "session.Logout")
	defer func() { endSpan(span, err) }()

	const op = "session.Logout"
	if caller == nil {
		return common.E(common.KindUnauthenticated, op, nil)
	}
	if userID == "" {
		return common.E(common.KindValidation, op, errors.New("userId is required"))
	}
	if caller.UserID != userID {
		return common.E(common.KindForbidden, op, nil, "user_id", userID)
	}

	if caller.JTI != "" {
		if err := s.blacklist.Add(ctx, caller.JTI, caller.ExpiresAt); err != nil {
			return err
		}
	}
	if err := s.store.Revoke(ctx, userID); err != nil {
		return err
	}

	span.SetAttributes(attribute.String("user_id", userID))
	s.log.Info(ctx, "logout", "user_id", userID)
	return nil
}

// Me reports the caller's identity and a freshly resolved snapshot.
func (s *SessionManager) Me(ctx context.Context, p *models.Principal) (*MeResult, error) {
	if p == nil {
		return nil, common.E(common.KindUnauthenticated, "session.Me", nil)
	}
	snap, err := s.rbac.Resolve(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	res := &MeResult{UserID: p.UserID, Roles: snap.Roles, Permissions: snap.Permissions}
	if res.Roles == nil {
		res.Roles = []string{}
	}
	if res.Permissions == nil {
		res.Permissions = []string{}
	}
	return res, nil
}

// Authenticate verifies an access token and returns its principal. Revoked
// tokens yield TokenRevoked; a blacklist that cannot be queried yields its
// error, never a principal.
func (s *SessionManager) Authenticate(ctx context.Context, accessToken string) (*models.Principal, error) {
	p, err := s.verifyAccess(accessToken)
	if err != nil {
		return nil, err
	}

	revoked, err := s.blacklist.Contains(ctx, p.JTI)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, common.E(common.KindTokenRevoked, "session.Authenticate", nil, "jti", p.JTI)
	}
	return p, nil
}

// AuthenticateForLogout is Authenticate without the blacklist check, so that
// logging out with an already revoked token succeeds.
func (s *SessionManager) AuthenticateForLogout(_ context.Context, accessToken string) (*models.Principal, error) {
	return s.verifyAccess(accessToken)
}

func (s *SessionManager) verifyAccess(accessToken string) (*models.Principal, error) {
	claims, err := s.codec.Verify(accessToken)
	if err != nil {
		return nil, err
	}
	if claims.Kind != common.TokenKindAccess {
		return nil, common.E(common.KindUnauthenticated, "session.Authenticate", nil, "kind", claims.Kind)
	}
	return &models.Principal{
		UserID:      claims.Subject,
		TenantID:    claims.TenantID,
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
		JTI:         claims.ID,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}
