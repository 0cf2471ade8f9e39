// Package auth implements the credential codec: it mints and verifies
// RS256-signed access and refresh tokens against a rotating key set and
// publishes the verification keys as a JWKS.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/authhub/internal/clock"
	"github.com/dmitrijs2005/authhub/internal/common"
	"github.com/dmitrijs2005/authhub/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod signs every token the hub mints.
var SigningMethod = jwt.SigningMethodRS256

// Claims is the token payload. Roles, Permissions, TenantID and
// PermissionHash are only set on access tokens.
type Claims struct {
	jwt.RegisteredClaims
	Kind           string   `json:"kind"`
	TenantID       int64    `json:"tid,omitempty"`
	Roles          []string `json:"roles,omitempty"`
	Permissions    []string `json:"permissions,omitempty"`
	PermissionHash string   `json:"permission_hash,omitempty"`
}

// Codec mints and verifies tokens. It is stateless apart from the key set.
type Codec struct {
	keys   *KeySet
	issuer string
	clock  clock.Clock
}

func NewCodec(keys *KeySet, issuer string, clk clock.Clock) *Codec {
	if clk == nil {
		clk = clock.Real()
	}
	return &Codec{keys: keys, issuer: issuer, clock: clk}
}

// Keys exposes the key set, e.g. for JWKS publication.
func (c *Codec) Keys() *KeySet { return c.keys }

// Mint signs a token of kind for subject valid for ttl. The snapshot and
// tenant are embedded only for access tokens.
func (c *Codec) Mint(kind, subject string, tenantID int64, snap models.Snapshot, ttl time.Duration) (string, *Claims, error) {
	if kind != common.TokenKindAccess && kind != common.TokenKindRefresh {
		return "", nil, common.E(common.KindValidation, "auth.Mint", nil, "kind", kind)
	}

	now := c.clock.Now().Truncate(time.Second)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Kind: kind,
	}
	if kind == common.TokenKindAccess {
		claims.TenantID = tenantID
		claims.Roles = snap.Roles
		claims.Permissions = snap.Permissions
		claims.PermissionHash = PermissionHash(snap.Permissions)
	}

	kid, key := c.keys.Active()
	token := jwt.NewWithClaims(SigningMethod, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(key)
	if err != nil {
		return "", nil, common.E(common.KindInternal, "auth.Mint", err)
	}
	return signed, claims, nil
}

// Verify checks signature, issuer and expiry and returns the claims.
// Failures are MalformedToken, InvalidSignature or TokenExpired.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{SigningMethod.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.clock.Now),
	)

	_, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		pub, ok := c.keys.PublicKey(kid)
		if !ok {
			return nil, errUnknownKID
		}
		return pub, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	if claims.ID == "" || claims.Subject == "" ||
		(claims.Kind != common.TokenKindAccess && claims.Kind != common.TokenKindRefresh) {
		return nil, common.E(common.KindMalformedToken, "auth.Verify", nil)
	}
	return claims, nil
}

var errUnknownKID = errors.New("unknown kid")

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return common.E(common.KindTokenExpired, "auth.Verify", err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return common.E(common.KindMalformedToken, "auth.Verify", err)
	default:
		// bad signature, unknown kid, wrong alg or foreign issuer
		return common.E(common.KindInvalidSignature, "auth.Verify", err)
	}
}

// PermissionHash is the hex SHA-256 of the sorted permission keys joined by
// newlines, or "" when there are none.
func PermissionHash(perms []string) string {
	if len(perms) == 0 {
		return ""
	}
	sorted := append([]string(nil), perms...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(sum[:])
}
