// Package refreshtokens declares and implements the durable repository for
// the single live refresh token each principal holds.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authhub/internal/server/models"
)

type Repository interface {
	// LockByUser returns the principal's record, locking the row for the
	// rest of the transaction. Absent records yield NotFound.
	LockByUser(ctx context.Context, userID string) (*models.RefreshToken, error)

	// FindByUser returns the principal's record or NotFound.
	FindByUser(ctx context.Context, userID string) (*models.RefreshToken, error)

	// FindByToken returns the record holding token or NotFound.
	FindByToken(ctx context.Context, token string) (*models.RefreshToken, error)

	// Upsert stores token as the principal's only record, replacing any
	// previous one.
	Upsert(ctx context.Context, userID, token string, expiresAt time.Time) error

	// Replace swaps oldToken for newToken only if oldToken is still the
	// principal's current token. It reports whether the swap happened.
	Replace(ctx context.Context, userID, oldToken, newToken string, expiresAt time.Time) (bool, error)

	// DeleteByUser removes the principal's record. Deleting nothing is not
	// an error.
	DeleteByUser(ctx context.Context, userID string) error

	// DeleteExpired removes records that expired before now and returns how
	// many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
