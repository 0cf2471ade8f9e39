package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authhub/internal/dbx"
	"github.com/dmitrijs2005/authhub/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) find(ctx context.Context, op, query, arg string) (*models.RefreshToken, error) {
	rt := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&rt.UserID, &rt.Token, &rt.ExpiresAt, &rt.CreatedAt, &rt.UpdatedAt)
	if err != nil {
		return nil, dbx.Classify(op, err)
	}
	return rt, nil
}

func (r *PostgresRepository) LockByUser(ctx context.Context, userID string) (*models.RefreshToken, error) {
	query := `
		SELECT user_id, token, expires_at, created_at, updated_at
		FROM refresh_tokens
		WHERE user_id = $1
		FOR UPDATE
	`
	return r.find(ctx, "refreshtokens.LockByUser", query, userID)
}

func (r *PostgresRepository) FindByUser(ctx context.Context, userID string) (*models.RefreshToken, error) {
	query := `
		SELECT user_id, token, expires_at, created_at, updated_at
		FROM refresh_tokens
		WHERE user_id = $1
	`
	return r.find(ctx, "refreshtokens.FindByUser", query, userID)
}

func (r *PostgresRepository) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		SELECT user_id, token, expires_at, created_at, updated_at
		FROM refresh_tokens
		WHERE token = $1
	`
	return r.find(ctx, "refreshtokens.FindByToken", query, token)
}

func (r *PostgresRepository) Upsert(ctx context.Context, userID, token string, expiresAt time.Time) error {
	query := `
		INSERT INTO refresh_tokens (user_id, token, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at, updated_at = now()
	`
	if _, err := r.db.ExecContext(ctx, query, userID, token, expiresAt); err != nil {
		return dbx.Classify("refreshtokens.Upsert", err, "user_id", userID)
	}
	return nil
}

func (r *PostgresRepository) Replace(ctx context.Context, userID, oldToken, newToken string, expiresAt time.Time) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET token = $3, expires_at = $4, updated_at = now()
		WHERE user_id = $1 AND token = $2
	`
	res, err := r.db.ExecContext(ctx, query, userID, oldToken, newToken, expiresAt)
	if err != nil {
		return false, dbx.Classify("refreshtokens.Replace", err, "user_id", userID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dbx.Classify("refreshtokens.Replace", err, "user_id", userID)
	}
	return n == 1, nil
}

func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE user_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return dbx.Classify("refreshtokens.DeleteByUser", err, "user_id", userID)
	}
	return nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE expires_at <= $1
	`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, dbx.Classify("refreshtokens.DeleteExpired", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbx.Classify("refreshtokens.DeleteExpired", err)
	}
	return n, nil
}
