package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/matchmate/matchmate-go/internal/model"
)

var (
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenRevoked  = errors.New("refresh token already revoked")
)

// RefreshTokenRepository stores hashed refresh tokens.
type RefreshTokenRepository struct {
	db *sql.DB
}

// NewRefreshTokenRepository creates a new RefreshTokenRepository.
func NewRefreshTokenRepository(db *sql.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

const insertRefreshToken = `INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?, ?, ?)`

// Create stores a new refresh token.
func (r *RefreshTokenRepository) Create(ctx context.Context, t *model.RefreshToken) error {
	result, err := r.db.ExecContext(ctx, insertRefreshToken, t.UserID, t.TokenHash, t.ExpiresAt)
	if err != nil {
		return err
	}
	t.ID, err = result.LastInsertId()
	return err
}

// GetByHash looks up a refresh token by its hash.
func (r *RefreshTokenRepository) GetByHash(ctx context.Context, hash string) (*model.RefreshToken, error) {
	query := `SELECT id, user_id, token_hash, expires_at, revoked_at, created_at
		FROM refresh_tokens WHERE token_hash = ?`

	t := &model.RefreshToken{}
	var revokedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, hash).Scan(
		&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &revokedAt, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, err
	}
	if revokedAt.Valid {
		t.RevokedAt = &revokedAt.Time
	}
	return t, nil
}

// Rotate revokes the token with oldID and stores next in one transaction.
// It fails with ErrRefreshTokenRevoked if oldID was revoked concurrently,
// so a refresh token can be exchanged at most once.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldID int64, next *model.RefreshToken) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := revoke(ctx, tx, oldID); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, insertRefreshToken, next.UserID, next.TokenHash, next.ExpiresAt)
	if err != nil {
		return err
	}
	if next.ID, err = result.LastInsertId(); err != nil {
		return err
	}

	return tx.Commit()
}

// Revoke marks a token as revoked.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := revoke(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

func revoke(ctx context.Context, tx *sql.Tx, id int64) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = CURRENT_TIMESTAMP WHERE id = ? AND revoked_at IS NULL`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRefreshTokenRevoked
	}
	return nil
}

// RevokeAllForUser revokes every active token of a user.
func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = CURRENT_TIMESTAMP WHERE user_id = ? AND revoked_at IS NULL`, userID)
	return err
}

// DeleteExpired removes tokens that expired before the given time and returns how many were deleted.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < ?`, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
