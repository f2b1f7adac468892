package repository

import (
	"context"
	"database/sql"

	"github.com/matchmate/matchmate-go/internal/model"
)

// SwipeRepository stores likes and passes.
type SwipeRepository struct {
	db *sql.DB
}

// NewSwipeRepository creates a new SwipeRepository.
func NewSwipeRepository(db *sql.DB) *SwipeRepository {
	return &SwipeRepository{db: db}
}

// Upsert records a swipe, overwriting any earlier swipe on the same target.
func (r *SwipeRepository) Upsert(ctx context.Context, userID, targetID int64, direction string) error {
	query := `INSERT INTO swipes (user_id, target_id, direction) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE direction = VALUES(direction), created_at = CURRENT_TIMESTAMP`

	_, err := r.db.ExecContext(ctx, query, userID, targetID, direction)
	if isMySQLError(err, errNoReferencedRow) {
		return ErrUserNotFound
	}
	return err
}

// Likes reports whether userID has liked targetID.
func (r *SwipeRepository) Likes(ctx context.Context, userID, targetID int64) (bool, error) {
	var liked bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM swipes WHERE user_id = ? AND target_id = ? AND direction = 'like')`,
		userID, targetID,
	).Scan(&liked)
	return liked, err
}

// Matches returns users who liked userID back, most recent match first.
func (r *SwipeRepository) Matches(ctx context.Context, userID int64) ([]model.CardRecord, error) {
	query := `SELECT p.user_id, p.display_name, p.date_of_birth, p.city, p.profession, ` + firstPhoto + `,
			GREATEST(a.created_at, b.created_at) AS matched_at
		FROM swipes a
		JOIN swipes b ON b.user_id = a.target_id AND b.target_id = a.user_id
		JOIN profiles p ON p.user_id = a.target_id
		WHERE a.user_id = ? AND a.direction = 'like' AND b.direction = 'like'
		ORDER BY matched_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return scanCards(rows)
}
