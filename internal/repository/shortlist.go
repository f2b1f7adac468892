package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/matchmate/matchmate-go/internal/model"
)

var ErrShortlistEntryNotFound = errors.New("shortlist entry not found")

// ShortlistRepository handles a member's shortlist.
type ShortlistRepository struct {
	db *sql.DB
}

// NewShortlistRepository creates a new ShortlistRepository.
func NewShortlistRepository(db *sql.DB) *ShortlistRepository {
	return &ShortlistRepository{db: db}
}

// Add shortlists targetID. Adding an existing entry is a no-op.
func (r *ShortlistRepository) Add(ctx context.Context, userID, targetID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT IGNORE INTO shortlist (user_id, target_id) VALUES (?, ?)`, userID, targetID)
	if isMySQLError(err, errNoReferencedRow) {
		return ErrUserNotFound
	}
	return err
}

// Remove deletes targetID from the shortlist.
func (r *ShortlistRepository) Remove(ctx context.Context, userID, targetID int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM shortlist WHERE user_id = ? AND target_id = ?`, userID, targetID)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrShortlistEntryNotFound
	}
	return nil
}

// List returns the shortlist, most recently added first.
func (r *ShortlistRepository) List(ctx context.Context, userID int64) ([]model.CardRecord, error) {
	query := `SELECT p.user_id, p.display_name, p.date_of_birth, p.city, p.profession, ` + firstPhoto + `, s.created_at
		FROM shortlist s
		JOIN profiles p ON p.user_id = s.target_id
		WHERE s.user_id = ?
		ORDER BY s.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return scanCards(rows)
}
