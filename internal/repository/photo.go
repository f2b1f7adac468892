package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/matchmate/matchmate-go/internal/model"
)

var ErrPhotoNotFound = errors.New("photo not found")

// PhotoRepository handles profile photo metadata. Files live on disk.
type PhotoRepository struct {
	db *sql.DB
}

// NewPhotoRepository creates a new PhotoRepository.
func NewPhotoRepository(db *sql.DB) *PhotoRepository {
	return &PhotoRepository{db: db}
}

// Create inserts photo metadata.
func (r *PhotoRepository) Create(ctx context.Context, p *model.Photo) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO photos (id, user_id, filename) VALUES (?, ?, ?)`, p.ID, p.UserID, p.Filename)
	return err
}

// ListByUser returns a user's photos, oldest first.
func (r *PhotoRepository) ListByUser(ctx context.Context, userID int64) ([]model.Photo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, filename, created_at FROM photos WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	photos := []model.Photo{}
	for rows.Next() {
		var p model.Photo
		if err := rows.Scan(&p.ID, &p.UserID, &p.Filename, &p.CreatedAt); err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}

	return photos, rows.Err()
}

// CountByUser returns how many photos a user has.
func (r *PhotoRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM photos WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

// Delete removes one of a user's photos and returns its filename.
func (r *PhotoRepository) Delete(ctx context.Context, userID int64, id string) (string, error) {
	var filename string
	err := r.db.QueryRowContext(ctx,
		`SELECT filename FROM photos WHERE id = ? AND user_id = ?`, id, userID).Scan(&filename)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrPhotoNotFound
		}
		return "", err
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM photos WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return "", err
	}
	return filename, nil
}
