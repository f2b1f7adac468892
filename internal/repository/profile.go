package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/matchmate/matchmate-go/internal/model"
)

var ErrProfileNotFound = errors.New("profile not found")

// ProfileRepository handles profile persistence operations.
type ProfileRepository struct {
	db *sql.DB
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetByUserID loads a profile without its photos.
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID int64) (*model.Profile, error) {
	query := `SELECT user_id, display_name, gender, date_of_birth, city, religion, mother_tongue,
		education, profession, bio, interests, languages, updated_at
		FROM profiles WHERE user_id = ?`

	p := &model.Profile{}
	var (
		dob                  sql.NullTime
		interests, languages []byte
	)
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID, &p.DisplayName, &p.Gender, &dob, &p.City, &p.Religion, &p.MotherTongue,
		&p.Education, &p.Profession, &p.Bio, &interests, &languages, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	if dob.Valid {
		p.DateOfBirth = &dob.Time
	}
	if p.Interests, err = decodeList(interests); err != nil {
		return nil, fmt.Errorf("decoding interests: %w", err)
	}
	if p.Languages, err = decodeList(languages); err != nil {
		return nil, fmt.Errorf("decoding languages: %w", err)
	}
	return p, nil
}

// Update writes every editable field of p.
func (r *ProfileRepository) Update(ctx context.Context, p *model.Profile) error {
	interests, err := json.Marshal(nonNil(p.Interests))
	if err != nil {
		return err
	}
	languages, err := json.Marshal(nonNil(p.Languages))
	if err != nil {
		return err
	}

	query := `UPDATE profiles SET display_name = ?, gender = ?, date_of_birth = ?, city = ?, religion = ?,
		mother_tongue = ?, education = ?, profession = ?, bio = ?, interests = ?, languages = ?
		WHERE user_id = ?`

	var dob any
	if p.DateOfBirth != nil {
		dob = *p.DateOfBirth
	}

	result, err := r.db.ExecContext(ctx, query,
		p.DisplayName, p.Gender, dob, p.City, p.Religion,
		p.MotherTongue, p.Education, p.Profession, p.Bio, interests, languages,
		p.UserID,
	)
	if err != nil {
		return err
	}

	// MySQL reports 0 affected rows when nothing changed, so only a missing row is an error.
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM profiles WHERE user_id = ?)`, p.UserID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrProfileNotFound
		}
	}
	return nil
}

// Discover returns profiles other than userID's that userID has not swiped, newest first.
func (r *ProfileRepository) Discover(ctx context.Context, userID int64, limit int) ([]model.CardRecord, error) {
	query := `SELECT p.user_id, p.display_name, p.date_of_birth, p.city, p.profession, ` + firstPhoto + `, p.updated_at
		FROM profiles p
		WHERE p.user_id <> ?
			AND p.display_name <> ''
			AND NOT EXISTS (SELECT 1 FROM swipes s WHERE s.user_id = ? AND s.target_id = p.user_id)
		ORDER BY p.updated_at DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, userID, userID, limit)
	if err != nil {
		return nil, err
	}
	return scanCards(rows)
}

// firstPhoto selects the filename of a profile's oldest photo, aliased p.
const firstPhoto = `COALESCE((SELECT ph.filename FROM photos ph WHERE ph.user_id = p.user_id ORDER BY ph.created_at, ph.id LIMIT 1), '')`

// scanCards reads rows of (user_id, display_name, date_of_birth, city, profession, photo, at).
func scanCards(rows *sql.Rows) ([]model.CardRecord, error) {
	defer rows.Close()

	var cards []model.CardRecord
	for rows.Next() {
		var (
			c   model.CardRecord
			dob sql.NullTime
		)
		if err := rows.Scan(&c.UserID, &c.DisplayName, &dob, &c.City, &c.Profession, &c.PhotoFilename, &c.At); err != nil {
			return nil, err
		}
		if dob.Valid {
			c.DateOfBirth = &dob.Time
		}
		cards = append(cards, c)
	}

	return cards, rows.Err()
}

func decodeList(b []byte) ([]string, error) {
	if len(b) == 0 {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
