package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/matchmate/matchmate-go/internal/model"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// MySQL server error numbers.
const (
	errDuplicateEntry  = 1062
	errNoReferencedRow = 1452
)

// UserRepository handles user persistence operations.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user together with an empty profile and sets the generated ID.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `INSERT INTO users (email, auth_hash) VALUES (?, ?)`, user.Email, user.AuthHash)
	if err != nil {
		if isMySQLError(err, errDuplicateEntry) {
			return ErrDuplicateEmail
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO profiles (user_id) VALUES (?)`, id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	user.ID = id
	return nil
}

// GetByEmail retrieves a user by their email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, `SELECT id, email, auth_hash, created_at, updated_at FROM users WHERE email = ?`, email)
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getOne(ctx, `SELECT id, email, auth_hash, created_at, updated_at FROM users WHERE id = ?`, id)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Email, &user.AuthHash, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// UpdateAuthHash replaces a user's password hash.
func (r *UserRepository) UpdateAuthHash(ctx context.Context, id int64, hash string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET auth_hash = ? WHERE id = ?`, hash, id)
	return err
}

// isMySQLError reports whether err is a MySQL server error with the given number.
func isMySQLError(err error, number uint16) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == number
}
