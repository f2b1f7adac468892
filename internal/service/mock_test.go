package service

import (
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/matchmate/matchmate-go/internal/crypto"
	"github.com/matchmate/matchmate-go/internal/repository"
)

var (
	cardColumns  = []string{"user_id", "display_name", "date_of_birth", "city", "profession", "photo", "at"}
	tokenColumns = []string{"id", "user_id", "token_hash", "expires_at", "revoked_at", "created_at"}
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("opening sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

func newMockAuthService(t *testing.T) (*AuthService, *crypto.TokenIssuer, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	issuer := crypto.NewTokenIssuer("test-secret", time.Hour)
	svc := NewAuthService(
		repository.NewUserRepository(db),
		repository.NewRefreshTokenRepository(db),
		crypto.NewPasswordHasher(crypto.HashParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}),
		issuer,
		24*time.Hour,
	)
	return svc, issuer, mock
}

func newMockDiscoveryService(t *testing.T) (*DiscoveryService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	svc := NewDiscoveryService(
		repository.NewProfileRepository(db),
		repository.NewSwipeRepository(db),
		repository.NewShortlistRepository(db),
		"http://localhost:8080",
	)
	svc.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	return svc, mock
}

// capture records the argument it is matched against.
type capture struct {
	value driver.Value
}

func (c *capture) Match(v driver.Value) bool {
	c.value = v
	return true
}
