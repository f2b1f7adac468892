package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/matchmate/matchmate-go/internal/crypto"
	"github.com/matchmate/matchmate-go/internal/model"
	"github.com/matchmate/matchmate-go/internal/repository"
)

const minPasswordLength = 8

var (
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrEmailRequired        = errors.New("email is required")
	ErrInvalidEmail         = errors.New("email is invalid")
	ErrPasswordRequired     = errors.New("password is required")
	ErrPasswordTooShort     = errors.New("password must be at least 8 characters")
	ErrEmailTaken           = errors.New("email already taken")
	ErrRefreshTokenRequired = errors.New("refresh_token is required")
	ErrInvalidRefreshToken  = errors.New("invalid or expired refresh token")
)

// AuthService handles accounts and token issuance.
type AuthService struct {
	users         *repository.UserRepository
	tokens        *repository.RefreshTokenRepository
	hasher        *crypto.PasswordHasher
	issuer        *crypto.TokenIssuer
	refreshExpiry time.Duration
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	users *repository.UserRepository,
	tokens *repository.RefreshTokenRepository,
	hasher *crypto.PasswordHasher,
	issuer *crypto.TokenIssuer,
	refreshExpiry time.Duration,
) *AuthService {
	return &AuthService{
		users:         users,
		tokens:        tokens,
		hasher:        hasher,
		issuer:        issuer,
		refreshExpiry: refreshExpiry,
	}
}

// Register creates a new account and returns a token pair.
func (s *AuthService) Register(ctx context.Context, req model.CreateUserRequest) (model.AuthResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return model.AuthResponse{}, err
	}
	if req.Password == "" {
		return model.AuthResponse{}, ErrPasswordRequired
	}
	if len(req.Password) < minPasswordLength {
		return model.AuthResponse{}, ErrPasswordTooShort
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return model.AuthResponse{}, err
	}

	user := &model.User{Email: email, AuthHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return model.AuthResponse{}, ErrEmailTaken
		}
		return model.AuthResponse{}, err
	}
	user.CreatedAt = time.Now().UTC()

	return s.authResponse(ctx, user)
}

// Login authenticates a user and returns a token pair.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (model.AuthResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return model.AuthResponse{}, ErrInvalidCredentials
	}
	if req.Password == "" {
		return model.AuthResponse{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.AuthResponse{}, ErrInvalidCredentials
		}
		return model.AuthResponse{}, err
	}

	match, err := s.hasher.Verify(req.Password, user.AuthHash)
	if err != nil {
		return model.AuthResponse{}, err
	}
	if !match {
		return model.AuthResponse{}, ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(user.AuthHash) {
		if hash, err := s.hasher.Hash(req.Password); err == nil {
			if err := s.users.UpdateAuthHash(ctx, user.ID, hash); err != nil {
				slog.Warn("password rehash failed", "user_id", user.ID, "error", err)
			}
		}
	}

	return s.authResponse(ctx, user)
}

// Refresh exchanges a refresh token for a new token pair. The presented
// token is revoked. Presenting an already revoked token revokes every
// session of its owner, since it means the token was copied.
func (s *AuthService) Refresh(ctx context.Context, req model.RefreshRequest) (model.TokenPair, error) {
	if req.RefreshToken == "" {
		return model.TokenPair{}, ErrRefreshTokenRequired
	}

	stored, err := s.tokens.GetByHash(ctx, crypto.HashRefreshToken(req.RefreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return model.TokenPair{}, ErrInvalidRefreshToken
		}
		return model.TokenPair{}, err
	}

	if stored.RevokedAt != nil {
		slog.Warn("revoked refresh token presented, revoking all sessions", "user_id", stored.UserID)
		if err := s.tokens.RevokeAllForUser(ctx, stored.UserID); err != nil {
			slog.Error("revoking sessions failed", "user_id", stored.UserID, "error", err)
		}
		return model.TokenPair{}, ErrInvalidRefreshToken
	}
	if time.Now().After(stored.ExpiresAt) {
		return model.TokenPair{}, ErrInvalidRefreshToken
	}

	plain, next, err := s.newRefreshToken(stored.UserID)
	if err != nil {
		return model.TokenPair{}, err
	}
	if err := s.tokens.Rotate(ctx, stored.ID, next); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenRevoked) {
			return model.TokenPair{}, ErrInvalidRefreshToken
		}
		return model.TokenPair{}, err
	}

	access, expiresAt, err := s.issuer.Issue(stored.UserID)
	if err != nil {
		return model.TokenPair{}, err
	}

	return model.TokenPair{AccessToken: access, RefreshToken: plain, ExpiresAt: expiresAt}, nil
}

// Logout revokes the caller's refresh token. Unknown or foreign tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, userID int64, req model.RefreshRequest) error {
	if req.RefreshToken == "" {
		return nil
	}

	stored, err := s.tokens.GetByHash(ctx, crypto.HashRefreshToken(req.RefreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return nil
		}
		return err
	}
	if stored.UserID != userID {
		return nil
	}

	if err := s.tokens.Revoke(ctx, stored.ID); err != nil && !errors.Is(err, repository.ErrRefreshTokenRevoked) {
		return err
	}
	return nil
}

// GetUser retrieves a user by ID and returns safe user data.
func (s *AuthService) GetUser(ctx context.Context, userID int64) (model.UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return model.UserResponse{}, err
	}

	return model.UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}, nil
}

// PurgeExpiredTokens deletes refresh tokens that expired before now.
func (s *AuthService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpired(ctx, time.Now())
}

func (s *AuthService) authResponse(ctx context.Context, user *model.User) (model.AuthResponse, error) {
	access, expiresAt, err := s.issuer.Issue(user.ID)
	if err != nil {
		return model.AuthResponse{}, err
	}

	plain, stored, err := s.newRefreshToken(user.ID)
	if err != nil {
		return model.AuthResponse{}, err
	}
	if err := s.tokens.Create(ctx, stored); err != nil {
		return model.AuthResponse{}, fmt.Errorf("storing refresh token: %w", err)
	}

	return model.AuthResponse{
		TokenPair: model.TokenPair{
			AccessToken:  access,
			RefreshToken: plain,
			ExpiresAt:    expiresAt,
		},
		User: model.UserResponse{
			ID:        user.ID,
			Email:     user.Email,
			CreatedAt: user.CreatedAt,
		},
	}, nil
}

func (s *AuthService) newRefreshToken(userID int64) (string, *model.RefreshToken, error) {
	plain, hash, err := crypto.NewRefreshToken()
	if err != nil {
		return "", nil, err
	}
	return plain, &model.RefreshToken{
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: time.Now().Add(s.refreshExpiry).UTC(),
	}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", ErrEmailRequired
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
