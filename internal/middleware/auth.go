package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/matchmate/matchmate-go/internal/crypto"
	"github.com/matchmate/matchmate-go/internal/model"
)

type contextKey string

const userIDKey contextKey = "userID"

var (
	errMissingAuthorization = errors.New("missing authorization header")
	errAuthorizationFormat  = errors.New("invalid authorization format")
)

// TokenValidator validates an access token and returns its claims.
type TokenValidator interface {
	Validate(token string) (*crypto.Claims, error)
}

// JWTAuth returns middleware that requires a valid Bearer access token and
// stores its user ID in the request context.
func JWTAuth(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, err.Error())
				return
			}

			claims, err := tokens.Validate(token)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.UserID)))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errMissingAuthorization
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errAuthorizationFormat
	}
	return strings.TrimSpace(token), nil
}

// WithUserID returns a context carrying the authenticated user ID.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext extracts the authenticated user ID from the request context.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// writeJSONError writes a failure envelope.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.Fail[any](msg))
}
