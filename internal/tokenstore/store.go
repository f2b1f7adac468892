// Package tokenstore holds the access and refresh tokens used by the API client.
package tokenstore

import "context"

// Credentials is the token pair owned by a Store. Empty strings mean absent.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Empty reports whether no token is stored.
func (c Credentials) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// Store persists credentials between requests.
// Implementations must be safe for concurrent use.
type Store interface {
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, creds Credentials) error
	Clear(ctx context.Context) error
}

// CompareAndClearer is implemented by stores that can clear the credentials
// only while refreshToken is still the stored refresh token, in one step.
// It reports whether anything was cleared.
type CompareAndClearer interface {
	CompareAndClear(ctx context.Context, refreshToken string) (bool, error)
}
