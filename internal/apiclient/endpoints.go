package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/matchmate/matchmate-go/internal/model"
	"github.com/matchmate/matchmate-go/internal/tokenstore"
)

// Register creates an account and stores the issued credentials.
func (c *Client) Register(ctx context.Context, req model.CreateUserRequest) model.APIResponse[model.AuthResponse] {
	resp := Do[model.AuthResponse](ctx, c, Request{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Body:   JSONBody{Value: req},
	})
	c.storeAuth(ctx, &resp)
	return resp
}

// Login authenticates and stores the issued credentials.
func (c *Client) Login(ctx context.Context, req model.LoginRequest) model.APIResponse[model.AuthResponse] {
	resp := Do[model.AuthResponse](ctx, c, Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   JSONBody{Value: req},
	})
	c.storeAuth(ctx, &resp)
	return resp
}

func (c *Client) storeAuth(ctx context.Context, resp *model.APIResponse[model.AuthResponse]) {
	if !resp.Success {
		return
	}
	err := c.SetCredentials(ctx, tokenstore.Credentials{
		AccessToken:  resp.Data.AccessToken,
		RefreshToken: resp.Data.RefreshToken,
	})
	if err != nil {
		c.logger.Error("storing credentials failed", "error", err)
		resp.Success = false
		resp.Error = "could not store credentials: " + err.Error()
		resp.Err = err
	}
}

// Logout revokes the refresh token on the server and clears local credentials.
// Local credentials are cleared even if the server call fails.
func (c *Client) Logout(ctx context.Context) model.APIResponse[struct{}] {
	creds, _ := c.store.Load(ctx)

	resp := Do[struct{}](ctx, c, Request{
		Method: http.MethodPost,
		Path:   "/auth/logout",
		Body:   JSONBody{Value: model.RefreshRequest{RefreshToken: creds.RefreshToken}},
	})

	if err := c.ClearCredentials(ctx); err != nil {
		c.logger.Warn("clearing credentials failed", "error", err)
	}
	return resp
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) model.APIResponse[model.UserResponse] {
	return Do[model.UserResponse](ctx, c, Request{Method: http.MethodGet, Path: "/auth/me"})
}

// MyProfile returns the caller's own profile.
func (c *Client) MyProfile(ctx context.Context) model.APIResponse[model.Profile] {
	return Do[model.Profile](ctx, c, Request{Method: http.MethodGet, Path: "/profile"})
}

// UpdateProfile applies a partial update to the caller's profile.
func (c *Client) UpdateProfile(ctx context.Context, req model.ProfileUpdateRequest) model.APIResponse[model.Profile] {
	return Do[model.Profile](ctx, c, Request{
		Method: http.MethodPut,
		Path:   "/profile",
		Body:   JSONBody{Value: req},
	})
}

// Profile returns another member's profile.
func (c *Client) Profile(ctx context.Context, userID int64) model.APIResponse[model.Profile] {
	return Do[model.Profile](ctx, c, Request{Method: http.MethodGet, Path: "/profiles/" + id(userID)})
}

// UploadPhoto uploads a single profile photo.
func (c *Client) UploadPhoto(ctx context.Context, filename string, data []byte) model.APIResponse[[]model.Photo] {
	return c.uploadPhotos(ctx, []FormFile{{Field: "photo", Filename: filename, Data: data}})
}

// UploadPhotos uploads several profile photos in one request.
func (c *Client) UploadPhotos(ctx context.Context, files ...FormFile) model.APIResponse[[]model.Photo] {
	parts := make([]FormFile, len(files))
	for i, f := range files {
		f.Field = "photos"
		parts[i] = f
	}
	return c.uploadPhotos(ctx, parts)
}

func (c *Client) uploadPhotos(ctx context.Context, files []FormFile) model.APIResponse[[]model.Photo] {
	return Do[[]model.Photo](ctx, c, Request{
		Method: http.MethodPost,
		Path:   "/profile/photos",
		Body:   MultipartBody{Files: files},
	})
}

// DeletePhoto removes one of the caller's photos.
func (c *Client) DeletePhoto(ctx context.Context, photoID string) model.APIResponse[struct{}] {
	return Do[struct{}](ctx, c, Request{
		Method: http.MethodDelete,
		Path:   "/profile/photos/" + url.PathEscape(photoID),
	})
}

// Discover returns profiles the caller has not swiped yet.
func (c *Client) Discover(ctx context.Context, limit int) model.APIResponse[[]model.ProfileCard] {
	req := Request{Method: http.MethodGet, Path: "/discover"}
	if limit > 0 {
		req.Query = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	return Do[[]model.ProfileCard](ctx, c, req)
}

// Swipe likes or passes on a member.
func (c *Client) Swipe(ctx context.Context, req model.SwipeRequest) model.APIResponse[model.SwipeResponse] {
	return Do[model.SwipeResponse](ctx, c, Request{
		Method: http.MethodPost,
		Path:   "/swipes",
		Body:   JSONBody{Value: req},
	})
}

// Matches lists mutual likes.
func (c *Client) Matches(ctx context.Context) model.APIResponse[[]model.Match] {
	return Do[[]model.Match](ctx, c, Request{Method: http.MethodGet, Path: "/matches"})
}

// Shortlist lists shortlisted members.
func (c *Client) Shortlist(ctx context.Context) model.APIResponse[[]model.ShortlistEntry] {
	return Do[[]model.ShortlistEntry](ctx, c, Request{Method: http.MethodGet, Path: "/shortlist"})
}

// AddToShortlist shortlists a member.
func (c *Client) AddToShortlist(ctx context.Context, userID int64) model.APIResponse[struct{}] {
	return Do[struct{}](ctx, c, Request{
		Method: http.MethodPost,
		Path:   "/shortlist",
		Body:   JSONBody{Value: model.ShortlistRequest{TargetID: userID}},
	})
}

// RemoveFromShortlist removes a member from the shortlist.
func (c *Client) RemoveFromShortlist(ctx context.Context, userID int64) model.APIResponse[struct{}] {
	return Do[struct{}](ctx, c, Request{Method: http.MethodDelete, Path: "/shortlist/" + id(userID)})
}

// CommonInterests compares the caller's profile with another member's.
func (c *Client) CommonInterests(ctx context.Context, userID int64) model.APIResponse[model.CommonInterests] {
	return Do[model.CommonInterests](ctx, c, Request{
		Method: http.MethodGet,
		Path:   "/profiles/" + id(userID) + "/common-interests",
	})
}

func id(n int64) string {
	return strconv.FormatInt(n, 10)
}
