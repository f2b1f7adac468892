// Package apiclient is the authenticated client for the MatchMate REST API.
//
// Every call resolves to a model.APIResponse envelope; errors never escape
// as Go errors or panics. A 401 on an authenticated call triggers one token
// refresh, shared by all concurrent callers, followed by one retry.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/matchmate/matchmate-go/internal/model"
	"github.com/matchmate/matchmate-go/internal/tokenstore"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultRefreshPath = "/auth/refresh"

	// AuthExpiredMessage is the envelope error returned when the session cannot be refreshed.
	// Callers should send the user back to login when they see it.
	AuthExpiredMessage = "401 Authentication expired"

	maxResponseBytes = 10 << 20 // 10MB
)

var (
	ErrNetwork           = errors.New("network error")
	ErrAuthExpired       = errors.New(AuthExpiredMessage)
	ErrCanceled          = errors.New("request canceled")
	ErrMalformedResponse = errors.New("malformed response")
)

// Options configures a Client.
type Options struct {
	// BaseURL is the API prefix, e.g. https://api.example.com:443/api/v1.
	BaseURL     string
	Store       tokenstore.Store
	HTTPClient  *http.Client
	Timeout     time.Duration
	RefreshPath string
	Logger      *slog.Logger
}

// Client issues authenticated requests against the API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	store       tokenstore.Store
	refreshPath string
	timeout     time.Duration
	logger      *slog.Logger

	refreshGroup singleflight.Group
	// storeMu serializes credential writes made by the client.
	storeMu sync.Mutex
}

// New creates a Client. A nil Store defaults to an empty in-memory store.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = newHTTPClient(opts.Timeout)
	}
	if opts.Store == nil {
		opts.Store = tokenstore.NewMemoryStore(tokenstore.Credentials{})
	}
	if opts.RefreshPath == "" {
		opts.RefreshPath = DefaultRefreshPath
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		httpClient:  opts.HTTPClient,
		store:       opts.Store,
		refreshPath: opts.RefreshPath,
		timeout:     opts.Timeout,
		logger:      opts.Logger,
	}
}

// BaseURL builds the {scheme}://{host}:{port}/api/{version} prefix.
func BaseURL(scheme, host string, port int, version string) string {
	return fmt.Sprintf("%s://%s/api/%s", scheme, net.JoinHostPort(host, strconv.Itoa(port)), version)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	d := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           d.DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// Store returns the client's token store.
func (c *Client) Store() tokenstore.Store {
	return c.store
}

// SetCredentials replaces the stored credentials, e.g. after login.
func (c *Client) SetCredentials(ctx context.Context, creds tokenstore.Credentials) error {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()
	return c.store.Save(ctx, creds)
}

// ClearCredentials removes all stored credentials.
func (c *Client) ClearCredentials(ctx context.Context) error {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()
	return c.store.Clear(ctx)
}

// Do sends req and decodes the response envelope into T.
//
// If the request carried credentials and the server answers 401, the access
// token is refreshed once and the request is retried once. A 401 on the retry
// is returned as the server sent it.
func Do[T any](ctx context.Context, c *Client, req Request) model.APIResponse[T] {
	creds, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn("loading credentials failed, sending unauthenticated", "error", err)
	}

	resp, err := c.send(ctx, req, creds.AccessToken)
	if err != nil {
		return transportFailure[T](ctx, err)
	}

	if resp.StatusCode == http.StatusUnauthorized && !creds.Empty() {
		drainAndClose(resp)
		c.logger.Debug("access token rejected, refreshing", "method", req.Method, "path", req.Path)

		token, err := c.refresh(ctx, creds.AccessToken)
		if err != nil {
			if ctx.Err() != nil {
				return transportFailure[T](ctx, err)
			}
			if !errors.Is(err, errRefreshRejected) {
				c.logger.Warn("token refresh failed", "error", err)
			}
			return model.APIResponse[T]{
				Error: AuthExpiredMessage,
				Err:   fmt.Errorf("%w: %w", ErrAuthExpired, err),
			}
		}

		resp, err = c.send(ctx, req, token)
		if err != nil {
			return transportFailure[T](ctx, err)
		}
		if resp.StatusCode == http.StatusUnauthorized {
			c.logger.Warn("request rejected after token refresh", "method", req.Method, "path", req.Path)
		}
	}

	return decode[T](ctx, resp)
}

func (c *Client) send(ctx context.Context, req Request, token string) (*http.Response, error) {
	httpReq, err := c.newHTTPRequest(ctx, req, token)
	if err != nil {
		return nil, err
	}
	return c.httpClient.Do(httpReq)
}

func decode[T any](ctx context.Context, resp *http.Response) model.APIResponse[T] {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transportFailure[T](ctx, err)
	}

	if len(bytes.TrimSpace(body)) == 0 && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return model.APIResponse[T]{Success: true}
	}

	var out model.APIResponse[T]
	if err := json.Unmarshal(body, &out); err != nil {
		if resp.StatusCode == http.StatusUnauthorized {
			return model.APIResponse[T]{Error: AuthExpiredMessage, Err: ErrAuthExpired}
		}
		return model.APIResponse[T]{
			Error: fmt.Sprintf("malformed response (HTTP %d)", resp.StatusCode),
			Err:   fmt.Errorf("%w: %w", ErrMalformedResponse, err),
		}
	}
	return out
}

// transportFailure converts an error from the HTTP round trip into an envelope.
func transportFailure[T any](ctx context.Context, err error) model.APIResponse[T] {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return model.APIResponse[T]{Error: "request canceled", Err: fmt.Errorf("%w: %w", ErrCanceled, err)}
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return model.APIResponse[T]{Error: "request timed out", Err: fmt.Errorf("%w: %w", ErrCanceled, err)}
	}

	msg := err.Error()
	if msg == "" {
		msg = "Network error"
	}
	return model.APIResponse[T]{Error: msg, Err: fmt.Errorf("%w: %w", ErrNetwork, err)}
}

func drainAndClose(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
