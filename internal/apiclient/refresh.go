package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/matchmate/matchmate-go/internal/model"
	"github.com/matchmate/matchmate-go/internal/tokenstore"
)

// errRefreshRejected means the server refused the refresh token, or there was none.
var errRefreshRejected = errors.New("refresh token rejected")

// refresh returns an access token newer than stale. Concurrent callers share
// one in-flight refresh; each may stop waiting when its own ctx ends.
func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	ch := c.refreshGroup.DoChan("refresh", func() (any, error) {
		// The refresh outlives any single waiting caller.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.doRefresh(rctx, stale)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) doRefresh(ctx context.Context, stale string) (string, error) {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()

	creds, err := c.store.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("loading credentials: %w", err)
	}

	// Another caller already replaced the token this request was sent with.
	if creds.AccessToken != "" && creds.AccessToken != stale {
		return creds.AccessToken, nil
	}

	if creds.RefreshToken == "" {
		c.clearIfUnchanged(ctx, creds.RefreshToken)
		return "", errRefreshRejected
	}

	pair, err := c.exchange(ctx, creds.RefreshToken)
	if err != nil {
		c.logger.Info("refresh failed, clearing credentials", "error", err)
		c.clearIfUnchanged(ctx, creds.RefreshToken)
		return "", err
	}

	next := tokenstore.Credentials{
		AccessToken:  pair.AccessToken,
		RefreshToken: creds.RefreshToken,
	}
	if pair.RefreshToken != "" {
		next.RefreshToken = pair.RefreshToken
	}
	if err := c.store.Save(ctx, next); err != nil {
		c.clearIfUnchanged(ctx, creds.RefreshToken)
		return "", fmt.Errorf("saving credentials: %w", err)
	}

	c.logger.Debug("access token refreshed")
	return pair.AccessToken, nil
}

// clearIfUnchanged wipes the store unless another writer has installed a
// different refresh token since the failed one was read. Stores shared
// between processes do the comparison on their side.
func (c *Client) clearIfUnchanged(ctx context.Context, failed string) {
	if cc, ok := c.store.(tokenstore.CompareAndClearer); ok {
		if _, err := cc.CompareAndClear(ctx, failed); err != nil {
			c.logger.Warn("clearing credentials failed", "error", err)
		}
		return
	}

	current, err := c.store.Load(ctx)
	if err == nil && current.RefreshToken != failed {
		return
	}
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Warn("clearing credentials failed", "error", err)
	}
}

// exchange trades a refresh token for a new token pair.
func (c *Client) exchange(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	resp, err := c.send(ctx, Request{
		Method: http.MethodPost,
		Path:   c.refreshPath,
		Body:   JSONBody{Value: model.RefreshRequest{RefreshToken: refreshToken}},
	}, "")
	if err != nil {
		return model.TokenPair{}, err
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		drainAndClose(resp)
		return model.TokenPair{}, errRefreshRejected
	}
	if resp.StatusCode >= 500 {
		drainAndClose(resp)
		return model.TokenPair{}, fmt.Errorf("refresh endpoint returned HTTP %d", resp.StatusCode)
	}

	out := decode[model.TokenPair](ctx, resp)
	if out.Err != nil {
		return model.TokenPair{}, out.Err
	}
	if !out.Success || out.Data.AccessToken == "" {
		return model.TokenPair{}, errRefreshRejected
	}
	return out.Data, nil
}
