package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/noakmilo/qventory-relist/internal/config"
	"github.com/noakmilo/qventory-relist/pkg/ratelimit"
)

// Client implements ListingAPI against the marketplace's offer endpoints.
// Every call fetches a fresh access token from the injected provider and
// waits on the shared rate limiter first.
type Client struct {
	cfg     *config.MarketplaceConfig
	log     *logrus.Logger
	tokens  TokenProvider
	limiter *ratelimit.MarketplaceRateLimiter
	client  *http.Client
}

func NewClient(cfg *config.MarketplaceConfig, log *logrus.Logger, tokens TokenProvider, limiter *ratelimit.MarketplaceRateLimiter) *Client {
	return &Client{
		cfg:     cfg,
		log:     log,
		tokens:  tokens,
		limiter: limiter,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
	}
}

func (c *Client) Withdraw(ctx context.Context, userID uint, offerID string) (json.RawMessage, error) {
	return c.call(ctx, userID, http.MethodPost, fmt.Sprintf("/sell/inventory/v1/offer/%s/withdraw", offerID), nil)
}

func (c *Client) Update(ctx context.Context, userID uint, offerID string, changes ListingChanges) (json.RawMessage, error) {
	body, err := json.Marshal(changes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode listing changes: %w", err)
	}
	return c.call(ctx, userID, http.MethodPut, fmt.Sprintf("/sell/inventory/v1/offer/%s", offerID), body)
}

func (c *Client) Publish(ctx context.Context, userID uint, offerID string) (*PublishResult, error) {
	raw, err := c.call(ctx, userID, http.MethodPost, fmt.Sprintf("/sell/inventory/v1/offer/%s/publish", offerID), nil)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		ListingID string `json:"listingId"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode publish response: %w", err)
	}
	if parsed.ListingID == "" {
		return nil, fmt.Errorf("%w: publish response carried no listing id", ErrCallFailed)
	}
	return &PublishResult{ListingID: parsed.ListingID, Raw: raw}, nil
}

func (c *Client) call(ctx context.Context, userID uint, method, path string, body []byte) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx, userID); err != nil {
		return nil, err
	}

	token, err := c.tokens.GetValidAccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIBaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("marketplace request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Marketplace API call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized {
			// Token died before its cache TTL; drop it so the next attempt
			// refreshes instead of failing the same way.
			if err := c.tokens.Invalidate(ctx, userID); err != nil {
				c.log.WithError(err).Warn("Failed to invalidate rejected access token")
			}
		}
		return nil, fmt.Errorf("%w: %s %s returned status %d: %s",
			ErrCallFailed, method, path, resp.StatusCode, string(respBody))
	}

	if len(respBody) == 0 {
		respBody = []byte("{}")
	}
	return json.RawMessage(respBody), nil
}
