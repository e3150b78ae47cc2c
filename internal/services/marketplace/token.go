package marketplace

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/noakmilo/qventory-relist/internal/config"
	"github.com/noakmilo/qventory-relist/pkg/redis"
)

// RefreshTokenStore resolves the long-lived refresh token a seller granted at
// account link time. The relist core never sees refresh tokens directly.
type RefreshTokenStore interface {
	GetRefreshToken(ctx context.Context, userID uint) (string, error)
}

// TokenCache is a dependency-injected access token cache on Redis. Access
// tokens expire server-side after roughly two hours; the cache TTL stays
// below that so a cached token is always still usable.
type TokenCache struct {
	cfg    *config.MarketplaceConfig
	log    *logrus.Logger
	cache  *redis.Client
	store  RefreshTokenStore
	client *http.Client
}

func NewTokenCache(cfg *config.MarketplaceConfig, log *logrus.Logger, cache *redis.Client, store RefreshTokenStore) *TokenCache {
	return &TokenCache{
		cfg:    cfg,
		log:    log,
		cache:  cache,
		store:  store,
		client: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

func (t *TokenCache) cacheKey(userID uint) string {
	return fmt.Sprintf("marketplace:access_token:%d", userID)
}

func (t *TokenCache) GetValidAccessToken(ctx context.Context, userID uint) (string, error) {
	token, err := t.cache.Get(ctx, t.cacheKey(userID)).Result()
	if err == nil && token != "" {
		return token, nil
	}
	if err != nil && err != goredis.Nil {
		t.log.WithError(err).Warn("Token cache read failed, refreshing directly")
	}

	token, ttl, err := t.refresh(ctx, userID)
	if err != nil {
		return "", err
	}

	if err := t.cache.Set(ctx, t.cacheKey(userID), token, ttl).Err(); err != nil {
		t.log.WithError(err).Warn("Failed to cache refreshed access token")
	}
	return token, nil
}

// Invalidate drops the cached token for a user, forcing a refresh on the next
// call. Used when the marketplace rejects a token before its TTL elapsed.
func (t *TokenCache) Invalidate(ctx context.Context, userID uint) error {
	return t.cache.Del(ctx, t.cacheKey(userID)).Err()
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (t *TokenCache) refresh(ctx context.Context, userID uint) (string, time.Duration, error) {
	refreshToken, err := t.store.GetRefreshToken(ctx, userID)
	if err != nil {
		return "", 0, fmt.Errorf("failed to load refresh token: %w", err)
	}
	if refreshToken == "" {
		return "", 0, fmt.Errorf("%w: user %d has no linked account", ErrTokenUnavailable, userID)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.AuthBaseURL+"/identity/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create token request: %w", err)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(t.cfg.ClientID + ":" + t.cfg.ClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("%w: token endpoint returned status %d", ErrTokenUnavailable, resp.StatusCode)
	}

	var parsed tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", 0, fmt.Errorf("failed to decode token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", 0, fmt.Errorf("%w: empty access token in response", ErrTokenUnavailable)
	}

	t.log.WithFields(logrus.Fields{
		"user_id":    userID,
		"expires_in": parsed.ExpiresIn,
	}).Debug("Refreshed marketplace access token")

	// Cache no longer than the token actually lives, minus a safety margin.
	ttl := t.cfg.TokenCacheTTL
	if parsed.ExpiresIn > 0 {
		expiry := time.Duration(parsed.ExpiresIn)*time.Second - 5*time.Minute
		if expiry > 0 && expiry < ttl {
			ttl = expiry
		}
	}
	return parsed.AccessToken, ttl, nil
}
