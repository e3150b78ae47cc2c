package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/noakmilo/qventory-relist/internal/config"
	"github.com/noakmilo/qventory-relist/internal/utils"
)

type userLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// MarketplaceRateLimiter throttles outbound marketplace API calls globally and
// per seller account. The marketplace enforces both budgets server-side;
// waiting here is cheaper than burning call quota on 429 responses.
type MarketplaceRateLimiter struct {
	cfg           *config.MarketplaceConfig
	log           *logrus.Logger
	globalLimiter *rate.Limiter
	userLimiters  map[uint]*userLimiterEntry
	mu            sync.Mutex
	wg            sync.WaitGroup
}

func NewMarketplaceRateLimiter(cfg *config.MarketplaceConfig, log *logrus.Logger) *MarketplaceRateLimiter {
	return &MarketplaceRateLimiter{
		cfg:           cfg,
		log:           log,
		globalLimiter: rate.NewLimiter(rate.Limit(cfg.MaxGlobalRequestPerSecond), cfg.MaxGlobalRequestPerSecond),
		userLimiters:  make(map[uint]*userLimiterEntry),
		mu:            sync.Mutex{},
		wg:            sync.WaitGroup{},
	}
}

// Wait blocks until both the global and the per-user budget allow one call.
func (r *MarketplaceRateLimiter) Wait(ctx context.Context, userID uint) error {
	userLimiter := r.getUserLimiter(userID)

	if err := r.globalLimiter.Wait(ctx); err != nil {
		r.log.WithError(err).Error("Failed to wait for global marketplace rate limit")
		return err
	}
	if err := userLimiter.limiter.Wait(ctx); err != nil {
		r.log.WithError(err).Error("Failed to wait for user marketplace rate limit")
		return err
	}
	return nil
}

func (r *MarketplaceRateLimiter) getUserLimiter(userID uint) *userLimiterEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limiter, exists := r.userLimiters[userID]; exists {
		limiter.lastAccess = time.Now()
		return limiter
	}

	limiter := rate.NewLimiter(rate.Limit(r.cfg.MaxUserRequestPerSecond), r.cfg.MaxUserRequestPerSecond)
	r.userLimiters[userID] = &userLimiterEntry{
		limiter:    limiter,
		lastAccess: time.Now(),
	}
	return r.userLimiters[userID]
}

func (r *MarketplaceRateLimiter) StartCleanupExpired(ctx context.Context) {
	r.wg.Add(1)
	utils.SafeGo(func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.cfg.RateLimitCleanupDuration)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				r.log.Info("Received signal to stop marketplace rate limiter cleanup expired")
				return
			case <-ticker.C:
				r.mu.Lock()
				now := time.Now()
				for userID, entry := range r.userLimiters {
					if now.Sub(entry.lastAccess) > r.cfg.RateLimitExpireDuration {
						delete(r.userLimiters, userID)
					}
				}
				r.mu.Unlock()
			}
		}
	})
}

func (r *MarketplaceRateLimiter) StopCleanupExpired() {
	r.wg.Wait()
	r.log.Info("Marketplace rate limiter stopped")
}
