package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/portalo/portalo/internal/metrics"
)

const (
	planCachePrefix = "plan:user:"
	// DefaultPlanTTL bounds how long a plan change takes to show up.
	DefaultPlanTTL = time.Minute
)

// PlanLoader loads a user's plan from the system of record.
type PlanLoader interface {
	UserPlan(ctx context.Context, userID string) (string, error)
}

// PlanCache caches user plans in Redis in front of a PlanLoader.
// Redis failures fall through to the loader.
type PlanCache struct {
	cache   *Cache
	loader  PlanLoader
	ttl     time.Duration
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPlanCache creates a new PlanCache. ttl <= 0 uses DefaultPlanTTL.
func NewPlanCache(c *Cache, loader PlanLoader, ttl time.Duration, logger *slog.Logger, recorder metrics.Recorder) *PlanCache {
	if ttl <= 0 {
		ttl = DefaultPlanTTL
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &PlanCache{
		cache:   c,
		loader:  loader,
		ttl:     ttl,
		logger:  logger.With("component", "plan_cache"),
		metrics: recorder,
	}
}

// UserPlan returns the plan name for userID.
func (p *PlanCache) UserPlan(ctx context.Context, userID string) (string, error) {
	key := planCachePrefix + userID

	plan, err := p.cache.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		p.metrics.IncCacheHit("plan")
		return plan, nil
	case !errors.Is(err, redis.Nil):
		p.logger.Warn("plan cache read failed", "user_id", userID, "error", err)
	}
	p.metrics.IncCacheMiss("plan")

	plan, err = p.loader.UserPlan(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load user plan: %w", err)
	}

	if err := p.cache.client.Set(ctx, key, plan, p.ttl).Err(); err != nil {
		p.logger.Warn("plan cache write failed", "user_id", userID, "error", err)
	}
	return plan, nil
}

// Invalidate drops the cached plan of userID.
func (p *PlanCache) Invalidate(ctx context.Context, userID string) error {
	return p.cache.client.Del(ctx, planCachePrefix+userID).Err()
}
