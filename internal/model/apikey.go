// Package model defines domain entities for the application.
package model

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// API key scopes. Dashboard reads need analytics:read; publishing a page's
// analytics through a share link needs analytics:share. admin implies both.
const (
	ScopeAnalyticsRead  = "analytics:read"
	ScopeAnalyticsShare = "analytics:share"
	ScopeAdmin          = "admin"
)

// ValidScopes contains all valid scope values.
var ValidScopes = []string{ScopeAnalyticsRead, ScopeAnalyticsShare, ScopeAdmin}

// DefaultScopes is what a new dashboard key gets when none are requested.
var DefaultScopes = []string{ScopeAnalyticsRead, ScopeAnalyticsShare}

// IsValidScope reports whether s is a known scope.
func IsValidScope(s string) bool {
	return slices.Contains(ValidScopes, s)
}

// ParseScopes parses a comma-separated scope list. Blank input yields
// DefaultScopes; duplicates are dropped.
func ParseScopes(list string) ([]string, error) {
	var scopes []string
	for _, s := range strings.Split(list, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !IsValidScope(s) {
			return nil, fmt.Errorf("unknown scope %q (valid: %s)", s, strings.Join(ValidScopes, ", "))
		}
		if !slices.Contains(scopes, s) {
			scopes = append(scopes, s)
		}
	}
	if len(scopes) == 0 {
		return slices.Clone(DefaultScopes), nil
	}
	return scopes, nil
}

// Rate limit tiers. A key carries the tier of its owner's plan; internal
// keys (ops tooling) are not metered.
const (
	TierFree     = "free"
	TierPro      = "pro"
	TierBusiness = "business"
	TierInternal = "internal"
)

// RateLimit is a per-key token bucket: a refill rate and a burst size.
type RateLimit struct {
	RequestsPerMinute int
	Burst             int
}

// Unlimited reports whether requests under this limit skip metering.
func (l RateLimit) Unlimited() bool {
	return l.RequestsPerMinute <= 0
}

var tierLimits = map[string]RateLimit{
	TierFree:     {RequestsPerMinute: 60, Burst: 10},
	TierPro:      {RequestsPerMinute: 600, Burst: 50},
	TierBusiness: {RequestsPerMinute: 1200, Burst: 100},
	TierInternal: {},
}

// RateLimitFor returns the bucket for tier. Unknown tiers get the free bucket.
func RateLimitFor(tier string) RateLimit {
	if l, ok := tierLimits[tier]; ok {
		return l
	}
	return tierLimits[TierFree]
}

// IsValidTier reports whether tier is a known rate limit tier.
func IsValidTier(tier string) bool {
	_, ok := tierLimits[tier]
	return ok
}

// TierForPlan maps a billing plan to the rate limit tier its keys get.
func TierForPlan(plan string) string {
	switch plan {
	case PlanPro:
		return TierPro
	case PlanBusiness:
		return TierBusiness
	default:
		return TierFree
	}
}

// Key environments. Test keys are rejected by deployments that do not
// allow them.
const (
	KeyEnvLive = "live"
	KeyEnvTest = "test"
)

// APIKey is a stored dashboard API key. Only the argon2id hash of the
// plaintext is kept.
type APIKey struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	KeyHash       string     `json:"-"`
	KeyPrefix     string     `json:"key_prefix"`
	Env           string     `json:"env"`
	Scopes        []string   `json:"scopes"`
	RateLimitTier string     `json:"rate_limit_tier"`
	Name          string     `json:"name,omitempty"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// IsRevoked returns true if the key has been revoked.
func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// HasScope checks if the key has a specific scope.
func (k *APIKey) HasScope(scope string) bool {
	return hasScope(k.Scopes, scope)
}

// AuthContext returns the request identity this key grants.
func (k *APIKey) AuthContext() *AuthContext {
	return &AuthContext{
		KeyID:         k.ID,
		KeyPrefix:     k.KeyPrefix,
		KeyEnv:        k.Env,
		UserID:        k.UserID,
		Scopes:        k.Scopes,
		RateLimitTier: k.RateLimitTier,
	}
}

// AuthContext is the identity the auth middleware attaches to a request.
type AuthContext struct {
	KeyID         string
	KeyPrefix     string
	KeyEnv        string
	UserID        string
	Scopes        []string
	RateLimitTier string
}

// HasScope checks if the auth context has a specific scope.
func (a *AuthContext) HasScope(scope string) bool {
	return hasScope(a.Scopes, scope)
}

// RateLimit returns the bucket for the context's tier.
func (a *AuthContext) RateLimit() RateLimit {
	return RateLimitFor(a.RateLimitTier)
}

func hasScope(scopes []string, scope string) bool {
	return slices.Contains(scopes, ScopeAdmin) || slices.Contains(scopes, scope)
}
