package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/portalo/portalo/internal/auth"
	"github.com/portalo/portalo/internal/metrics"
	"github.com/portalo/portalo/internal/model"
)

const (
	// minAuthDuration is the minimum time to spend on auth to prevent timing attacks.
	minAuthDuration = 200 * time.Millisecond

	lastUsedTimeout = 5 * time.Second
)

// KeyStore looks up API keys for verification.
type KeyStore interface {
	GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
}

// AuthCache memoizes verified keys. A nil context with a nil error is a miss.
type AuthCache interface {
	GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error)
	SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext) error
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger  *slog.Logger
	Keys    KeyStore
	Cache   AuthCache
	Metrics metrics.Recorder
	// MinDuration pads failed and successful lookups alike. Zero uses 200ms.
	MinDuration time.Duration
	// AllowTestKeys lets ptl_test_ keys through.
	AllowTestKeys bool
}

// Auth returns a middleware that authenticates API requests.
// It extracts the API key from the Authorization header,
// verifies it, and injects the auth context into the request.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = minAuthDuration
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			authCtx, reason := authenticate(r, cfg)

			// Consistent timing regardless of outcome, applied to the
			// auth phase only so long-lived responses are not delayed.
			if elapsed := time.Since(startTime); elapsed < cfg.MinDuration {
				time.Sleep(cfg.MinDuration - elapsed)
			}

			if authCtx == nil {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			ctx := auth.ContextWithAuth(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authenticate resolves the request's key. On failure it returns a nil
// context and a short reason for the log.
func authenticate(r *http.Request, cfg AuthConfig) (*model.AuthContext, string) {
	key := extractAPIKey(r)
	if key == "" {
		return nil, "missing_key"
	}

	parsed, err := auth.ParseAPIKey(key)
	switch {
	case errors.Is(err, auth.ErrKeyChecksum):
		return nil, "bad_checksum"
	case err != nil:
		return nil, "invalid_format"
	}
	if parsed.Env == model.KeyEnvTest && !cfg.AllowTestKeys {
		return nil, "test_key_rejected"
	}

	cacheKey := auth.CacheKey(key)
	authCtx, err := cfg.Cache.GetAuthContext(r.Context(), cacheKey)
	if err != nil {
		cfg.Logger.Warn("auth cache read failed",
			slog.String("error", err.Error()),
			slog.String("request_id", GetRequestID(r.Context())),
		)
	}
	if authCtx != nil {
		cfg.Metrics.IncCacheHit("auth")
		logAuthenticated(r, cfg.Logger, authCtx, true)
		return authCtx, ""
	}
	cfg.Metrics.IncCacheMiss("auth")

	candidates, err := cfg.Keys.GetAPIKeysByPrefix(r.Context(), parsed.Prefix)
	if err != nil {
		cfg.Logger.Error("database error during auth",
			slog.String("error", err.Error()),
			slog.String("request_id", GetRequestID(r.Context())),
		)
		return nil, "lookup_failed"
	}

	// Prefixes are short, so several keys may share one.
	var matched *model.APIKey
	for _, k := range candidates {
		if k.Env != parsed.Env {
			continue
		}
		if ok, err := auth.VerifyKey(key, k.KeyHash); err == nil && ok {
			matched = k
			break
		}
	}
	if matched == nil {
		return nil, "invalid_key"
	}
	if auth.NeedsRehash(matched.KeyHash) {
		cfg.Logger.Info("api key hash uses outdated argon2 parameters",
			slog.String("key_id", matched.ID),
		)
	}

	authCtx = matched.AuthContext()
	if err := cfg.Cache.SetAuthContext(r.Context(), cacheKey, authCtx); err != nil {
		cfg.Logger.Warn("auth cache write failed", slog.String("error", err.Error()))
	}

	// The request context ends with the response; the update must not.
	go func(ctx context.Context, id string) {
		ctx, cancel := context.WithTimeout(ctx, lastUsedTimeout)
		defer cancel()
		if err := cfg.Keys.UpdateAPIKeyLastUsed(ctx, id); err != nil {
			cfg.Logger.Debug("update key last_used_at failed",
				slog.String("key_id", id),
				slog.String("error", err.Error()),
			)
		}
	}(context.WithoutCancel(r.Context()), matched.ID)

	logAuthenticated(r, cfg.Logger, authCtx, false)
	return authCtx, ""
}

func logAuthenticated(r *http.Request, logger *slog.Logger, ac *model.AuthContext, cacheHit bool) {
	logger.Info("authentication successful",
		slog.String("key_id", ac.KeyID),
		slog.String("key_prefix", ac.KeyPrefix),
		slog.String("key_env", ac.KeyEnv),
		slog.String("user_id", ac.UserID),
		slog.String("tier", ac.RateLimitTier),
		slog.Bool("cache_hit", cacheHit),
		slog.String("request_id", GetRequestID(r.Context())),
	)
}

// extractAPIKey extracts the API key from the request.
// Supports both "Authorization: Bearer <key>" and "X-API-Key: <key>" headers.
func extractAPIKey(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return r.Header.Get("X-API-Key")
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	writeErrorJSON(w, http.StatusUnauthorized, "unauthorized", "Invalid or missing API key")
}
