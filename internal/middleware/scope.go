package middleware

import (
	"net/http"

	"github.com/portalo/portalo/internal/auth"
	"github.com/portalo/portalo/internal/handler/dto"
	"github.com/portalo/portalo/internal/model"
)

// RequireScope rejects requests whose key lacks every one of the given
// scopes. admin satisfies any scope. Must run after Auth.
func RequireScope(required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := auth.AuthFromContext(r.Context())
			if authCtx == nil {
				writeErrorJSON(w, http.StatusUnauthorized, dto.CodeUnauthorized, "Authentication required")
				return
			}

			for _, scope := range required {
				if authCtx.HasScope(scope) {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeErrorJSON(w, http.StatusForbidden, dto.CodeForbidden,
				"API key lacks the "+required[0]+" scope")
		})
	}
}

// RequireAnalyticsRead guards the dashboard read endpoints.
func RequireAnalyticsRead() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeAnalyticsRead)
}

// RequireAnalyticsShare guards publishing a page's analytics.
func RequireAnalyticsShare() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeAnalyticsShare)
}
