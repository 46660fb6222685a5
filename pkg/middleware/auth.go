package middleware

import (
	"context"
	"net/http"
	"strings"

	"trimly/pkg/logger"
)

const PrincipalKey contextKey = "principal_id"

// PrincipalHeader carries the authenticated caller's identity. An upstream
// gateway owns authentication; these services only consume the result.
const PrincipalHeader = "X-User-ID"

// Auth requires a principal on every request and stores it in the context.
func Auth(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := strings.TrimSpace(r.Header.Get(PrincipalHeader))
			if principal == "" {
				log.Warn("Request without principal rejected",
					"request_id", RequestIDFrom(r.Context()),
					"path", r.URL.Path,
					"method", r.Method,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"Missing ` + PrincipalHeader + ` header"}`))
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFrom returns the authenticated principal, or "".
func PrincipalFrom(ctx context.Context) string {
	if p := ctx.Value(PrincipalKey); p != nil {
		if id, ok := p.(string); ok {
			return id
		}
	}
	return ""
}
