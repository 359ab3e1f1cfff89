package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/platinummonkey/fedgate/pkg/auth"
	"github.com/platinummonkey/fedgate/pkg/httputil"
)

type contextKey string

// ClaimsContextKey is the request context key holding verified access claims
const ClaimsContextKey contextKey = "auth_claims"

// RequireAuth verifies the bearer access token and places its claims on the
// request context
func RequireAuth(signer *auth.TokenSigner) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				httputil.WriteUnauthorized(w, "missing authorization header")
				return
			}

			claims, err := signer.VerifyAccess(token)
			if err != nil {
				httputil.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the verified claims set by RequireAuth
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*auth.Claims)
	return claims, ok
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
