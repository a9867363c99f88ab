/*
[AI GENERATED - GOVERNANCE PROTOCOL]
──────────────────────────────────────────────────────────────
Model:       Claude Opus 4.6
Tier:        L4
Logic:       Admin-token authentication middleware. Requires a bearer
             token matching ADMIN_TOKEN on every admin route; comparison
             is constant-time to avoid leaking the token via timing.
Root Cause:  The admin surface can add/remove credentials and trigger
             syncs — it must not be reachable without a shared secret.
Context:     Security-critical; every admin route sits behind this
             middleware except /api/health.
Suitability: L4 model required for auth middleware design.
──────────────────────────────────────────────────────────────
*/

package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// AuthMiddleware enforces a static admin bearer token on protected routes.
type AuthMiddleware struct {
	logger zerolog.Logger
	token  string
}

// NewAuthMiddleware creates an admin-token auth middleware. An empty
// token disables auth entirely; startup does not reject an empty
// ADMIN_TOKEN, in production or otherwise.
func NewAuthMiddleware(logger zerolog.Logger, token string) *AuthMiddleware {
	return &AuthMiddleware{logger: logger, token: token}
}

// Handler returns the middleware handler function.
func (am *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if am.token == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		presented := strings.TrimPrefix(authHeader, "Bearer ")
		if presented == authHeader {
			presented = "" // no "Bearer " prefix present
		}

		if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(am.token)) != 1 {
			am.logger.Warn().Str("path", r.URL.Path).Msg("rejected admin request with invalid or missing token")
			http.Error(w, `{"error":"unauthorized","message":"admin token required"}`, http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
