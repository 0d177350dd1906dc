package middleware

import (
	"net/http"
	"strings"

	"github.com/k0msak007/jobber-chat/internal/auth"
	"github.com/k0msak007/jobber-chat/internal/httputil"
)

// AuthMiddleware verifies the gateway-issued bearer token and injects its
// claims into the request context. The API gateway is the only token issuer
// this service trusts; requests without a valid token never reach the message
// handlers.
func AuthMiddleware(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				httputil.WriteError(w, http.StatusUnauthorized, "missing or malformed authorization header")
				return
			}

			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				httputil.WriteError(w, http.StatusUnauthorized, "invalid or expired gateway token")
				return
			}

			ctx := auth.ContextWithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the credential from an "Authorization: Bearer <token>"
// header.
func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
