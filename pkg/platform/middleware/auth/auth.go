// Package auth validates bearer tokens for the admin surface. Tokens are
// HS256 JWTs minted by ops tooling; the middleware only checks the signature,
// expiry, and the admin role claim, then records the actor for audit trails.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	request "servio/pkg/platform/middleware/request"
	"servio/pkg/requestcontext"
)

// Claims are the JWT claims expected on admin tokens.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

const roleAdmin = "admin"

// RequireAdminJWT rejects requests whose bearer token is missing, invalid, or
// not an admin token. The token subject becomes the actor ID in context.
func RequireAdminJWT(signingKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	key := []byte(signingKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if raw == "" || raw == r.Header.Get("Authorization") {
				unauthorized(w)
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return key, nil
			})
			if err != nil || !token.Valid {
				logger.WarnContext(ctx, "admin token rejected",
					"request_id", requestID,
					"error", err,
				)
				unauthorized(w)
				return
			}
			if claims.Role != roleAdmin {
				logger.WarnContext(ctx, "non-admin token on admin route",
					"request_id", requestID,
					"subject", claims.Subject,
				)
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"admin role required"}`))
				return
			}

			ctx = requestcontext.WithActorID(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"admin bearer token required"}`))
}
