package jwtverify

import (
	"context"
	"net/http"
	"strings"

	authdomain "github.com/AlibekovAA/panel-auth/internal/auth/domain"
	commonhttp "github.com/AlibekovAA/panel-auth/internal/common/http"
	"github.com/AlibekovAA/panel-auth/internal/common/logger"
)

// Authenticator verifies a bearer claim token, including its revocation
// status.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (authdomain.Claims, error)
}

type contextKey string

const (
	claimsKey contextKey = "jwt_claims"
	tokenKey  contextKey = "jwt_token"
)

func Middleware(auth Authenticator, log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				log.WithFields(r.Context(), logger.Fields{
					"path":   r.URL.Path,
					"action": "jwt_missing_authorization",
				}).Warn("jwt auth failed: missing or invalid authorization header")
				commonhttp.WriteErrorEnvelope(w, http.StatusUnauthorized, commonhttp.CodeMissingAuthorization,
					"missing or invalid authorization", nil, commonhttp.TraceIDFromContext(r.Context()))
				return
			}

			claims, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				log.WithFields(r.Context(), logger.Fields{
					"path":   r.URL.Path,
					"action": "jwt_rejected",
				}).Warnf("jwt auth failed: %v", err)
				commonhttp.HandleError(w, r, err, log)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = context.WithValue(ctx, tokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects callers ranked below min. It must run after Middleware.
func RequireRole(min authdomain.Role, log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := FromContext(r.Context())
			if !ok || !authdomain.RoleAtLeast(claims.Role, min) {
				log.WithFields(r.Context(), logger.Fields{
					"path":     r.URL.Path,
					"role":     string(claims.Role),
					"required": string(min),
					"action":   "role_forbidden",
				}).Warn("access denied: insufficient role")
				commonhttp.WriteErrorEnvelope(w, http.StatusForbidden, commonhttp.CodeForbidden,
					"insufficient role", nil, commonhttp.TraceIDFromContext(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func FromContext(ctx context.Context) (authdomain.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(authdomain.Claims)
	return claims, ok
}

// TokenFromContext returns the raw bearer token accepted by Middleware.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey).(string)
	return token, ok && token != ""
}

func BearerToken(r *http.Request) (string, bool) {
	raw := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(raw, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
