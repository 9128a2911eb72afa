package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/boddenberg/travel-crm-go/internal/domain"
	"github.com/boddenberg/travel-crm-go/internal/service"

	"go.uber.org/zap"
)

type contextKey string

const profileKey contextKey = "profile"

// Authenticate validates the Bearer token and injects the caller's profile
// into the request context.
func Authenticate(authSvc *service.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "invalid authorization header")
				return
			}

			profile, err := authSvc.Authenticate(r.Context(), parts[1])
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}

			ctx := context.WithValue(r.Context(), profileKey, profile)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireApproved lets only approved, active profiles through.
func RequireApproved(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			profile := ProfileFromContext(r.Context())
			if profile == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if err := service.RequireApproved(profile); err != nil {
				handleServiceError(w, err, logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects profiles ranked below min.
func RequireRole(min domain.Role, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			profile := ProfileFromContext(r.Context())
			if profile == nil || !profile.Role.AtLeast(min) {
				logger.Warn("auth: role too low",
					zap.String("path", r.URL.Path),
					zap.String("required", string(min)),
				)
				writeError(w, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ProfileFromContext returns the authenticated profile, nil when absent.
func ProfileFromContext(ctx context.Context) *domain.Profile {
	p, _ := ctx.Value(profileKey).(*domain.Profile)
	return p
}
