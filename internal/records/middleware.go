package records

import (
	"context"
	"net/http"
	"strings"

	"github.com/medrex/record-registry/pkg/logger"
	"github.com/medrex/record-registry/pkg/types"
)

type claimsKey struct{}

// callerFromContext returns the verified caller claims of the request
func callerFromContext(ctx context.Context) (*types.CallerClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*types.CallerClaims)
	return claims, ok
}

// corsMiddleware handles CORS headers
func (s *Service) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// securityHeadersMiddleware adds security headers
func (s *Service) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates bearer tokens and attaches the caller identity
func (s *Service) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.metrics.RecordAuthAttempt("jwt", "missing")
			s.writeStatusError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			s.metrics.RecordAuthAttempt("jwt", "malformed")
			s.writeStatusError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid authorization header format")
			return
		}

		claims, err := s.tokenValidator.ValidateJWT(parts[1])
		if err != nil {
			s.metrics.RecordAuthAttempt("jwt", "failure")
			s.logger.WithContext(r.Context()).WithError(err).Warn("Token validation failed")
			s.writeStatusError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid token")
			return
		}
		s.metrics.RecordAuthAttempt("jwt", "success")

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		ctx = context.WithValue(ctx, logger.CallerKey, claims.Identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimitMiddleware applies per-caller rate limiting
func (s *Service) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.rateLimiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		claims, ok := callerFromContext(r.Context())
		if !ok {
			s.writeStatusError(w, http.StatusInternalServerError, types.ErrCodeInternalError, "caller claims not found in context")
			return
		}

		allowed, err := s.rateLimiter.Allow(claims.Identity)
		if err != nil {
			s.writeStatusError(w, http.StatusInternalServerError, types.ErrCodeInternalError, "rate limit check failed")
			return
		}
		if !allowed {
			s.metrics.RecordRateLimited()
			s.logger.WithUserID(claims.Identity).Warn("Rate limit exceeded")
			s.writeStatusError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
