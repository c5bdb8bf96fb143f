package interfaces

import (
	"github.com/medrex/record-registry/pkg/types"
)

// TokenValidator defines the interface for bearer token validation
type TokenValidator interface {
	ValidateJWT(token string) (*types.CallerClaims, error)
	GenerateToken(identity string, role types.UserRole) (*types.AuthToken, error)
}

// RateLimiter defines the interface for rate limiting
type RateLimiter interface {
	Allow(userID string) (bool, error)
	Reset(userID string) error
	GetLimits(userID string) (int, int, error) // current, limit
}
