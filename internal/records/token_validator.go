package records

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/medrex/record-registry/pkg/types"
)

// JWTClaims represents JWT token claims. The subject is the caller identity.
type JWTClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenValidator implements HS256 JWT validation and issuance
type TokenValidator struct {
	jwtSecret []byte
	issuer    string
	audience  string
	ttl       time.Duration
}

// NewTokenValidator creates a new token validator. Issuer and audience are
// only enforced when non-empty.
func NewTokenValidator(secret, issuer, audience string, ttl time.Duration) *TokenValidator {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenValidator{
		jwtSecret: []byte(secret),
		issuer:    issuer,
		audience:  audience,
		ttl:       ttl,
	}
}

// ValidateJWT validates a JWT token and returns the caller claims
func (tv *TokenValidator) ValidateJWT(tokenString string) (*types.CallerClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if tv.issuer != "" {
		opts = append(opts, jwt.WithIssuer(tv.issuer))
	}
	if tv.audience != "" {
		opts = append(opts, jwt.WithAudience(tv.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return tv.jwtSecret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("token has no expiry")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	return &types.CallerClaims{
		Identity: claims.Subject,
		Role:     types.UserRole(claims.Role),
	}, nil
}

// GenerateToken issues a signed token for identity
func (tv *TokenValidator) GenerateToken(identity string, role types.UserRole) (*types.AuthToken, error) {
	now := time.Now()

	claims := &JWTClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tv.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tv.issuer,
			Subject:   identity,
		},
	}
	if tv.audience != "" {
		claims.Audience = jwt.ClaimStrings{tv.audience}
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tv.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &types.AuthToken{
		AccessToken: tokenString,
		TokenType:   "Bearer",
		ExpiresIn:   int64(tv.ttl.Seconds()),
		IssuedAt:    now,
	}, nil
}
