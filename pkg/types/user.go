package types

import "time"

// UserRole is the informational role carried in a caller's token. It never
// grants access by itself: registration state decides who is a patient or a
// doctor.
type UserRole string

const (
	RolePatient UserRole = "patient"
	RoleDoctor  UserRole = "doctor"
)

// CallerClaims represents the verified claims of a bearer token
type CallerClaims struct {
	Identity string   `json:"identity"`
	Role     UserRole `json:"role,omitempty"`
}

// AuthToken represents an issued bearer token
type AuthToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
}
