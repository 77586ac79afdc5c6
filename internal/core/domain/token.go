package domain

import "time"

// TokenClaims is the verified content of a bearer token. It is never stored.
type TokenClaims struct {
	Subject   string
	Email     string
	Role      UserRole
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IssuedToken pairs a signed token with the claims it carries.
type IssuedToken struct {
	Token  string
	Claims TokenClaims
}

// ExpiresIn returns the remaining lifetime relative to the issue time.
func (t IssuedToken) ExpiresIn() time.Duration {
	return t.Claims.ExpiresAt.Sub(t.Claims.IssuedAt)
}
