package port

import "github.com/NoroNetwork/ppv-streaming/internal/core/domain"

// PasswordHasher hashes and verifies secrets using the configured algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
}

// TokenIssuer signs and verifies stateless bearer tokens.
type TokenIssuer interface {
	Issue(claims domain.TokenClaims) (domain.IssuedToken, error)
	Verify(token string) (domain.TokenClaims, error)
}
