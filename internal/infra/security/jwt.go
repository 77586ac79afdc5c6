package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
	"github.com/NoroNetwork/ppv-streaming/internal/infra/config"
)

// DefaultTokenTTL is the fixed bearer token lifetime.
const DefaultTokenTTL = 24 * time.Hour

var errEmptySecret = errors.New("jwt: signing secret is empty")

// accessTokenClaims is the wire form of domain.TokenClaims.
type accessTokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies HS256 bearer tokens. It keeps no state per token.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption customises a TokenService.
type TokenOption func(*TokenService)

// WithTokenClock overrides the time source, mainly for tests.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTokenService builds a TokenService from JWT settings.
func NewTokenService(cfg config.JWTSettings, opts ...TokenOption) (*TokenService, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errEmptySecret
	}
	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	svc := &TokenService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Issue signs claims. IssuedAt and ExpiresAt are stamped from the service clock
// and TTL when the caller leaves them zero.
func (s *TokenService) Issue(claims domain.TokenClaims) (domain.IssuedToken, error) {
	if claims.Subject == "" {
		return domain.IssuedToken{}, fmt.Errorf("jwt: subject is required")
	}
	if !claims.Role.Valid() {
		return domain.IssuedToken{}, fmt.Errorf("jwt: invalid role %q", claims.Role)
	}

	if claims.IssuedAt.IsZero() {
		claims.IssuedAt = s.now()
	}
	claims.IssuedAt = claims.IssuedAt.UTC().Truncate(time.Second)
	if claims.ExpiresAt.IsZero() {
		claims.ExpiresAt = claims.IssuedAt.Add(s.ttl)
	}
	claims.ExpiresAt = claims.ExpiresAt.UTC().Truncate(time.Second)

	wire := accessTokenClaims{
		Email: claims.Email,
		Role:  string(claims.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, wire).SignedString(s.secret)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("jwt: sign token: %w", err)
	}

	return domain.IssuedToken{Token: signed, Claims: claims}, nil
}

// Verify parses token and returns its claims. Any signature mismatch, malformed
// structure, unexpected algorithm or past expiry yields domain.ErrInvalidToken.
func (s *TokenService) Verify(token string) (domain.TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.TokenClaims{}, domain.ErrInvalidToken
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(s.issuer))
	}

	var wire accessTokenClaims
	parsed, err := jwt.ParseWithClaims(token, &wire, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, parserOpts...)
	if err != nil {
		return domain.TokenClaims{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return domain.TokenClaims{}, domain.ErrInvalidToken
	}

	role := domain.UserRole(wire.Role)
	if wire.Subject == "" || !role.Valid() || wire.IssuedAt == nil {
		return domain.TokenClaims{}, domain.ErrInvalidToken
	}

	return domain.TokenClaims{
		Subject:   wire.Subject,
		Email:     wire.Email,
		Role:      role,
		IssuedAt:  wire.IssuedAt.Time.UTC(),
		ExpiresAt: wire.ExpiresAt.Time.UTC(),
	}, nil
}
