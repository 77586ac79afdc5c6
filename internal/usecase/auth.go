package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
	"github.com/NoroNetwork/ppv-streaming/internal/core/port"
	"github.com/NoroNetwork/ppv-streaming/internal/infra/config"
	"github.com/NoroNetwork/ppv-streaming/internal/infra/logger"
	"github.com/NoroNetwork/ppv-streaming/internal/infra/security"
	"github.com/NoroNetwork/ppv-streaming/internal/repository"
)

// Login outcomes reported to AuthMetrics.
const (
	LoginOutcomeSuccess            = "success"
	LoginOutcomeInvalidCredentials = "invalid_credentials"
	LoginOutcomeLocked             = "locked"
	LoginOutcomeRateLimited        = "rate_limited"
	LoginOutcomeRejected           = "rejected"
)

var (
	errInvalidCredentials = domain.NewAuthenticationError("Invalid credentials")
	errMissingToken       = domain.NewAuthenticationError("Authentication required")
)

// AuthMetrics counts login outcomes.
type AuthMetrics interface {
	IncLogin(outcome string)
}

// RegisterInput is the registration request. An empty Role means user.
type RegisterInput struct {
	Email    string
	Password string
	Role     domain.UserRole
}

// LoginInput is the credential pair presented at login.
type LoginInput struct {
	Email    string
	Password string
}

// AuthResult is returned by successful registration and login.
type AuthResult struct {
	Token domain.IssuedToken
	User  domain.User
}

// AuthDependencies groups the collaborators of AuthService.
type AuthDependencies struct {
	Users     port.UserRepository
	Hasher    port.PasswordHasher
	Tokens    port.TokenIssuer
	Limiter   *RateLimiter
	Lockout   *LockoutGuard
	Events    *SecurityEventLog
	Publisher port.EventPublisher
	Passwords *security.PasswordValidator
	Limits    config.RateLimitSettings
}

// AuthService orchestrates registration, login and bearer token checks.
type AuthService struct {
	users     port.UserRepository
	hasher    port.PasswordHasher
	tokens    port.TokenIssuer
	limiter   *RateLimiter
	lockout   *LockoutGuard
	events    *SecurityEventLog
	publisher port.EventPublisher
	passwords *security.PasswordValidator
	limits    config.RateLimitSettings
	logger    *zap.Logger
	metrics   AuthMetrics
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(deps AuthDependencies) *AuthService {
	passwords := deps.Passwords
	if passwords == nil {
		passwords = security.PasswordValidatorFromSettings(config.ValidationSettings{})
	}
	return &AuthService{
		users:     deps.Users,
		hasher:    deps.Hasher,
		tokens:    deps.Tokens,
		limiter:   deps.Limiter,
		lockout:   deps.Lockout,
		events:    deps.Events,
		publisher: deps.Publisher,
		passwords: passwords,
		limits:    deps.Limits,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
}

func (s *AuthService) WithLogger(logger *zap.Logger) *AuthService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *AuthService) WithMetrics(metrics AuthMetrics) *AuthService {
	if metrics != nil {
		s.metrics = metrics
	}
	return s
}

func (s *AuthService) WithNow(now func() time.Time) *AuthService {
	if now != nil {
		s.now = now
	}
	return s
}

// Register creates an account and signs the caller in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	src := SourceFromContext(ctx)
	if !s.limiter.CheckAndRecord(ctx, RateLimitKey(RateLimitActionRegister, src.IP), s.limits.RegisterMaxAttempts, s.limits.RegisterWindow) {
		s.events.Record(ctx, domain.SecurityEventRateLimited, map[string]any{"action": RateLimitActionRegister})
		return AuthResult{}, domain.NewRateLimitedError("Too many registration attempts. Please try again later.")
	}

	in.Email = domain.NormalizeEmail(in.Email)
	if in.Role == "" {
		in.Role = domain.RoleUser
	}
	if err := validateRegistration(in, s.passwords); err != nil {
		return AuthResult{}, err
	}

	exists, err := s.users.EmailExists(ctx, in.Email)
	if err != nil {
		return AuthResult{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return AuthResult{}, domain.NewConflictError("Email already exists")
	}

	if err := s.rejectMalicious(ctx, map[string]string{"email": in.Email, "password": in.Password}); err != nil {
		return AuthResult{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return AuthResult{}, domain.NewConflictError("Email already exists")
		}
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	token, err := s.issue(user)
	if err != nil {
		return AuthResult{}, err
	}

	s.events.Record(ctx, domain.SecurityEventUserRegistered, map[string]any{
		"user_id": user.ID,
		"email":   logger.MaskEmail(user.Email),
		"role":    string(user.Role),
	})
	s.publishRegistered(ctx, user, src)

	return AuthResult{Token: token, User: sanitize(user)}, nil
}

// Login verifies credentials and returns a bearer token.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (AuthResult, error) {
	src := SourceFromContext(ctx)
	if !s.limiter.CheckAndRecord(ctx, RateLimitKey(RateLimitActionLogin, src.IP), s.limits.LoginMaxAttempts, s.limits.LoginWindow) {
		s.events.Record(ctx, domain.SecurityEventRateLimited, map[string]any{"action": RateLimitActionLogin})
		s.observe(LoginOutcomeRateLimited)
		return AuthResult{}, domain.NewRateLimitedError("Too many login attempts. Please try again later.")
	}

	in.Email = domain.NormalizeEmail(in.Email)

	allowed, err := s.lockout.IsAllowed(ctx, in.Email)
	if err != nil {
		return AuthResult{}, fmt.Errorf("check lockout: %w", err)
	}
	if !allowed {
		s.events.Record(ctx, domain.SecurityEventAccountLocked, map[string]any{"email": logger.MaskEmail(in.Email)})
		s.observe(LoginOutcomeLocked)
		return AuthResult{}, domain.NewAccountLockedError("Account temporarily locked due to too many failed attempts")
	}

	if err := validateLogin(in); err != nil {
		s.observe(LoginOutcomeRejected)
		return AuthResult{}, err
	}
	if err := s.rejectMalicious(ctx, map[string]string{"email": in.Email}); err != nil {
		s.observe(LoginOutcomeRejected)
		return AuthResult{}, err
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.lockout.RecordAttempt(ctx, in.Email, false)
			s.observe(LoginOutcomeInvalidCredentials)
			return AuthResult{}, errInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("lookup user: %w", err)
	}

	now := s.now().UTC()
	if user.IsLocked(now) {
		s.observe(LoginOutcomeLocked)
		return AuthResult{}, domain.NewAuthenticationError("Account is temporarily locked")
	}

	ok, err := s.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		s.logger.Warn("password verification error", zap.String("user_id", user.ID), zap.Error(err))
	}
	if !ok {
		s.lockout.RecordAttempt(ctx, in.Email, false)
		s.registerFailure(ctx, user, now)
		s.observe(LoginOutcomeInvalidCredentials)
		return AuthResult{}, errInvalidCredentials
	}

	if err := s.users.RegisterSuccessfulLogin(ctx, user.ID, now); err != nil {
		return AuthResult{}, fmt.Errorf("reset login counters: %w", err)
	}
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.LastLogin = &now

	s.lockout.RecordAttempt(ctx, in.Email, true)
	s.events.Record(ctx, domain.SecurityEventLoginSuccess, map[string]any{"user_id": user.ID})

	token, err := s.issue(*user)
	if err != nil {
		return AuthResult{}, err
	}
	s.observe(LoginOutcomeSuccess)

	return AuthResult{Token: token, User: sanitize(*user)}, nil
}

// RequireAuth verifies the bearer token in an Authorization header value.
func (s *AuthService) RequireAuth(authorization string) (domain.TokenClaims, error) {
	token, ok := BearerToken(authorization)
	if !ok {
		return domain.TokenClaims{}, errMissingToken
	}
	return s.tokens.Verify(token)
}

// RequireRole verifies the bearer token and checks the role. Admin satisfies every role.
func (s *AuthService) RequireRole(authorization string, role domain.UserRole) (domain.TokenClaims, error) {
	claims, err := s.RequireAuth(authorization)
	if err != nil {
		return domain.TokenClaims{}, err
	}
	if err := domain.RequireRole(claims, role); err != nil {
		return domain.TokenClaims{}, err
	}
	return claims, nil
}

// Me loads the current account row for an authenticated subject.
func (s *AuthService) Me(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, domain.NewNotFoundError("User not found")
		}
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return sanitize(*user), nil
}

// BearerToken extracts the credential from an "Authorization: Bearer <token>" value.
func BearerToken(authorization string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(authorization), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func (s *AuthService) issue(user domain.User) (domain.IssuedToken, error) {
	token, err := s.tokens.Issue(domain.TokenClaims{
		Subject: user.ID,
		Email:   user.Email,
		Role:    user.Role,
	})
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// rejectMalicious fails with a validation error when any field trips the input guard.
func (s *AuthService) rejectMalicious(ctx context.Context, fields map[string]string) error {
	for _, name := range []string{"email", "password"} {
		value, ok := fields[name]
		if !ok {
			continue
		}
		threat := security.Inspect(value)
		if threat == security.ThreatNone {
			continue
		}
		entry := map[string]any{"field": name, "threat": string(threat)}
		if name == "email" {
			entry["input"] = logger.MaskEmail(value)
		}
		s.events.Record(ctx, domain.SecurityEventMaliciousInput, entry)
		return domain.NewValidationError("Invalid input detected")
	}
	return nil
}

func (s *AuthService) registerFailure(ctx context.Context, user *domain.User, now time.Time) {
	count, lockedUntil, err := s.users.RegisterFailedLogin(ctx, user.ID, s.lockout.MaxAttempts(), s.lockout.Window(), now)
	if err != nil {
		s.logger.Warn("update failed login counter", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	if lockedUntil != nil && lockedUntil.After(now) && count >= s.lockout.MaxAttempts() {
		s.events.Record(ctx, domain.SecurityEventAccountLocked, map[string]any{
			"user_id":      user.ID,
			"locked_until": lockedUntil.UTC().Format(time.RFC3339),
		})
	}
}

func (s *AuthService) publishRegistered(ctx context.Context, user domain.User, src RequestSource) {
	if s.publisher == nil {
		return
	}
	event := domain.UserRegisteredEvent{
		EventID:      uuid.NewString(),
		UserID:       user.ID,
		Email:        user.Email,
		Role:         user.Role,
		RegisteredAt: user.CreatedAt,
		Metadata:     map[string]any{"ip": logger.MaskIP(src.IP)},
	}
	if err := s.publisher.PublishUserRegistered(ctx, event); err != nil {
		s.logger.Warn("publish user registered event failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func (s *AuthService) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.IncLogin(outcome)
	}
}

func sanitize(user domain.User) domain.User {
	user.PasswordHash = ""
	return user
}
