package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
	"github.com/NoroNetwork/ppv-streaming/internal/core/port"
	"github.com/NoroNetwork/ppv-streaming/internal/infra/config"
	"github.com/NoroNetwork/ppv-streaming/internal/infra/logger"
)

const (
	defaultLockoutMaxAttempts = 5
	defaultLockoutDuration    = 15 * time.Minute
)

// LockoutGuard throttles accounts by counting failed logins in a trailing window.
type LockoutGuard struct {
	attempts    port.LoginAttemptRepository
	events      *SecurityEventLog
	maxAttempts int
	window      time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewLockoutGuard constructs a guard. Non-positive settings fall back to 5 failures in 15 minutes.
func NewLockoutGuard(attempts port.LoginAttemptRepository, events *SecurityEventLog, cfg config.LockoutSettings) *LockoutGuard {
	g := &LockoutGuard{
		attempts:    attempts,
		events:      events,
		maxAttempts: cfg.MaxAttempts,
		window:      cfg.Duration,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	if g.maxAttempts <= 0 {
		g.maxAttempts = defaultLockoutMaxAttempts
	}
	if g.window <= 0 {
		g.window = defaultLockoutDuration
	}
	return g
}

func (g *LockoutGuard) WithLogger(logger *zap.Logger) *LockoutGuard {
	if logger != nil {
		g.logger = logger
	}
	return g
}

func (g *LockoutGuard) WithNow(now func() time.Time) *LockoutGuard {
	if now != nil {
		g.now = now
	}
	return g
}

// MaxAttempts is the failure count that locks an account.
func (g *LockoutGuard) MaxAttempts() int { return g.maxAttempts }

// Window is both the counting window and the lock duration.
func (g *LockoutGuard) Window() time.Duration { return g.window }

// IsAllowed reports whether email has fewer than the maximum failures in the window.
func (g *LockoutGuard) IsAllowed(ctx context.Context, email string) (bool, error) {
	failures, err := g.attempts.CountRecentFailures(ctx, domain.NormalizeEmail(email), g.now().Add(-g.window))
	if err != nil {
		return false, err
	}
	return failures < g.maxAttempts, nil
}

// RecordAttempt appends a login attempt. Failures are also written to the audit log.
// Resetting the account counters on success is up to the caller.
func (g *LockoutGuard) RecordAttempt(ctx context.Context, email string, success bool) {
	src := SourceFromContext(ctx)
	attempt := domain.LoginAttempt{
		ID:        uuid.NewString(),
		Email:     domain.NormalizeEmail(email),
		IP:        src.IP,
		Succeeded: success,
		CreatedAt: g.now().UTC(),
	}
	if err := g.attempts.Record(ctx, attempt); err != nil {
		g.logger.Warn("record login attempt failed",
			zap.String("email", logger.MaskEmail(attempt.Email)),
			zap.Error(err),
		)
	}

	if !success {
		g.events.Record(ctx, domain.SecurityEventLoginFailed, map[string]any{
			"email": logger.MaskEmail(attempt.Email),
		})
	}
}
