package port

import (
	"context"
	"time"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
)

// UserRepository exposes persistence behavior for users.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	// RegisterFailedLogin counts a failure at now. The counter restarts when its
	// first failure is older than window or an earlier lock has expired, and
	// locked_until becomes now+window once it reaches threshold. It returns the new state.
	RegisterFailedLogin(ctx context.Context, id string, threshold int, window time.Duration, now time.Time) (int, *time.Time, error)
	// RegisterSuccessfulLogin clears the failure counter and lock and stamps last_login.
	RegisterSuccessfulLogin(ctx context.Context, id string, at time.Time) error
}

// LoginAttemptRepository stores the append-only login attempt history.
type LoginAttemptRepository interface {
	Record(ctx context.Context, attempt domain.LoginAttempt) error
	// CountRecentFailures counts failures for email newer than since and newer than its latest success.
	CountRecentFailures(ctx context.Context, email string, since time.Time) (int, error)
}

// SecurityEventRepository persists audit records.
type SecurityEventRepository interface {
	Insert(ctx context.Context, event domain.SecurityEvent) error
}
