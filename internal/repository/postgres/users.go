package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
	"github.com/NoroNetwork/ppv-streaming/internal/core/port"
	"github.com/NoroNetwork/ppv-streaming/internal/repository"
)

var userColumns = []string{
	"id",
	"email",
	"password_hash",
	"role",
	"failed_login_attempts",
	"locked_until",
	"created_at",
	"last_login",
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

var _ port.UserRepository = (*UserRepository)(nil)

// NewUserRepository wires a PostgreSQL-backed user repository.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: newBuilder(),
	}
}

// Create inserts a new user row. A taken email yields repository.ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	stmt, args, err := r.builder.Insert("ppv.users").
		Columns("id", "email", "password_hash", "role", "created_at").
		Values(user.ID, user.Email, user.PasswordHash, string(user.Role), user.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert user: %w", repository.ErrDuplicate)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	stmt, args, err := r.builder.Select(userColumns...).
		From("ppv.users").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}
	return r.scanUser(r.exec.QueryRow(ctx, stmt, args...))
}

// GetByEmail retrieves a user by email, ignoring case.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	stmt, args, err := r.builder.Select(userColumns...).
		From("ppv.users").
		Where("LOWER(email) = LOWER(?)", email).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user by email sql: %w", err)
	}
	return r.scanUser(r.exec.QueryRow(ctx, stmt, args...))
}

// EmailExists reports whether an account already uses email, ignoring case.
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	stmt, args, err := r.builder.Select("1").
		From("ppv.users").
		Where("LOWER(email) = LOWER(?)", email).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build email exists sql: %w", err)
	}

	var one int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check email exists: %w", err)
	}
	return true, nil
}

// staleFailures matches rows whose failure run no longer counts: the run
// started before the window, or a lock from it has already expired.
// Arguments: now, windowStart.
const staleFailures = "(locked_until IS NOT NULL AND locked_until <= ?) OR failed_window_start IS NULL OR failed_window_start <= ?"

// RegisterFailedLogin counts a failure and locks the account once the run
// reaches threshold within window. The update is a single statement so
// concurrent failures never lose an increment. SET expressions read the
// pre-update row.
func (r *UserRepository) RegisterFailedLogin(ctx context.Context, id string, threshold int, window time.Duration, now time.Time) (int, *time.Time, error) {
	windowStart := now.Add(-window)
	lockUntil := now.Add(window)
	nextCount := "CASE WHEN " + staleFailures + " THEN 1 ELSE failed_login_attempts + 1 END"

	stmt, args, err := r.builder.Update("ppv.users").
		Set("failed_login_attempts", squirrel.Expr(nextCount, now, windowStart)).
		Set("locked_until", squirrel.Expr(
			"CASE WHEN "+nextCount+" >= ? THEN ? WHEN "+staleFailures+" THEN NULL ELSE locked_until END",
			now, windowStart, threshold, lockUntil, now, windowStart,
		)).
		Set("failed_window_start", squirrel.Expr("CASE WHEN "+staleFailures+" THEN ? ELSE failed_window_start END", now, windowStart, now)).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING failed_login_attempts, locked_until").
		ToSql()
	if err != nil {
		return 0, nil, fmt.Errorf("build register failed login sql: %w", err)
	}

	var (
		attempts    int
		lockedUntil *time.Time
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&attempts, &lockedUntil); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil, repository.ErrNotFound
		}
		return 0, nil, fmt.Errorf("register failed login: %w", err)
	}
	return attempts, lockedUntil, nil
}

// RegisterSuccessfulLogin clears the failure counter and lock and stamps last_login.
func (r *UserRepository) RegisterSuccessfulLogin(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update("ppv.users").
		Set("failed_login_attempts", 0).
		Set("failed_window_start", nil).
		Set("locked_until", nil).
		Set("last_login", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build register successful login sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("register successful login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user domain.User
		role string
	)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.FailedLoginAttempts,
		&user.LockedUntil,
		&user.CreatedAt,
		&user.LastLogin,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.Role = domain.UserRole(role)
	return &user, nil
}
