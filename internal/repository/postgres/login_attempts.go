package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
	"github.com/NoroNetwork/ppv-streaming/internal/core/port"
)

// LoginAttemptRepository persists the append-only login history.
type LoginAttemptRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

var _ port.LoginAttemptRepository = (*LoginAttemptRepository)(nil)

func NewLoginAttemptRepository(exec pgExecutor) *LoginAttemptRepository {
	return &LoginAttemptRepository{exec: exec, builder: newBuilder()}
}

// Record appends an attempt. Missing id and timestamp are filled in.
func (r *LoginAttemptRepository) Record(ctx context.Context, attempt domain.LoginAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}

	stmt, args, err := r.builder.Insert("ppv.login_attempts").
		Columns("id", "email", "ip_address", "success", "created_at").
		Values(attempt.ID, attempt.Email, attempt.IP, attempt.Succeeded, attempt.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert login attempt sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert login attempt: %w", err)
	}
	return nil
}

// CountRecentFailures counts failures for email after since that are also
// newer than the latest successful attempt.
func (r *LoginAttemptRepository) CountRecentFailures(ctx context.Context, email string, since time.Time) (int, error) {
	stmt, args, err := r.builder.Select("COUNT(*)").
		From("ppv.login_attempts").
		Where(squirrel.Eq{"email": email, "success": false}).
		Where(squirrel.Gt{"created_at": since}).
		Where("created_at > COALESCE((SELECT MAX(created_at) FROM ppv.login_attempts WHERE email = ? AND success = TRUE), '-infinity'::timestamptz)", email).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count failures sql: %w", err)
	}

	var count int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count recent failures: %w", err)
	}
	return count, nil
}
