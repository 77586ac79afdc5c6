package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
	"github.com/NoroNetwork/ppv-streaming/internal/repository"
)

func TestUserRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)
	createdAt := time.Now().UTC()
	user := domain.User{ID: "user-1", Email: "a@b.com", PasswordHash: "hash", Role: domain.RoleUser, CreatedAt: createdAt}

	mock.ExpectExec(`INSERT INTO ppv\.users`).
		WithArgs("user-1", "a@b.com", "hash", "user", createdAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_CreateDuplicateEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectExec(`INSERT INTO ppv\.users`).
		WithArgs("user-2", "A@b.com", "hash", "user", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	err = repo.Create(context.Background(), domain.User{ID: "user-2", Email: "A@b.com", PasswordHash: "hash", Role: domain.RoleUser, CreatedAt: time.Now()})
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestUserRepository_GetByEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)
	now := time.Now().UTC()
	locked := now.Add(10 * time.Minute)

	rows := pgxmock.NewRows(userColumns).
		AddRow("user-1", "a@b.com", "hash", "admin", 5, &locked, now, nil)

	mock.ExpectQuery(`SELECT .*FROM ppv\.users WHERE LOWER\(email\) = LOWER\(\$1\)`).
		WithArgs("A@B.com").
		WillReturnRows(rows)

	user, err := repo.GetByEmail(context.Background(), "A@B.com")
	if err != nil {
		t.Fatalf("GetByEmail returned error: %v", err)
	}
	if user.Role != domain.RoleAdmin || user.FailedLoginAttempts != 5 {
		t.Fatalf("unexpected user: %+v", user)
	}
	if !user.IsLocked(now) {
		t.Fatalf("expected user to be locked")
	}
	if user.LastLogin != nil {
		t.Fatalf("expected nil last login")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_GetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectQuery(`SELECT .*FROM ppv\.users`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(userColumns))

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_EmailExists(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectQuery(`SELECT 1 FROM ppv\.users`).
		WithArgs("a@b.com").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(`SELECT 1 FROM ppv\.users`).
		WithArgs("c@d.com").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}))

	exists, err := repo.EmailExists(context.Background(), "a@b.com")
	if err != nil || !exists {
		t.Fatalf("expected existing email, got %v, %v", exists, err)
	}
	exists, err = repo.EmailExists(context.Background(), "c@d.com")
	if err != nil || exists {
		t.Fatalf("expected free email, got %v, %v", exists, err)
	}
}

func TestUserRepository_RegisterFailedLoginLocksAtThreshold(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	window := 15 * time.Minute
	windowStart := now.Add(-window)
	lockUntil := now.Add(window)

	mock.ExpectQuery(`UPDATE ppv\.users SET failed_login_attempts = CASE WHEN \(locked_until IS NOT NULL AND locked_until <= \$1\) OR failed_window_start IS NULL OR failed_window_start <= \$2 THEN 1 ELSE failed_login_attempts \+ 1 END, locked_until = CASE WHEN .* >= \$5 THEN \$6 WHEN .* THEN NULL ELSE locked_until END, failed_window_start = CASE WHEN .* THEN \$11 ELSE failed_window_start END WHERE id = \$12 RETURNING failed_login_attempts, locked_until`).
		WithArgs(now, windowStart, now, windowStart, 5, lockUntil, now, windowStart, now, windowStart, now, "user-1").
		WillReturnRows(pgxmock.NewRows([]string{"failed_login_attempts", "locked_until"}).AddRow(5, &lockUntil))

	attempts, lockedUntil, err := repo.RegisterFailedLogin(context.Background(), "user-1", 5, window, now)
	if err != nil {
		t.Fatalf("RegisterFailedLogin returned error: %v", err)
	}
	if attempts != 5 {
		t.Fatalf("expected 5 attempts, got %d", attempts)
	}
	if lockedUntil == nil || !lockedUntil.Equal(lockUntil) {
		t.Fatalf("expected lock until %v, got %v", lockUntil, lockedUntil)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_RegisterSuccessfulLogin(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)
	at := time.Now().UTC()

	mock.ExpectExec(`UPDATE ppv\.users SET failed_login_attempts = \$1, failed_window_start = \$2, locked_until = \$3, last_login = \$4 WHERE id = \$5`).
		WithArgs(0, nil, nil, at, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE ppv\.users`).
		WithArgs(0, nil, nil, at, "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.RegisterSuccessfulLogin(context.Background(), "user-1", at); err != nil {
		t.Fatalf("RegisterSuccessfulLogin returned error: %v", err)
	}
	if err := repo.RegisterSuccessfulLogin(context.Background(), "ghost", at); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing user, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
