package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
	"github.com/NoroNetwork/ppv-streaming/internal/core/port"
	"github.com/NoroNetwork/ppv-streaming/internal/infra/database"
	"github.com/NoroNetwork/ppv-streaming/internal/repository"
)

// EntitlementRepository is the PostgreSQL entitlement ledger.
type EntitlementRepository struct {
	db      txExecutor
	builder squirrel.StatementBuilderType
}

var _ port.EntitlementRepository = (*EntitlementRepository)(nil)

func NewEntitlementRepository(db txExecutor) *EntitlementRepository {
	return &EntitlementRepository{db: db, builder: newBuilder()}
}

// Exists reports whether a grant already covers the (user, stream) pair or
// the payment reference.
func (r *EntitlementRepository) Exists(ctx context.Context, userID, streamID, paymentReference string) (bool, error) {
	match := squirrel.Or{squirrel.Eq{"user_id": userID, "stream_id": streamID}}
	if paymentReference != "" {
		match = append(match, squirrel.Eq{"payment_reference": paymentReference})
	}

	stmt, args, err := r.builder.Select("1").
		From("ppv.entitlement_grants").
		Where(match).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build grant exists sql: %w", err)
	}

	var one int
	if err := r.db.QueryRow(ctx, stmt, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check grant exists: %w", err)
	}
	return true, nil
}

// Grant inserts the grant and bumps the per-day stream counters in one
// transaction. A unique violation rolls everything back and returns
// repository.ErrDuplicate; an unknown user or stream returns
// repository.ErrMissingReference.
func (r *EntitlementRepository) Grant(ctx context.Context, grant domain.EntitlementGrant) error {
	insertGrant, grantArgs, err := r.builder.Insert("ppv.entitlement_grants").
		Columns("id", "user_id", "stream_id", "payment_reference", "amount_paid", "currency", "granted_at").
		Values(
			grant.ID,
			grant.UserID,
			grant.StreamID,
			grant.PaymentReference,
			grant.AmountPaid.StringFixed(2),
			grant.Currency,
			grant.GrantedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert grant sql: %w", err)
	}

	upsertStats, statsArgs, err := r.builder.Insert("ppv.stream_stats").
		Columns("stream_id", "day", "total_revenue", "total_purchases").
		Values(grant.StreamID, grant.GrantedAt.UTC().Format("2006-01-02"), grant.AmountPaid.StringFixed(2), 1).
		Suffix("ON CONFLICT (stream_id, day) DO UPDATE SET " +
			"total_revenue = ppv.stream_stats.total_revenue + EXCLUDED.total_revenue, " +
			"total_purchases = ppv.stream_stats.total_purchases + EXCLUDED.total_purchases").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert stream stats sql: %w", err)
	}

	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertGrant, grantArgs...); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert grant: %w", repository.ErrDuplicate)
			}
			if isForeignKeyViolation(err) {
				return fmt.Errorf("insert grant: %w", repository.ErrMissingReference)
			}
			return fmt.Errorf("insert grant: %w", err)
		}
		if _, err := tx.Exec(ctx, upsertStats, statsArgs...); err != nil {
			return fmt.Errorf("upsert stream stats: %w", err)
		}
		return nil
	})
}

// ListByUser returns the user's grants, newest first.
func (r *EntitlementRepository) ListByUser(ctx context.Context, userID string) ([]domain.EntitlementGrant, error) {
	stmt, args, err := r.builder.
		Select("id", "user_id", "stream_id", "payment_reference", "amount_paid::text", "currency", "granted_at").
		From("ppv.entitlement_grants").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("granted_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list grants sql: %w", err)
	}

	rows, err := r.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var grants []domain.EntitlementGrant
	for rows.Next() {
		var (
			grant  domain.EntitlementGrant
			amount string
		)
		if err := rows.Scan(
			&grant.ID,
			&grant.UserID,
			&grant.StreamID,
			&grant.PaymentReference,
			&amount,
			&grant.Currency,
			&grant.GrantedAt,
		); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		if grant.AmountPaid, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse grant amount %q: %w", amount, err)
		}
		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}
	return grants, nil
}
