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
	"github.com/NoroNetwork/ppv-streaming/internal/repository"
)

// StreamRepository reads the stream catalogue.
type StreamRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

var _ port.StreamRepository = (*StreamRepository)(nil)

func NewStreamRepository(exec pgExecutor) *StreamRepository {
	return &StreamRepository{exec: exec, builder: newBuilder()}
}

// GetByID loads a stream with its price.
func (r *StreamRepository) GetByID(ctx context.Context, id string) (*domain.Stream, error) {
	stmt, args, err := r.builder.Select("id", "title", "price::text", "currency", "stream_key").
		From("ppv.streams").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select stream sql: %w", err)
	}

	var (
		stream domain.Stream
		price  string
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&stream.ID, &stream.Title, &price, &stream.Currency, &stream.StreamKey); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan stream: %w", err)
	}

	stream.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse stream price %q: %w", price, err)
	}
	return &stream, nil
}

// Totals sums the per-day counters written alongside each grant.
func (r *StreamRepository) Totals(ctx context.Context, id string) (domain.StreamSales, error) {
	stmt, args, err := r.builder.Select("COALESCE(SUM(total_purchases), 0)", "COALESCE(SUM(total_revenue), 0)::text").
		From("ppv.stream_stats").
		Where(squirrel.Eq{"stream_id": id}).
		ToSql()
	if err != nil {
		return domain.StreamSales{}, fmt.Errorf("build stream totals sql: %w", err)
	}

	var (
		sales   domain.StreamSales
		revenue string
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&sales.Purchases, &revenue); err != nil {
		return domain.StreamSales{}, fmt.Errorf("scan stream totals: %w", err)
	}

	sales.Revenue, err = decimal.NewFromString(revenue)
	if err != nil {
		return domain.StreamSales{}, fmt.Errorf("parse stream revenue %q: %w", revenue, err)
	}
	return sales, nil
}
