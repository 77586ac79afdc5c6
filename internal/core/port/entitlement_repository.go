package port

import (
	"context"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
)

// EntitlementRepository is the durable ledger of granted access rights.
type EntitlementRepository interface {
	// Exists reports whether a grant exists for the pair or for the payment reference.
	Exists(ctx context.Context, userID, streamID, paymentReference string) (bool, error)
	// Grant inserts the grant and bumps the stream's revenue counters in one transaction.
	// A duplicate grant returns repository.ErrDuplicate and leaves no side effects.
	Grant(ctx context.Context, grant domain.EntitlementGrant) error
	ListByUser(ctx context.Context, userID string) ([]domain.EntitlementGrant, error)
}

// StreamRepository reads stream metadata owned by the catalog.
type StreamRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Stream, error)
	// Totals sums the stream's revenue counters over all days. A stream
	// without sales yields zero totals.
	Totals(ctx context.Context, id string) (domain.StreamSales, error)
}
