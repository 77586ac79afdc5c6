package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
	"github.com/NoroNetwork/ppv-streaming/internal/core/port"
	"github.com/NoroNetwork/ppv-streaming/internal/repository"
)

// EntitlementLedger answers access questions against the durable grant ledger.
type EntitlementLedger struct {
	repo port.EntitlementRepository
}

func NewEntitlementLedger(repo port.EntitlementRepository) *EntitlementLedger {
	return &EntitlementLedger{repo: repo}
}

// HasAccess reports whether userID holds a grant for streamID.
func (l *EntitlementLedger) HasAccess(ctx context.Context, userID, streamID string) (bool, error) {
	ok, err := l.repo.Exists(ctx, userID, streamID, "")
	if err != nil {
		return false, fmt.Errorf("check entitlement: %w", err)
	}
	return ok, nil
}

// ListForUser returns the user's grants, newest first.
func (l *EntitlementLedger) ListForUser(ctx context.Context, userID string) ([]domain.EntitlementGrant, error) {
	grants, err := l.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list entitlements: %w", err)
	}
	return grants, nil
}

// Grant records grant together with the stream's revenue counters. It returns
// false without error when the pair or the payment reference is already granted.
func (l *EntitlementLedger) Grant(ctx context.Context, grant domain.EntitlementGrant) (bool, error) {
	if err := l.repo.Grant(ctx, grant); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return false, nil
		}
		return false, fmt.Errorf("grant entitlement: %w", err)
	}
	return true, nil
}

// alreadyApplied reports whether the pair or the payment reference is already on the ledger.
func (l *EntitlementLedger) alreadyApplied(ctx context.Context, userID, streamID, paymentReference string) (bool, error) {
	ok, err := l.repo.Exists(ctx, userID, streamID, paymentReference)
	if err != nil {
		return false, fmt.Errorf("check entitlement: %w", err)
	}
	return ok, nil
}

// grantFor returns the existing grant for the pair, if any.
func (l *EntitlementLedger) grantFor(ctx context.Context, userID, streamID string) (*domain.EntitlementGrant, error) {
	grants, err := l.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range grants {
		if grants[i].StreamID == streamID {
			return &grants[i], nil
		}
	}
	return nil, nil
}
