package port

import (
	"context"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishEntitlementGranted(ctx context.Context, event domain.EntitlementGrantedEvent) error
}
