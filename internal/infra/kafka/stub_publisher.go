package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
	"github.com/NoroNetwork/ppv-streaming/internal/core/port"
	"github.com/NoroNetwork/ppv-streaming/internal/infra/events"
	"github.com/NoroNetwork/ppv-streaming/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to a broker. Used when events.driver is "log".
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishUserRegistered logs ppv.user.registered events.
func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	payload := events.NewUserRegisteredPayload(event)
	payload.Email = logger.MaskEmail(payload.Email)
	p.logEvent(domain.EventUserRegistered, event.UserID, event.RegisteredAt, payload)
	return nil
}

// PublishEntitlementGranted logs ppv.entitlement.granted events.
func (p *StubPublisher) PublishEntitlementGranted(_ context.Context, event domain.EntitlementGrantedEvent) error {
	p.logEvent(domain.EventEntitlementGranted, event.UserID, event.GrantedAt, events.NewEntitlementGrantedPayload(event))
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
