package kafka

import (
	"context"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
	"github.com/NoroNetwork/ppv-streaming/internal/core/port"
	"github.com/NoroNetwork/ppv-streaming/internal/infra/config"
	"github.com/NoroNetwork/ppv-streaming/internal/infra/events"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

func (p *EventPublisher) publish(ctx context.Context, env events.Envelope, key string) error {
	bytes, err := env.Marshal()
	if err != nil {
		return err
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(env.EventType),
		Value: sarama.ByteEncoder(bytes),
	}
	// Keying by aggregate keeps per-user ordering within a partition.
	if key != "" {
		message.Key = sarama.StringEncoder(key)
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishUserRegistered publishes ppv.user.registered events.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	env := events.NewEnvelope(ctx, p.appCfg, event.EventID, domain.EventUserRegistered, event.UserID, event.RegisteredAt,
		events.NewUserRegisteredPayload(event))
	return p.publish(ctx, env, event.UserID)
}

// PublishEntitlementGranted publishes ppv.entitlement.granted events.
func (p *EventPublisher) PublishEntitlementGranted(ctx context.Context, event domain.EntitlementGrantedEvent) error {
	env := events.NewEnvelope(ctx, p.appCfg, event.EventID, domain.EventEntitlementGranted, event.UserID, event.GrantedAt,
		events.NewEntitlementGrantedPayload(event))
	return p.publish(ctx, env, event.UserID)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
