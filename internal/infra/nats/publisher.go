package nats

import (
	"context"
	"fmt"
	"strings"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
	"github.com/NoroNetwork/ppv-streaming/internal/core/port"
	"github.com/NoroNetwork/ppv-streaming/internal/infra/config"
	"github.com/NoroNetwork/ppv-streaming/internal/infra/events"
)

// msgPublisher is the part of *natsgo.Conn the publisher needs.
type msgPublisher interface {
	PublishMsg(msg *natsgo.Msg) error
}

// Connect dials the configured NATS server.
func Connect(cfg config.NATSSettings, logger *zap.Logger) (*natsgo.Conn, error) {
	conn, err := natsgo.Connect(cfg.URL,
		natsgo.Name("ppv-streaming"),
		natsgo.Timeout(5*time.Second),
		natsgo.MaxReconnects(-1),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		natsgo.ReconnectHandler(func(c *natsgo.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	logger.Info("NATS connection established", zap.String("url", cfg.URL))
	return conn, nil
}

// EventPublisher implements port.EventPublisher over core NATS subjects.
type EventPublisher struct {
	conn   msgPublisher
	cfg    config.NATSSettings
	appCfg config.AppSettings
}

// NewEventPublisher constructs a NATS-backed event publisher.
func NewEventPublisher(conn msgPublisher, cfg config.NATSSettings, appCfg config.AppSettings) *EventPublisher {
	return &EventPublisher{conn: conn, cfg: cfg, appCfg: appCfg}
}

// Subject returns the subject for eventType, applying the configured prefix once.
func (p *EventPublisher) Subject(eventType string) string {
	if p.cfg.SubjectPrefix == "" {
		return eventType
	}
	prefix := p.cfg.SubjectPrefix + "."
	if strings.HasPrefix(eventType, prefix) {
		return eventType
	}
	return prefix + eventType
}

func (p *EventPublisher) publish(ctx context.Context, env events.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	bytes, err := env.Marshal()
	if err != nil {
		return err
	}

	msg := natsgo.NewMsg(p.Subject(env.EventType))
	msg.Data = bytes
	// JetStream streams bound to these subjects dedupe on this header.
	msg.Header.Set(natsgo.MsgIdHdr, env.EventID)

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	return nil
}

// PublishUserRegistered publishes ppv.user.registered events.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	return p.publish(ctx, events.NewEnvelope(ctx, p.appCfg, event.EventID, domain.EventUserRegistered, event.UserID,
		event.RegisteredAt, events.NewUserRegisteredPayload(event)))
}

// PublishEntitlementGranted publishes ppv.entitlement.granted events.
func (p *EventPublisher) PublishEntitlementGranted(ctx context.Context, event domain.EntitlementGrantedEvent) error {
	return p.publish(ctx, events.NewEnvelope(ctx, p.appCfg, event.EventID, domain.EventEntitlementGranted, event.UserID,
		event.GrantedAt, events.NewEntitlementGrantedPayload(event)))
}

var _ port.EventPublisher = (*EventPublisher)(nil)
