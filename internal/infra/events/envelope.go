// Package events defines the JSON envelope shared by every event transport.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
	"github.com/NoroNetwork/ppv-streaming/internal/infra/config"
)

const SchemaVersion = "1.0"

// Envelope wraps every published payload.
type Envelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewEnvelope fills defaults for id and timestamp and attaches service
// metadata plus the trace id of the active span, when there is one.
func NewEnvelope(ctx context.Context, app config.AppSettings, eventID, eventType, userID string, ts time.Time, payload any) Envelope {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	metadata := map[string]string{
		"service":     app.Name,
		"environment": app.Env,
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	return Envelope{
		EventID:   eventID,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   SchemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}
}

// Marshal encodes the envelope as JSON.
func (e Envelope) Marshal() ([]byte, error) {
	bytes, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event envelope: %w", err)
	}
	return bytes, nil
}

// UserRegisteredPayload is the wire payload of ppv.user.registered.
type UserRegisteredPayload struct {
	UserID       string         `json:"user_id"`
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	RegisteredAt time.Time      `json:"registered_at"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

func NewUserRegisteredPayload(event domain.UserRegisteredEvent) UserRegisteredPayload {
	return UserRegisteredPayload{
		UserID:       event.UserID,
		Email:        event.Email,
		Role:         string(event.Role),
		RegisteredAt: event.RegisteredAt.UTC(),
		Metadata:     event.Metadata,
	}
}

// EntitlementGrantedPayload is the wire payload of ppv.entitlement.granted.
// Amounts are decimal strings so no precision is lost.
type EntitlementGrantedPayload struct {
	GrantID          string    `json:"grant_id"`
	UserID           string    `json:"user_id"`
	StreamID         string    `json:"stream_id"`
	PaymentReference string    `json:"payment_reference"`
	AmountPaid       string    `json:"amount_paid"`
	Currency         string    `json:"currency"`
	GrantedAt        time.Time `json:"granted_at"`
}

func NewEntitlementGrantedPayload(event domain.EntitlementGrantedEvent) EntitlementGrantedPayload {
	return EntitlementGrantedPayload{
		GrantID:          event.GrantID,
		UserID:           event.UserID,
		StreamID:         event.StreamID,
		PaymentReference: event.PaymentReference,
		AmountPaid:       event.AmountPaid.StringFixed(2),
		Currency:         event.Currency,
		GrantedAt:        event.GrantedAt.UTC(),
	}
}
