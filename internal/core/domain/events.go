package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Security event types written to the audit log.
const (
	SecurityEventLoginSuccess      = "successful_login"
	SecurityEventLoginFailed       = "failed_login"
	SecurityEventAccountLocked     = "account_locked"
	SecurityEventRateLimited       = "rate_limit_exceeded"
	SecurityEventMaliciousInput    = "malicious_input"
	SecurityEventUserRegistered    = "user_registered"
	SecurityEventInvalidSignature  = "webhook_signature_invalid"
	SecurityEventEntitlement       = "entitlement_granted"
	SecurityEventDuplicatePurchase = "duplicate_purchase"
	SecurityEventWebhookRejected   = "webhook_rejected"
)

// Domain event types published on the message bus.
const (
	EventUserRegistered     = "ppv.user.registered"
	EventEntitlementGranted = "ppv.entitlement.granted"
)

// SecurityEvent is an append-only audit record.
type SecurityEvent struct {
	Event     string
	IP        string
	UserAgent string
	Context   map[string]any
	CreatedAt time.Time
}

// UserRegisteredEvent represents the payload for ppv.user.registered messages.
type UserRegisteredEvent struct {
	EventID      string
	UserID       string
	Email        string
	Role         UserRole
	RegisteredAt time.Time
	Metadata     map[string]any
}

// EntitlementGrantedEvent represents the payload for ppv.entitlement.granted messages.
type EntitlementGrantedEvent struct {
	EventID          string
	GrantID          string
	UserID           string
	StreamID         string
	PaymentReference string
	AmountPaid       decimal.Decimal
	Currency         string
	GrantedAt        time.Time
}
