package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
	"github.com/NoroNetwork/ppv-streaming/internal/core/port"
	appLogger "github.com/NoroNetwork/ppv-streaming/internal/infra/logger"
	"github.com/NoroNetwork/ppv-streaming/internal/infra/telemetry"
	"github.com/NoroNetwork/ppv-streaming/internal/repository"
)

// ConfirmationResult describes what a payment confirmation did to the ledger.
type ConfirmationResult string

const (
	ConfirmationGranted   ConfirmationResult = "granted"
	ConfirmationDuplicate ConfirmationResult = "duplicate"
	ConfirmationIgnored   ConfirmationResult = "ignored"
	// ConfirmationRejected marks a verified delivery that can never apply,
	// such as one naming an unknown buyer. It is acknowledged so the gateway
	// stops retrying.
	ConfirmationRejected ConfirmationResult = "rejected"
)

// PaymentMetrics counts webhook deliveries and their ledger outcome.
type PaymentMetrics interface {
	IncWebhookEvent(eventType string)
	IncEntitlementGrant(result string)
}

// PaymentService opens checkouts and applies verified payment confirmations.
type PaymentService struct {
	gateway   port.PaymentGateway
	streams   port.StreamRepository
	ledger    *EntitlementLedger
	events    *SecurityEventLog
	publisher port.EventPublisher
	tracer    trace.Tracer
	logger    *zap.Logger
	metrics   PaymentMetrics
	now       func() time.Time
}

func NewPaymentService(gateway port.PaymentGateway, streams port.StreamRepository, ledger *EntitlementLedger, events *SecurityEventLog, publisher port.EventPublisher) *PaymentService {
	return &PaymentService{
		gateway:   gateway,
		streams:   streams,
		ledger:    ledger,
		events:    events,
		publisher: publisher,
		tracer:    telemetry.Tracer(),
		logger:    zap.NewNop(),
		now:       time.Now,
	}
}

func (s *PaymentService) WithLogger(logger *zap.Logger) *PaymentService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *PaymentService) WithMetrics(metrics PaymentMetrics) *PaymentService {
	if metrics != nil {
		s.metrics = metrics
	}
	return s
}

func (s *PaymentService) WithNow(now func() time.Time) *PaymentService {
	if now != nil {
		s.now = now
	}
	return s
}

// CreateIntent opens a payment intent for the stream's price on behalf of userID.
func (s *PaymentService) CreateIntent(ctx context.Context, userID, streamID string) (domain.PaymentIntent, error) {
	if strings.TrimSpace(streamID) == "" {
		return domain.PaymentIntent{}, domain.NewValidationError("Stream ID is required")
	}

	stream, err := s.streams.GetByID(ctx, streamID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.PaymentIntent{}, domain.NewNotFoundError("Stream not found")
		}
		return domain.PaymentIntent{}, fmt.Errorf("load stream: %w", err)
	}

	owned, err := s.ledger.HasAccess(ctx, userID, stream.ID)
	if err != nil {
		return domain.PaymentIntent{}, err
	}
	if owned {
		return domain.PaymentIntent{}, domain.NewConflictError("You already have access to this stream")
	}

	return s.gateway.CreateIntent(ctx, stream.PriceInCents(), stream.Currency, map[string]string{
		"user_id":   userID,
		"stream_id": stream.ID,
	})
}

// HandleConfirmation verifies a webhook delivery and applies it to the ledger.
// Repeated deliveries of the same payment leave exactly one grant.
func (s *PaymentService) HandleConfirmation(ctx context.Context, payload []byte, signature string) (ConfirmationResult, error) {
	ctx, span := s.tracer.Start(ctx, "payment.handle_confirmation")
	defer span.End()

	event, err := s.gateway.VerifySignature(payload, signature)
	if err != nil {
		if !errors.Is(err, domain.ErrIntegrity) {
			err = domain.NewIntegrityError("Invalid signature", err)
		}
		reason, _ := domain.PublicMessage(err)
		s.events.Record(ctx, domain.SecurityEventInvalidSignature, map[string]any{"reason": reason})
		span.RecordError(err)
		span.SetStatus(codes.Error, "signature verification failed")
		return "", err
	}

	span.SetAttributes(
		attribute.String("payment.event_id", event.ID),
		attribute.String("payment.event_type", event.Type),
	)
	if s.metrics != nil {
		s.metrics.IncWebhookEvent(event.Type)
	}

	if event.Type != domain.PaymentSucceededEvent {
		s.observe(ConfirmationIgnored)
		return ConfirmationIgnored, nil
	}

	userID := strings.TrimSpace(event.Metadata["user_id"])
	streamID := strings.TrimSpace(event.Metadata["stream_id"])
	reference := event.PaymentReference
	if reference == "" {
		reference = event.ID
	}
	if userID == "" || streamID == "" {
		return s.reject(ctx, span, event.ID, reference, "missing user_id or stream_id metadata"), nil
	}
	if _, err := uuid.Parse(userID); err != nil {
		return s.reject(ctx, span, event.ID, reference, "malformed user_id metadata"), nil
	}
	span.SetAttributes(
		attribute.String("payment.reference", reference),
		attribute.String("stream.id", streamID),
	)

	applied, err := s.ledger.alreadyApplied(ctx, userID, streamID, reference)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	if applied {
		s.reportDuplicate(ctx, userID, streamID, reference)
		return ConfirmationDuplicate, nil
	}

	grant := domain.EntitlementGrant{
		ID:               uuid.NewString(),
		UserID:           userID,
		StreamID:         streamID,
		PaymentReference: reference,
		AmountPaid:       event.Amount(),
		Currency:         strings.ToUpper(event.Currency),
		GrantedAt:        s.now().UTC(),
	}

	granted, err := s.ledger.Grant(ctx, grant)
	if errors.Is(err, repository.ErrMissingReference) {
		return s.reject(ctx, span, event.ID, reference, "unknown user or stream"), nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "grant failed")
		return "", err
	}
	if !granted {
		s.reportDuplicate(ctx, userID, streamID, reference)
		return ConfirmationDuplicate, nil
	}

	s.observe(ConfirmationGranted)
	s.events.Record(ctx, domain.SecurityEventEntitlement, map[string]any{
		"user_id":           userID,
		"stream_id":         streamID,
		"payment_reference": reference,
		"amount":            grant.AmountPaid.StringFixed(2),
		"currency":          grant.Currency,
	})
	s.publishGranted(ctx, grant)

	return ConfirmationGranted, nil
}

// reportDuplicate counts a repeated delivery and flags a second, distinct payment for a stream already owned.
func (s *PaymentService) reportDuplicate(ctx context.Context, userID, streamID, reference string) {
	s.observe(ConfirmationDuplicate)

	existing, err := s.ledger.grantFor(ctx, userID, streamID)
	if err != nil {
		s.logger.Warn("load existing grant failed", zap.String("stream_id", streamID), zap.Error(err))
		return
	}
	if existing == nil || existing.PaymentReference == reference {
		return
	}
	s.events.Record(ctx, domain.SecurityEventDuplicatePurchase, map[string]any{
		"user_id":            userID,
		"stream_id":          streamID,
		"payment_reference":  reference,
		"existing_reference": existing.PaymentReference,
	})
}

// reject audits a verified delivery that no retry can apply.
func (s *PaymentService) reject(ctx context.Context, span trace.Span, eventID, reference, reason string) ConfirmationResult {
	span.SetStatus(codes.Error, reason)
	s.observe(ConfirmationRejected)
	s.logger.Warn("payment confirmation rejected",
		zap.String("event_id", eventID),
		zap.String("payment_reference", appLogger.MaskString(reference)),
		zap.String("reason", reason),
	)
	s.events.Record(ctx, domain.SecurityEventWebhookRejected, map[string]any{
		"event_id":          eventID,
		"payment_reference": reference,
		"reason":            reason,
	})
	return ConfirmationRejected
}

func (s *PaymentService) publishGranted(ctx context.Context, grant domain.EntitlementGrant) {
	if s.publisher == nil {
		return
	}
	event := domain.EntitlementGrantedEvent{
		EventID:          uuid.NewString(),
		GrantID:          grant.ID,
		UserID:           grant.UserID,
		StreamID:         grant.StreamID,
		PaymentReference: grant.PaymentReference,
		AmountPaid:       grant.AmountPaid,
		Currency:         grant.Currency,
		GrantedAt:        grant.GrantedAt,
	}
	if err := s.publisher.PublishEntitlementGranted(ctx, event); err != nil {
		s.logger.Warn("publish entitlement granted event failed", zap.String("grant_id", grant.ID), zap.Error(err))
	}
}

func (s *PaymentService) observe(result ConfirmationResult) {
	if s.metrics != nil {
		s.metrics.IncEntitlementGrant(string(result))
	}
}
