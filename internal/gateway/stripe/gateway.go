// Package stripe adapts the Stripe API to port.PaymentGateway.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	stripeapi "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
	"go.uber.org/zap"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
	"github.com/NoroNetwork/ppv-streaming/internal/core/port"
	"github.com/NoroNetwork/ppv-streaming/internal/infra/config"
)

const defaultWebhookTolerance = 5 * time.Minute

// Gateway creates payment intents and authenticates webhook deliveries.
type Gateway struct {
	api           *client.API
	webhookSecret string
	tolerance     time.Duration
	logger        *zap.Logger
}

var _ port.PaymentGateway = (*Gateway)(nil)

// NewGateway builds a Stripe client. cfg.APIURL overrides the API base URL,
// which tests and local mocks rely on.
func NewGateway(cfg config.StripeSettings, logger *zap.Logger) (*Gateway, error) {
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, errors.New("stripe: webhook secret is required")
	}

	backendCfg := &stripeapi.BackendConfig{
		HTTPClient:        &http.Client{Timeout: 15 * time.Second},
		MaxNetworkRetries: stripeapi.Int64(2),
		LeveledLogger:     &stripeapi.LeveledLogger{Level: stripeapi.LevelError},
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripeapi.String(cfg.APIURL)
	}
	backend := stripeapi.GetBackendWithConfig(stripeapi.APIBackend, backendCfg)

	tolerance := cfg.WebhookTolerance
	if tolerance <= 0 {
		tolerance = defaultWebhookTolerance
	}

	return &Gateway{
		api:           client.New(cfg.SecretKey, &stripeapi.Backends{API: backend, Connect: backend, Uploads: backend}),
		webhookSecret: cfg.WebhookSecret,
		tolerance:     tolerance,
		logger:        logger,
	}, nil
}

// CreateIntent opens a payment intent for amountCents in currency.
func (g *Gateway) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (domain.PaymentIntent, error) {
	params := &stripeapi.PaymentIntentParams{
		Amount:   stripeapi.Int64(amountCents),
		Currency: stripeapi.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripeapi.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripeapi.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	intent, err := g.api.PaymentIntents.New(params)
	if err != nil {
		g.logger.Warn("Stripe payment intent creation failed", zap.Error(err))
		return domain.PaymentIntent{}, domain.NewExternalServiceError("Payment provider unavailable", err)
	}

	return domain.PaymentIntent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		AmountCents:  intent.Amount,
		Currency:     string(intent.Currency),
	}, nil
}

// VerifySignature checks the Stripe-Signature header against the webhook
// secret before decoding anything. Every failure is a domain integrity error.
func (g *Gateway) VerifySignature(payload []byte, signature string) (domain.PaymentEvent, error) {
	if strings.TrimSpace(signature) == "" {
		return domain.PaymentEvent{}, domain.NewIntegrityError("Missing signature", webhook.ErrNotSigned)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                g.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return domain.PaymentEvent{}, domain.NewIntegrityError("Invalid signature", err)
	}

	out := domain.PaymentEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}
	if out.Type != domain.PaymentSucceededEvent {
		return out, nil
	}
	if event.Data == nil {
		return domain.PaymentEvent{}, domain.NewIntegrityError("Invalid payload", errors.New("event has no data"))
	}

	var intent stripeapi.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return domain.PaymentEvent{}, domain.NewIntegrityError("Invalid payload", fmt.Errorf("decode payment intent: %w", err))
	}

	amount := intent.AmountReceived
	if amount == 0 {
		amount = intent.Amount
	}

	out.PaymentReference = intent.ID
	out.AmountCents = amount
	out.Currency = string(intent.Currency)
	out.Metadata = intent.Metadata
	return out, nil
}
