package port

import (
	"context"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
)

// PaymentGateway is the payment provider collaborator.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (domain.PaymentIntent, error)
	// VerifySignature authenticates a raw webhook payload and decodes it.
	VerifySignature(payload []byte, signature string) (domain.PaymentEvent, error)
}

// MediaServer provisions and inspects ingest paths on the streaming server.
type MediaServer interface {
	CreateStream(ctx context.Context, streamKey string) (domain.StreamEndpoints, error)
	DeleteStream(ctx context.Context, streamKey string) error
	GetStats(ctx context.Context, streamKey string) (domain.StreamStats, error)
	// Endpoints renders ingest and playback URLs without contacting the server.
	Endpoints(streamKey string) domain.StreamEndpoints
}
