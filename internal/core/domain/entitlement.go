package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentSucceededEvent is the only gateway event type that grants access.
const PaymentSucceededEvent = "payment_intent.succeeded"

// EntitlementGrant is a durable record that a user has paid for a stream.
// At most one grant exists per (UserID, StreamID).
type EntitlementGrant struct {
	ID               string
	UserID           string
	StreamID         string
	PaymentReference string
	AmountPaid       decimal.Decimal
	Currency         string
	GrantedAt        time.Time
}

// Stream is the read-only slice of stream metadata the control plane needs.
type Stream struct {
	ID        string
	Title     string
	Price     decimal.Decimal
	Currency  string
	StreamKey string
}

// PriceInCents converts the decimal price into the gateway's minor units.
func (s Stream) PriceInCents() int64 {
	return s.Price.Shift(2).Round(0).IntPart()
}

// PaymentEvent is a verified gateway event reduced to the fields the ledger uses.
type PaymentEvent struct {
	ID               string
	Type             string
	PaymentReference string
	AmountCents      int64
	Currency         string
	Metadata         map[string]string
}

// Amount returns the event amount in major currency units.
func (e PaymentEvent) Amount() decimal.Decimal {
	return decimal.New(e.AmountCents, -2)
}

// PaymentIntent is the gateway handle returned to clients to complete checkout.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	AmountCents  int64
	Currency     string
}

// StreamEndpoints are the ingest and playback URLs for a provisioned stream.
type StreamEndpoints struct {
	StreamKey string
	RTMPURL   string
	HLSURL    string
}

// StreamSales aggregates the per-day revenue counters of a stream.
type StreamSales struct {
	Purchases int64
	Revenue   decimal.Decimal
}

// StreamStats combines the media server's live view of a stream with its sales totals.
type StreamStats struct {
	Live          bool
	Viewers       int
	BytesSent     int64
	BytesReceived int64
	Sales         StreamSales
}
