package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// RegisterRequest defines the payload for the registration endpoint.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserSummary describes a minimal view of a user returned by the API.
type UserSummary struct {
	ID    string          `json:"id"`
	Email string          `json:"email"`
	Role  domain.UserRole `json:"role"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token     string      `json:"token"`
	ExpiresIn int64       `json:"expires_in"`
	User      UserSummary `json:"user"`
}

// MeResponse describes the caller's account and token expiry.
type MeResponse struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	Role      domain.UserRole `json:"role"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// CreateIntentRequest starts checkout for a stream.
type CreateIntentRequest struct {
	StreamID string `json:"stream_id"`
}

// PaymentIntentResponse carries the gateway handle the client confirms against.
type PaymentIntentResponse struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
}

// WebhookResponse acknowledges a processed gateway delivery.
type WebhookResponse struct {
	Status string `json:"status"`
}

// EntitlementResponse is a single purchased stream.
type EntitlementResponse struct {
	StreamID         string    `json:"stream_id"`
	PaymentReference string    `json:"payment_reference"`
	AmountPaid       string    `json:"amount_paid"`
	Currency         string    `json:"currency"`
	GrantedAt        time.Time `json:"granted_at"`
}

// EntitlementListResponse lists the caller's grants.
type EntitlementListResponse struct {
	Entitlements []EntitlementResponse `json:"entitlements"`
}

// PlaybackResponse exposes the playback URL only.
type PlaybackResponse struct {
	HLSURL string `json:"hls_url"`
}

// ProvisionResponse exposes ingest and playback endpoints to operators.
type ProvisionResponse struct {
	RTMPURL   string `json:"rtmp_url"`
	HLSURL    string `json:"hls_url"`
	StreamKey string `json:"stream_key"`
}

// StreamStatsResponse reports media server statistics and sales totals.
type StreamStatsResponse struct {
	IsLive         bool   `json:"is_live"`
	Viewers        int    `json:"viewers"`
	BytesSent      int64  `json:"bytes_sent"`
	BytesReceived  int64  `json:"bytes_received"`
	TotalPurchases int64  `json:"total_purchases"`
	TotalRevenue   string `json:"total_revenue"`
}

// HealthResponse represents the health endpoint payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports the state of each dependency.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func newUserSummary(user domain.User) UserSummary {
	return UserSummary{
		ID:    user.ID,
		Email: user.Email,
		Role:  user.Role,
	}
}

func newAuthResponse(token domain.IssuedToken, user domain.User) AuthResponse {
	return AuthResponse{
		Token:     token.Token,
		ExpiresIn: int64(token.ExpiresIn().Seconds()),
		User:      newUserSummary(user),
	}
}
