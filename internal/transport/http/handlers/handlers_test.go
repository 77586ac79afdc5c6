package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
	"github.com/NoroNetwork/ppv-streaming/internal/transport/http/middleware"
	"github.com/NoroNetwork/ppv-streaming/internal/usecase"
)

type fakeAuth struct {
	result   usecase.AuthResult
	err      error
	register usecase.RegisterInput
	login    usecase.LoginInput
	me       domain.User
	meID     string
}

func (f *fakeAuth) Me(_ context.Context, userID string) (domain.User, error) {
	f.meID = userID
	return f.me, f.err
}

func (f *fakeAuth) Register(_ context.Context, in usecase.RegisterInput) (usecase.AuthResult, error) {
	f.register = in
	return f.result, f.err
}

func (f *fakeAuth) Login(_ context.Context, in usecase.LoginInput) (usecase.AuthResult, error) {
	f.login = in
	return f.result, f.err
}

type fakePayments struct {
	intent    domain.PaymentIntent
	err       error
	result    usecase.ConfirmationResult
	payload   []byte
	signature string
	userID    string
	streamID  string
}

func (f *fakePayments) CreateIntent(_ context.Context, userID, streamID string) (domain.PaymentIntent, error) {
	f.userID, f.streamID = userID, streamID
	return f.intent, f.err
}

func (f *fakePayments) HandleConfirmation(_ context.Context, payload []byte, signature string) (usecase.ConfirmationResult, error) {
	f.payload, f.signature = payload, signature
	if f.err != nil {
		return "", f.err
	}
	if f.result != "" {
		return f.result, nil
	}
	return usecase.ConfirmationGranted, nil
}

type fakeLedger struct {
	grants []domain.EntitlementGrant
}

func (f *fakeLedger) ListForUser(context.Context, string) ([]domain.EntitlementGrant, error) {
	return f.grants, nil
}

type fakeStreams struct {
	endpoints domain.StreamEndpoints
	stats     domain.StreamStats
	err       error
	claims    domain.TokenClaims
}

func (f *fakeStreams) Playback(_ context.Context, claims domain.TokenClaims, _ string) (domain.StreamEndpoints, error) {
	f.claims = claims
	return f.endpoints, f.err
}

func (f *fakeStreams) Provision(context.Context, string) (domain.StreamEndpoints, error) {
	return f.endpoints, f.err
}

func (f *fakeStreams) Deprovision(context.Context, string) error { return f.err }

func (f *fakeStreams) Stats(context.Context, string) (domain.StreamStats, error) {
	return f.stats, f.err
}

// withClaims stands in for middleware.RequireAuth.
func withClaims(claims domain.TokenClaims) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, claims.Subject)
		c.Set(middleware.ClaimsKey, claims)
		c.Next()
	}
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.EnrichContext())
	return r
}

func serveJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rr.Body.String(), err)
	}
	return v
}

func TestAuthHandlerRegister(t *testing.T) {
	issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	auth := &fakeAuth{result: usecase.AuthResult{
		Token: domain.IssuedToken{Token: "tok", Claims: domain.TokenClaims{IssuedAt: issued, ExpiresAt: issued.Add(24 * time.Hour)}},
		User:  domain.User{ID: "u1", Email: "a@example.com", Role: domain.RoleUser, PasswordHash: "secret"},
	}}
	r := newTestRouter()
	NewAuthHandler(auth, ErrorResponder{}).RegisterRoutes(r.Group("/auth"))

	rr := serveJSON(r, http.MethodPost, "/auth/register", RegisterRequest{Email: "a@example.com", Password: "password123", Role: "admin"})

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if auth.register.Role != domain.RoleAdmin {
		t.Fatalf("expected role to be forwarded, got %q", auth.register.Role)
	}
	resp := decode[AuthResponse](t, rr)
	if resp.Token != "tok" || resp.ExpiresIn != 86400 || resp.User.ID != "u1" || resp.User.Role != domain.RoleUser {
		t.Fatalf("unexpected response %+v", resp)
	}
	if bytes.Contains(rr.Body.Bytes(), []byte("secret")) {
		t.Fatal("password hash leaked into response")
	}
}

func TestAuthHandlerMapsDomainErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{name: "validation", err: domain.NewValidationError("Email is required"), status: http.StatusBadRequest, message: "Email is required"},
		{name: "credentials", err: domain.NewAuthenticationError("Invalid credentials"), status: http.StatusUnauthorized, message: "Invalid credentials"},
		{name: "conflict", err: domain.NewConflictError("Email already exists"), status: http.StatusConflict, message: "Email already exists"},
		{name: "rate limited", err: domain.NewRateLimitedError("Too many login attempts. Please try again later."), status: http.StatusTooManyRequests, message: "Too many login attempts. Please try again later."},
		{name: "locked", err: domain.NewAccountLockedError("Account temporarily locked due to too many failed attempts"), status: http.StatusLocked, message: "Account temporarily locked due to too many failed attempts"},
		{name: "external", err: domain.NewExternalServiceError("Payment provider unavailable", errors.New("dial")), status: http.StatusBadGateway, message: "Payment provider unavailable"},
		{name: "unknown", err: errors.New("pool closed"), status: http.StatusInternalServerError, message: internalErrorMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter()
			NewAuthHandler(&fakeAuth{err: tt.err}, ErrorResponder{}).RegisterRoutes(r.Group("/auth"))

			rr := serveJSON(r, http.MethodPost, "/auth/login", LoginRequest{Email: "a@example.com", Password: "x"})

			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rr.Code)
			}
			body := decode[ErrorResponse](t, rr)
			if body.Error != tt.message {
				t.Fatalf("expected %q, got %q", tt.message, body.Error)
			}
			if body.TraceID == "" {
				t.Fatal("expected trace id in error body")
			}
			if body.Detail != "" {
				t.Fatalf("expected no detail outside debug mode, got %q", body.Detail)
			}
		})
	}
}

func TestErrorResponderDebugDetail(t *testing.T) {
	r := newTestRouter()
	NewAuthHandler(&fakeAuth{err: errors.New("pool closed")}, ErrorResponder{Debug: true}).RegisterRoutes(r.Group("/auth"))

	rr := serveJSON(r, http.MethodPost, "/auth/login", LoginRequest{Email: "a@example.com", Password: "x"})

	body := decode[ErrorResponse](t, rr)
	if rr.Code != http.StatusInternalServerError || body.Detail != "pool closed" {
		t.Fatalf("expected debug detail, got %d %+v", rr.Code, body)
	}
}

func TestAuthHandlerRejectsMalformedBody(t *testing.T) {
	r := newTestRouter()
	auth := &fakeAuth{}
	NewAuthHandler(auth, ErrorResponder{}).RegisterRoutes(r.Group("/auth"))

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString("{not json"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if auth.login.Email != "" {
		t.Fatal("expected use case not to be called")
	}
}

func TestAuthHandlerMe(t *testing.T) {
	r := newTestRouter()
	created := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	auth := &fakeAuth{me: domain.User{ID: "u1", Email: "stored@example.com", Role: domain.RoleAdmin, CreatedAt: created}}
	h := NewAuthHandler(auth, ErrorResponder{})
	expires := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	r.GET("/me", withClaims(domain.TokenClaims{Subject: "u1", Email: "a@example.com", Role: domain.RoleAdmin, ExpiresAt: expires}), h.Me)

	rr := serveJSON(r, http.MethodGet, "/me", nil)

	resp := decode[MeResponse](t, rr)
	if rr.Code != http.StatusOK || resp.ID != "u1" || resp.Role != domain.RoleAdmin || !resp.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected response %d %+v", rr.Code, resp)
	}
	if auth.meID != "u1" || resp.Email != "stored@example.com" || !resp.CreatedAt.Equal(created) {
		t.Fatalf("expected the stored account, got %+v", resp)
	}
}

func TestAuthHandlerMeDeletedUser(t *testing.T) {
	r := newTestRouter()
	h := NewAuthHandler(&fakeAuth{err: domain.NewNotFoundError("User not found")}, ErrorResponder{})
	r.GET("/me", withClaims(domain.TokenClaims{Subject: "gone", Role: domain.RoleUser}), h.Me)

	rr := serveJSON(r, http.MethodGet, "/me", nil)

	if rr.Code != http.StatusNotFound || decode[ErrorResponse](t, rr).Error != "User not found" {
		t.Fatalf("expected 404 User not found, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestPaymentHandlerCreateIntent(t *testing.T) {
	payments := &fakePayments{intent: domain.PaymentIntent{ID: "pi_1", ClientSecret: "pi_1_secret", AmountCents: 999, Currency: "usd"}}
	h := NewPaymentHandler(payments, &fakeLedger{}, ErrorResponder{})
	r := newTestRouter()
	r.POST("/payments/intents", withClaims(domain.TokenClaims{Subject: "u1", Role: domain.RoleUser}), h.CreateIntent)

	rr := serveJSON(r, http.MethodPost, "/payments/intents", CreateIntentRequest{StreamID: "s1"})

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	resp := decode[PaymentIntentResponse](t, rr)
	if resp.ClientSecret != "pi_1_secret" || resp.PaymentIntentID != "pi_1" || resp.Amount != 999 || resp.Currency != "usd" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if payments.userID != "u1" || payments.streamID != "s1" {
		t.Fatalf("expected caller and stream to be forwarded, got %q %q", payments.userID, payments.streamID)
	}
}

func TestPaymentHandlerWebhook(t *testing.T) {
	tests := []struct {
		name   string
		result usecase.ConfirmationResult
		err    error
		status int
	}{
		{name: "processed", status: http.StatusOK},
		{name: "undeliverable acknowledged", result: usecase.ConfirmationRejected, status: http.StatusOK},
		{name: "bad signature", err: domain.NewIntegrityError("Invalid signature", errors.New("hmac mismatch")), status: http.StatusBadRequest},
		{name: "bad metadata", err: domain.NewValidationError("Missing metadata"), status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payments := &fakePayments{result: tt.result, err: tt.err}
			h := NewPaymentHandler(payments, &fakeLedger{}, ErrorResponder{})
			r := newTestRouter()
			r.POST("/payments/webhook", h.Webhook)

			raw := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
			req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(raw))
			req.Header.Set("Stripe-Signature", "t=1,v1=abc")
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rr.Code)
			}
			if !bytes.Equal(payments.payload, raw) || payments.signature != "t=1,v1=abc" {
				t.Fatalf("expected raw body and signature to be forwarded")
			}
			if tt.err == nil {
				if resp := decode[WebhookResponse](t, rr); resp.Status != "success" {
					t.Fatalf("unexpected response %+v", resp)
				}
			}
		})
	}
}

func TestPaymentHandlerListEntitlements(t *testing.T) {
	granted := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger := &fakeLedger{grants: []domain.EntitlementGrant{
		{StreamID: "s1", PaymentReference: "pi_1", AmountPaid: decimal.RequireFromString("9.9"), Currency: "USD", GrantedAt: granted},
	}}
	h := NewPaymentHandler(&fakePayments{}, ledger, ErrorResponder{})
	r := newTestRouter()
	r.GET("/entitlements", withClaims(domain.TokenClaims{Subject: "u1"}), h.ListEntitlements)

	rr := serveJSON(r, http.MethodGet, "/entitlements", nil)

	resp := decode[EntitlementListResponse](t, rr)
	if len(resp.Entitlements) != 1 || resp.Entitlements[0].AmountPaid != "9.90" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestStreamHandlerPlayback(t *testing.T) {
	streams := &fakeStreams{endpoints: domain.StreamEndpoints{HLSURL: "http://media/key/index.m3u8"}}
	h := NewStreamHandler(streams, ErrorResponder{})
	r := newTestRouter()
	r.GET("/streams/:id/playback", withClaims(domain.TokenClaims{Subject: "u1", Role: domain.RoleUser}), h.Playback)

	rr := serveJSON(r, http.MethodGet, "/streams/s1/playback", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if resp := decode[PlaybackResponse](t, rr); resp.HLSURL != "http://media/key/index.m3u8" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if bytes.Contains(rr.Body.Bytes(), []byte("rtmp")) {
		t.Fatal("playback response must not contain ingest details")
	}
	if streams.claims.Subject != "u1" {
		t.Fatal("expected claims to be forwarded")
	}
}

func TestStreamHandlerPlaybackDenied(t *testing.T) {
	h := NewStreamHandler(&fakeStreams{err: domain.NewAuthorizationError("Access denied")}, ErrorResponder{})
	r := newTestRouter()
	r.GET("/streams/:id/playback", withClaims(domain.TokenClaims{Subject: "u1"}), h.Playback)

	rr := serveJSON(r, http.MethodGet, "/streams/s1/playback", nil)

	if rr.Code != http.StatusForbidden || decode[ErrorResponse](t, rr).Error != "Access denied" {
		t.Fatalf("expected 403 Access denied, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestStreamHandlerAdminEndpoints(t *testing.T) {
	streams := &fakeStreams{
		endpoints: domain.StreamEndpoints{StreamKey: "key", RTMPURL: "rtmp://media:1935/key", HLSURL: "http://media:8888/key/index.m3u8"},
		stats: domain.StreamStats{
			Live: true, Viewers: 3, BytesSent: 10, BytesReceived: 20,
			Sales: domain.StreamSales{Purchases: 2, Revenue: decimal.RequireFromString("9.5")},
		},
	}
	h := NewStreamHandler(streams, ErrorResponder{})
	r := newTestRouter()
	r.POST("/streams/:id/provision", h.Provision)
	r.DELETE("/streams/:id/provision", h.Deprovision)
	r.GET("/streams/:id/stats", h.Stats)

	rr := serveJSON(r, http.MethodPost, "/streams/s1/provision", nil)
	if rr.Code != http.StatusCreated || decode[ProvisionResponse](t, rr).StreamKey != "key" {
		t.Fatalf("unexpected provision response %d %s", rr.Code, rr.Body.String())
	}

	rr = serveJSON(r, http.MethodDelete, "/streams/s1/provision", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}

	rr = serveJSON(r, http.MethodGet, "/streams/s1/stats", nil)
	stats := decode[StreamStatsResponse](t, rr)
	if !stats.IsLive || stats.Viewers != 3 || stats.BytesReceived != 20 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.TotalPurchases != 2 || stats.TotalRevenue != "9.50" {
		t.Fatalf("expected sales totals in response, got %+v", stats)
	}
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	healthy := NewHealthHandler(WithReadinessCheck("postgres", func(context.Context) error { return nil }))
	degraded := NewHealthHandler(
		WithReadinessCheck("postgres", func(context.Context) error { return nil }),
		WithReadinessCheck("redis", func(context.Context) error { return errors.New("connection refused") }),
	)

	r := gin.New()
	r.GET("/healthz", healthy.Status)
	r.GET("/ready/ok", healthy.Ready)
	r.GET("/ready/degraded", degraded.Ready)

	if rr := serveJSON(r, http.MethodGet, "/healthz", nil); rr.Code != http.StatusOK {
		t.Fatalf("expected liveness 200, got %d", rr.Code)
	}

	rr := serveJSON(r, http.MethodGet, "/ready/ok", nil)
	if rr.Code != http.StatusOK || decode[ReadinessResponse](t, rr).Checks["postgres"] != "ok" {
		t.Fatalf("unexpected readiness %d %s", rr.Code, rr.Body.String())
	}

	rr = serveJSON(r, http.MethodGet, "/ready/degraded", nil)
	resp := decode[ReadinessResponse](t, rr)
	if rr.Code != http.StatusServiceUnavailable || resp.Status != "degraded" || resp.Checks["redis"] != "unavailable" || resp.Checks["postgres"] != "ok" {
		t.Fatalf("unexpected degraded readiness %d %+v", rr.Code, resp)
	}
}
