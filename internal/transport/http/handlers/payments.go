package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
	"github.com/NoroNetwork/ppv-streaming/internal/transport/http/middleware"
	"github.com/NoroNetwork/ppv-streaming/internal/usecase"
)

const stripeSignatureHeader = "Stripe-Signature"

// Payments is the slice of usecase.PaymentService the payment endpoints need.
type Payments interface {
	CreateIntent(ctx context.Context, userID, streamID string) (domain.PaymentIntent, error)
	HandleConfirmation(ctx context.Context, payload []byte, signature string) (usecase.ConfirmationResult, error)
}

// EntitlementLister lists a user's grants.
type EntitlementLister interface {
	ListForUser(ctx context.Context, userID string) ([]domain.EntitlementGrant, error)
}

// PaymentHandler exposes checkout, webhook and entitlement endpoints.
type PaymentHandler struct {
	payments Payments
	ledger   EntitlementLister
	errors   ErrorResponder
}

func NewPaymentHandler(payments Payments, ledger EntitlementLister, errors ErrorResponder) *PaymentHandler {
	return &PaymentHandler{payments: payments, ledger: ledger, errors: errors}
}

// CreateIntent godoc
// @Summary Start checkout for a stream
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateIntentRequest true "Stream to purchase"
// @Success 201 {object} PaymentIntentResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/payments/intents [post]
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "Authentication required"))
		return
	}

	var req CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errors.badRequest(c, "Invalid request body")
		return
	}

	intent, err := h.payments.CreateIntent(c.Request.Context(), userID, req.StreamID)
	if err != nil {
		h.errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, PaymentIntentResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Amount:          intent.AmountCents,
		Currency:        intent.Currency,
	})
}

// Webhook receives signed gateway deliveries. The body is read raw so the
// signature covers exactly the bytes that were sent.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		h.errors.badRequest(c, "Invalid request body")
		return
	}

	if _, err := h.payments.HandleConfirmation(c.Request.Context(), payload, c.GetHeader(stripeSignatureHeader)); err != nil {
		h.errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, WebhookResponse{Status: "success"})
}

// ListEntitlements returns the streams the caller has purchased.
func (h *PaymentHandler) ListEntitlements(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "Authentication required"))
		return
	}

	grants, err := h.ledger.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.errors.Respond(c, err)
		return
	}

	resp := EntitlementListResponse{Entitlements: make([]EntitlementResponse, 0, len(grants))}
	for _, g := range grants {
		resp.Entitlements = append(resp.Entitlements, EntitlementResponse{
			StreamID:         g.StreamID,
			PaymentReference: g.PaymentReference,
			AmountPaid:       g.AmountPaid.StringFixed(2),
			Currency:         g.Currency,
			GrantedAt:        g.GrantedAt.UTC(),
		})
	}
	c.JSON(http.StatusOK, resp)
}
