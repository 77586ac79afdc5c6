package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
	"github.com/NoroNetwork/ppv-streaming/internal/transport/http/middleware"
)

// Streams is the slice of usecase.StreamService the stream endpoints need.
type Streams interface {
	Playback(ctx context.Context, claims domain.TokenClaims, streamID string) (domain.StreamEndpoints, error)
	Provision(ctx context.Context, streamID string) (domain.StreamEndpoints, error)
	Deprovision(ctx context.Context, streamID string) error
	Stats(ctx context.Context, streamID string) (domain.StreamStats, error)
}

// StreamHandler exposes playback and media provisioning endpoints.
type StreamHandler struct {
	streams Streams
	errors  ErrorResponder
}

func NewStreamHandler(streams Streams, errors ErrorResponder) *StreamHandler {
	return &StreamHandler{streams: streams, errors: errors}
}

// Playback godoc
// @Summary Get the playback URL of a purchased stream
// @Tags Streams
// @Produce json
// @Security BearerAuth
// @Param id path string true "Stream ID"
// @Success 200 {object} PlaybackResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/streams/{id}/playback [get]
func (h *StreamHandler) Playback(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "Authentication required"))
		return
	}

	endpoints, err := h.streams.Playback(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		h.errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, PlaybackResponse{HLSURL: endpoints.HLSURL})
}

func (h *StreamHandler) Provision(c *gin.Context) {
	endpoints, err := h.streams.Provision(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, ProvisionResponse{
		RTMPURL:   endpoints.RTMPURL,
		HLSURL:    endpoints.HLSURL,
		StreamKey: endpoints.StreamKey,
	})
}

func (h *StreamHandler) Deprovision(c *gin.Context) {
	if err := h.streams.Deprovision(c.Request.Context(), c.Param("id")); err != nil {
		h.errors.Respond(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *StreamHandler) Stats(c *gin.Context) {
	stats, err := h.streams.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, StreamStatsResponse{
		IsLive:         stats.Live,
		Viewers:        stats.Viewers,
		BytesSent:      stats.BytesSent,
		BytesReceived:  stats.BytesReceived,
		TotalPurchases: stats.Sales.Purchases,
		TotalRevenue:   stats.Sales.Revenue.StringFixed(2),
	})
}
