package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
	"github.com/NoroNetwork/ppv-streaming/internal/infra/logger"
)

const internalErrorMessage = "Internal server error"

// ErrorCase maps a sentinel error to an HTTP status code and response message.
// An empty Message uses the error's public message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// DomainErrorCases maps domain error kinds to HTTP statuses. Order matters.
var DomainErrorCases = []ErrorCase{
	{Err: domain.ErrValidation, Status: http.StatusBadRequest},
	{Err: domain.ErrAuthentication, Status: http.StatusUnauthorized},
	{Err: domain.ErrAuthorization, Status: http.StatusForbidden},
	{Err: domain.ErrNotFound, Status: http.StatusNotFound},
	{Err: domain.ErrConflict, Status: http.StatusConflict},
	{Err: domain.ErrIntegrity, Status: http.StatusBadRequest},
	{Err: domain.ErrRateLimited, Status: http.StatusTooManyRequests},
	{Err: domain.ErrAccountLocked, Status: http.StatusLocked},
	{Err: domain.ErrExternalService, Status: http.StatusBadGateway},
}

// ErrorResponder writes mapped errors. Debug adds the raw error to 500 bodies.
type ErrorResponder struct {
	Debug  bool
	Logger *zap.Logger
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			message := cs.Message
			if message == "" {
				message, _ = domain.PublicMessage(err)
			}
			if message == "" {
				message = fallbackMessage
			}
			c.JSON(cs.Status, NewErrorResponse(c, message))
			return
		}
	}

	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

// Respond maps err through DomainErrorCases. Unmapped errors are logged and
// returned as 500.
func (r ErrorResponder) Respond(c *gin.Context, err error) {
	if isDomainError(err) {
		RespondWithMappedError(c, err, DomainErrorCases, http.StatusInternalServerError, internalErrorMessage)
		return
	}

	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log.Error("unhandled request error",
		zap.String("request_id", logger.RequestIDFromContext(c.Request.Context())),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)

	body := NewErrorResponse(c, internalErrorMessage)
	if r.Debug {
		body.Detail = err.Error()
	}
	c.JSON(http.StatusInternalServerError, body)
}

func isDomainError(err error) bool {
	for _, cs := range DomainErrorCases {
		if errors.Is(err, cs.Err) {
			return true
		}
	}
	return false
}

func (r ErrorResponder) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, NewErrorResponse(c, message))
}
