package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// Authenticator verifies an Authorization header value.
type Authenticator interface {
	RequireAuth(authorization string) (domain.TokenClaims, error)
}

// RequireAuth verifies the bearer token and stores its claims on the context.
func RequireAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := auth.RequireAuth(c.GetHeader("Authorization"))
		if err != nil {
			message := "Invalid token"
			if msg, ok := domain.PublicMessage(err); ok {
				message = msg
			}
			status := http.StatusUnauthorized
			if !errors.Is(err, domain.ErrAuthentication) {
				status = http.StatusInternalServerError
				message = "Authentication failed"
			}
			c.AbortWithStatusJSON(status, newErrorResponse(c, message))
			return
		}

		c.Set(UserIDKey, claims.Subject)
		c.Set(ClaimsKey, claims)
		GetRequestContext(c).UserID = claims.Subject

		c.Next()
	}
}

// RequireRole rejects requests whose verified claims do not satisfy role.
// It must run after RequireAuth.
func RequireRole(role domain.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "Authentication required"))
			return
		}

		if err := domain.RequireRole(claims, role); err != nil {
			msg, _ := domain.PublicMessage(err)
			c.AbortWithStatusJSON(http.StatusForbidden, newErrorResponse(c, msg))
			return
		}

		c.Next()
	}
}

// GetClaims returns the claims stored by RequireAuth.
func GetClaims(c *gin.Context) (domain.TokenClaims, bool) {
	val, exists := c.Get(ClaimsKey)
	if !exists {
		return domain.TokenClaims{}, false
	}
	claims, ok := val.(domain.TokenClaims)
	return claims, ok
}

// GetAuthenticatedUserID retrieves the user ID from context (helper for handlers)
func GetAuthenticatedUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return "", false
	}

	if id, ok := userID.(string); ok {
		return id, true
	}

	return "", false
}
