package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
	"github.com/NoroNetwork/ppv-streaming/internal/transport/http/middleware"
	"github.com/NoroNetwork/ppv-streaming/internal/usecase"
)

// Authenticator is the slice of usecase.AuthService the auth endpoints need.
type Authenticator interface {
	Register(ctx context.Context, in usecase.RegisterInput) (usecase.AuthResult, error)
	Login(ctx context.Context, in usecase.LoginInput) (usecase.AuthResult, error)
	Me(ctx context.Context, userID string) (domain.User, error)
}

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	auth   Authenticator
	errors ErrorResponder
}

func NewAuthHandler(auth Authenticator, errors ErrorResponder) *AuthHandler {
	return &AuthHandler{auth: auth, errors: errors}
}

// RegisterRoutes binds public auth endpoints. /me is bound separately behind RequireAuth.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
}

// Register godoc
// @Summary Register a new account
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errors.badRequest(c, "Invalid request body")
		return
	}

	result, err := h.auth.Register(c.Request.Context(), usecase.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Role:     domain.UserRole(req.Role),
	})
	if err != nil {
		h.errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, newAuthResponse(result.Token, result.User))
}

// Login godoc
// @Summary Authenticate with email and password
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} AuthResponse
// @Failure 401 {object} ErrorResponse
// @Failure 423 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errors.badRequest(c, "Invalid request body")
		return
	}

	result, err := h.auth.Login(c.Request.Context(), usecase.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, newAuthResponse(result.Token, result.User))
}

// Me returns the caller's account as currently stored.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "Authentication required"))
		return
	}

	user, err := h.auth.Me(c.Request.Context(), claims.Subject)
	if err != nil {
		h.errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, MeResponse{
		ID:        user.ID,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.UTC(),
		ExpiresAt: claims.ExpiresAt.UTC(),
	})
}
