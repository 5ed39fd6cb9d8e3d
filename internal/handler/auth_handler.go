package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/scribehub/api/internal/auth"
	"github.com/scribehub/api/internal/middleware"
	"github.com/scribehub/api/internal/model"
	"github.com/scribehub/api/internal/service"
	"github.com/scribehub/api/pkg/response"
)

// AuthHandler serves account registration, login and ForwardAuth verification
type AuthHandler struct {
	service       *service.AuthService
	authenticator *auth.Authenticator
	validator     *validator.Validate
}

func NewAuthHandler(svc *service.AuthService, authenticator *auth.Authenticator, v *validator.Validate) *AuthHandler {
	return &AuthHandler{
		service:       svc,
		authenticator: authenticator,
		validator:     v,
	}
}

// Register handles POST /api/auth/register
// @Summary      Register account
// @Description  Create an account with email and password
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request body model.RegisterRequest true "Register request"
// @Success      201 {object} model.MessageResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/auth/register [post]
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req model.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Register(c.Context(), &req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return response.Created(c, result)
}

// Login handles POST /api/auth/login
// @Summary      Log in
// @Description  Exchange email and password for a bearer token
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request body model.LoginRequest true "Login request"
// @Success      200 {object} model.LoginResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req model.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Login(c.Context(), &req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return response.OK(c, result)
}

// Me handles GET /api/auth/me
// @Summary      Current user
// @Description  Return the authenticated account
// @Tags         Auth
// @Produce      json
// @Success      200 {object} model.User
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/auth/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, err := h.service.Profile(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return handleServiceError(c, err)
	}
	return response.OK(c, user)
}

// Verify handles GET /auth/verify, called by Traefik ForwardAuth.
// Returns 200 with X-User-* headers on success, 401 on failure.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	tokenString, err := auth.BearerToken(c.Get("Authorization"))
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	identity, err := h.authenticator.Authenticate(tokenString)
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	c.Set(middleware.HeaderUserID, identity.UserID)
	c.Set(middleware.HeaderUserEmail, identity.Email)
	if identity.Name != "" {
		c.Set(middleware.HeaderUserName, identity.Name)
	}
	return c.SendStatus(fiber.StatusOK)
}
