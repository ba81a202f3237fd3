package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/emberfall/emberfall-api/internal/api/dto"
	"github.com/emberfall/emberfall-api/internal/auth"
	"github.com/emberfall/emberfall-api/internal/service"
	apperrors "github.com/emberfall/emberfall-api/pkg/util"
)

// UsersHandler manages account endpoints.
type UsersHandler struct {
	authService *service.AuthService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService) *UsersHandler {
	return &UsersHandler{authService: authService}
}

// Register POST /auth/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, token, expiresAt, err := h.authService.Register(c.UserContext(), req.Username, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.AuthResponse{
		User:      user.Identity(),
		Token:     token,
		ExpiresAt: expiresAt,
	}})
}

// Login POST /auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, token, expiresAt, err := h.authService.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AuthResponse{
		User:      user.Identity(),
		Token:     token,
		ExpiresAt: expiresAt,
	}})
}

// Logout POST /auth/logout.
func (h *UsersHandler) Logout(c *fiber.Ctx) error {
	credential, err := auth.BearerToken(c.Get("Authorization"))
	if err != nil {
		return err
	}
	if err := h.authService.Logout(c.UserContext(), credential); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Me GET /auth/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthenticated("authentication required")
	}
	return c.JSON(fiber.Map{"data": identity})
}
