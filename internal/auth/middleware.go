package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/emberfall/emberfall-api/internal/domain"
	apperrors "github.com/emberfall/emberfall-api/pkg/util"
)

const identityKey = "auth_identity"

// Middleware resolves bearer tokens into identities for protected routes.
type Middleware struct {
	resolver IdentityResolver
}

// NewMiddleware constructs middleware.
func NewMiddleware(resolver IdentityResolver) *Middleware {
	return &Middleware{resolver: resolver}
}

// Handle enforces authentication. There is no anonymous fallback: a missing
// or invalid credential fails the request.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	credential, err := BearerToken(c.Get("Authorization"))
	if err != nil {
		return err
	}

	identity, err := m.resolver.Resolve(c.UserContext(), credential)
	if err != nil {
		return err
	}

	c.Locals(identityKey, identity)
	return c.Next()
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", apperrors.NewUnauthenticated("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", apperrors.NewUnauthenticated("invalid authorization header")
	}
	return parts[1], nil
}

// IdentityFromContext retrieves the authenticated caller.
func IdentityFromContext(c *fiber.Ctx) (*domain.Identity, bool) {
	val := c.Locals(identityKey)
	if val == nil {
		return nil, false
	}
	identity, ok := val.(*domain.Identity)
	return identity, ok
}

// RequireStaff rejects callers whose role is the base player role.
func RequireStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return apperrors.NewUnauthenticated("authentication required")
		}
		if !identity.Role.IsStaff() {
			return apperrors.NewForbidden("staff role required")
		}
		return c.Next()
	}
}
