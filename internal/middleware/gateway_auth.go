package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/scribehub/api/internal/auth"
	"github.com/scribehub/api/pkg/response"
)

// Headers the gateway copies from the /auth/verify response
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
)

// GatewayAuthMiddleware trusts the identity headers set by Traefik
// ForwardAuth. Only enable it when the API is unreachable except through
// the gateway.
func GatewayAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := gatewayIdentity(c)
		if identity == nil {
			return response.Unauthorized(c, "Missing user identity headers")
		}

		setIdentity(c, identity)
		return c.Next()
	}
}

func gatewayIdentity(c *fiber.Ctx) *auth.Identity {
	userID := strings.TrimSpace(c.Get(HeaderUserID))
	if userID == "" {
		return nil
	}
	return &auth.Identity{
		UserID: userID,
		Email:  c.Get(HeaderUserEmail),
		Name:   c.Get(HeaderUserName),
	}
}
