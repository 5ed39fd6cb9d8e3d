package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/scribehub/api/internal/auth"
	"github.com/scribehub/api/pkg/response"
)

// AuthMiddleware handles bearer token authentication
type AuthMiddleware struct {
	authenticator *auth.Authenticator
}

// NewAuthMiddleware creates auth middleware backed by the given authenticator
func NewAuthMiddleware(authenticator *auth.Authenticator) *AuthMiddleware {
	return &AuthMiddleware{authenticator: authenticator}
}

// Locals keys holding the caller identity once a request is admitted
const (
	LocalUserID = "userId"
	LocalEmail  = "email"
	LocalName   = "name"
)

// Authenticate requires a bearer token in the Authorization header
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, err := auth.BearerToken(c.Get("Authorization"))
		switch {
		case errors.Is(err, auth.ErrMissingToken):
			return response.Unauthorized(c, "Missing authorization header")
		case err != nil:
			return response.Unauthorized(c, "Invalid authorization header format")
		}
		return m.admit(c, tokenString)
	}
}

// AuthenticateQuery also accepts the token from a query parameter, for
// websocket handshakes where browsers cannot set headers. The header wins
// when both are present.
func (m *AuthMiddleware) AuthenticateQuery(param string) fiber.Handler {
	fromHeader := m.Authenticate()
	return func(c *fiber.Ctx) error {
		if tokenString := c.Query(param); tokenString != "" && c.Get("Authorization") == "" {
			return m.admit(c, tokenString)
		}
		return fromHeader(c)
	}
}

func (m *AuthMiddleware) admit(c *fiber.Ctx, tokenString string) error {
	identity, err := m.authenticator.Authenticate(tokenString)
	if errors.Is(err, auth.ErrNotEnabled) {
		return response.Unauthorized(c, "Authentication not configured")
	}
	if err != nil {
		return response.Unauthorized(c, "Invalid or expired token")
	}

	setIdentity(c, identity)
	return c.Next()
}

func setIdentity(c *fiber.Ctx, identity *auth.Identity) {
	c.Locals(LocalUserID, identity.UserID)
	c.Locals(LocalEmail, identity.Email)
	c.Locals(LocalName, identity.Name)
}

func localString(c *fiber.Ctx, key string) string {
	v, _ := c.Locals(key).(string)
	return v
}

// GetUserID returns the admitted caller, or "" on anonymous routes
func GetUserID(c *fiber.Ctx) string { return localString(c, LocalUserID) }

func GetUserEmail(c *fiber.Ctx) string { return localString(c, LocalEmail) }

func GetUserName(c *fiber.Ctx) string { return localString(c, LocalName) }
