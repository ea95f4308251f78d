package middleware

import (
	"strings"

	"devsocial/pkg/auth"
	"devsocial/pkg/envelope"
	"devsocial/pkg/models"

	"github.com/gofiber/fiber/v2"
)

// IdentityKey is the Locals key holding the verified models.Identity.
const IdentityKey = "identity"

// BearerToken returns the token from the Authorization header, falling back
// to the token query parameter used by websocket clients.
func BearerToken(c *fiber.Ctx) string {
	if h := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return c.Query("token")
}

// RequireAuth rejects requests without a valid token.
func RequireAuth(v auth.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := BearerToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(envelope.Fail("token not provided"))
		}

		identity, err := v.Verify(c.UserContext(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(envelope.Fail(err.Error()))
		}

		c.Locals(IdentityKey, identity)
		return c.Next()
	}
}

// OptionalAuth attaches the identity when a valid token is present and lets
// anonymous requests through otherwise.
func OptionalAuth(v auth.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token := BearerToken(c); token != "" {
			if identity, err := v.Verify(c.UserContext(), token); err == nil {
				c.Locals(IdentityKey, identity)
			}
		}
		return c.Next()
	}
}

// Identity returns the verified identity, or the zero identity for anonymous
// requests.
func Identity(c *fiber.Ctx) models.Identity {
	identity, _ := c.Locals(IdentityKey).(models.Identity)
	return identity
}

// SetIdentity stores identity for the rest of the handler chain.
func SetIdentity(c *fiber.Ctx, identity models.Identity) {
	c.Locals(IdentityKey, identity)
}
