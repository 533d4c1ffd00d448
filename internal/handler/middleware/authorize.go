package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/isabelfaulds/yearly-progress-bars-sub000/internal/authz"
)

// AuthorizeMiddleware gates protected routes on the access token. The
// token is read from the session cookie, falling back to a Bearer header
// for non-browser callers. The decision is codec-only - no store lookup -
// and a Deny never explains itself.
func AuthorizeMiddleware(authorizer *authz.Authorizer, accessCookieName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := c.Cookies(accessCookieName)
		if accessToken == "" {
			accessToken = bearerToken(c.Get("Authorization"))
		}

		decision := authorizer.Authorize(accessToken, c.Path())
		if !decision.Allowed() {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		c.Locals("identity", decision.Identity)
		c.Locals("decision", decision)

		return c.Next()
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
