package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/minivisionary/creditwallet/internal/pkg/token"
	"github.com/minivisionary/creditwallet/internal/pkg/usercontext"
)

// RequireAuth authenticates requests carrying a Bearer access token and
// returns JSON 401 otherwise.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := extractBearerToken(c)
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing access token"})
		}

		claims, err := token.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid or expired token"})
		}

		usercontext.SetUserContext(c, usercontext.UserContext{
			UserID:     claims.UserID,
			Email:      claims.Email,
			IsLoggedIn: true,
		})

		return c.Next()
	}
}

func extractBearerToken(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
