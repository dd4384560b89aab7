package usercontext

import "github.com/gofiber/fiber/v2"

// Shared Locals keys used across controllers and middlewares
const (
	KeyUserContext = "USER_CONTEXT"
	KeyUserID      = "user_id"
	KeyEmail       = "email"
)

// UserContext represents the authenticated user for a request
type UserContext struct {
	UserID     uint   `json:"user_id"`
	Email      string `json:"email"`
	IsLoggedIn bool   `json:"is_logged_in"`
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx := c.Locals(KeyUserContext); ctx != nil {
		return ctx.(UserContext)
	}
	return UserContext{IsLoggedIn: false}
}

// SetUserContext stores the user context on the request
func SetUserContext(c *fiber.Ctx, ctx UserContext) {
	c.Locals(KeyUserContext, ctx)
	c.Locals(KeyUserID, ctx.UserID)
	c.Locals(KeyEmail, ctx.Email)
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// GetUserID returns the current user's ID, or 0 if not logged in
func GetUserID(c *fiber.Ctx) uint {
	return GetUserContext(c).UserID
}
