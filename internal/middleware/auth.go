package middleware

import (
	"strings"

	"github.com/cashly/journey-api/internal/services"
	"github.com/gofiber/fiber/v3"
)

const (
	// ContextKeyAdminID is the key for the admin user ID in context
	ContextKeyAdminID = "admin_id"
	// ContextKeyAdminEmail is the key for the admin email in context
	ContextKeyAdminEmail = "admin_email"
)

// AuthMiddleware creates a middleware that validates admin JWT tokens
func AuthMiddleware(jwtService *services.JWTService) fiber.Handler {
	return func(c fiber.Ctx) error {
		// Try to get token from Authorization header first
		authHeader := c.Get("Authorization")
		var token string

		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}

		// If no token in header, try to get from cookie
		if token == "" {
			token = c.Cookies("token")
		}

		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "Authentication required",
			})
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "Invalid or expired token",
			})
		}

		c.Locals(ContextKeyAdminID, claims.AdminID)
		c.Locals(ContextKeyAdminEmail, claims.Email)

		return c.Next()
	}
}

// GetAdminID gets the admin user ID from context
func GetAdminID(c fiber.Ctx) int64 {
	if id, ok := c.Locals(ContextKeyAdminID).(int64); ok {
		return id
	}
	return 0
}

// GetAdminEmail gets the admin email from context
func GetAdminEmail(c fiber.Ctx) string {
	if email, ok := c.Locals(ContextKeyAdminEmail).(string); ok {
		return email
	}
	return ""
}
