package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/agentx/aichat/internal/auth"
)

// AuthConfig holds the auth middleware configuration
type AuthConfig struct {
	JWT         *auth.JWTService
	Logger      *logrus.Logger
	RequireRole string // If set, requires specific role
	// AllowQueryToken accepts ?token= for clients that cannot set
	// headers, such as browser websockets.
	AllowQueryToken bool
}

// AuthRequired creates a middleware that requires a valid host token
func AuthRequired(jwt *auth.JWTService, logger *logrus.Logger) fiber.Handler {
	return AuthMiddleware(AuthConfig{JWT: jwt, Logger: logger})
}

// RequireAdmin creates a middleware that requires the admin role
func RequireAdmin(jwt *auth.JWTService, logger *logrus.Logger) fiber.Handler {
	return AuthMiddleware(AuthConfig{JWT: jwt, Logger: logger, RequireRole: auth.RoleAdmin})
}

// AuthMiddleware is the main authentication middleware. Host token
// failures answer 403; 401 is left to a rejected provider API key.
func AuthMiddleware(config AuthConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := auth.ExtractTokenFromBearer(c.Get("Authorization"))
		if token == "" && config.AllowQueryToken {
			token = c.Query("token")
		}

		if token == "" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		claims, err := config.JWT.ValidateToken(token)
		if err != nil {
			config.Logger.WithError(err).WithField("path", c.Path()).Debug("Rejected host token")
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		if config.RequireRole != "" && claims.Role != config.RequireRole {
			config.Logger.WithFields(logrus.Fields{
				"user_id":  claims.UserID,
				"role":     claims.Role,
				"required": config.RequireRole,
			}).Warn("Role check failed")
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Insufficient permissions",
			})
		}

		c.Locals("user_id", claims.UserID)
		c.Locals("user_role", claims.Role)
		return c.Next()
	}
}

// GetUserID retrieves the user ID from the fiber context
func GetUserID(c *fiber.Ctx) string {
	if id, ok := c.Locals("user_id").(string); ok {
		return id
	}
	return ""
}

// HasRole checks if the authenticated user has a specific role
func HasRole(c *fiber.Ctx, role string) bool {
	r, ok := c.Locals("user_role").(string)
	return ok && r == role
}

// IsAdmin checks if the authenticated user is an admin
func IsAdmin(c *fiber.Ctx) bool {
	return HasRole(c, auth.RoleAdmin)
}
