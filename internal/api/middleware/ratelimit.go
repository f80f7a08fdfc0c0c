package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// APIRateLimit returns a rate limiter for API endpoints (configurable)
func APIRateLimit(max int, expiration time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			// Rate limit by user ID if authenticated
			if userID := GetUserID(c); userID != "" {
				return fmt.Sprintf("api:user:%s", userID)
			}
			return fmt.Sprintf("api:ip:%s", c.IP())
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "API rate limit exceeded. Please slow down your requests.",
			})
		},
	})
}

// ChatRateLimit limits chat requests per user and minute. Requests that
// fail are not counted. max <= 0 disables the limit.
func ChatRateLimit(max int) fiber.Handler {
	if max <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			if userID := GetUserID(c); userID != "" {
				return fmt.Sprintf("chat:user:%s", userID)
			}
			return fmt.Sprintf("chat:ip:%s", c.IP())
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Chat rate limit exceeded. Please wait before sending more messages.",
			})
		},
		SkipFailedRequests: true,
	})
}
