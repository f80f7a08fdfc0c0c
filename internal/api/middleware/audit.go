package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Audit logs every administrative write with the acting user, the
// resource touched and the outcome. Reads are not logged.
func Audit(logger *logrus.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodGet || c.Method() == fiber.MethodHead {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		path := c.Path()
		resourceType, resourceID := extractResourceInfo(path)
		status := c.Response().StatusCode()
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		entry := logger.WithFields(logrus.Fields{
			"action":      determineAction(c.Method(), path),
			"resource":    resourceType,
			"resource_id": resourceID,
			"user_id":     GetUserID(c),
			"ip":          c.IP(),
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if err != nil || status >= 400 {
			entry.Warn("Audit: admin action failed")
		} else {
			entry.Info("Audit: admin action")
		}

		return err
	}
}

// determineAction determines the action from HTTP method and path
func determineAction(method, path string) string {
	resource, _ := extractResourceInfo(path)
	if resource == "" {
		return fmt.Sprintf("%s.%s", strings.ToLower(method), path)
	}

	switch method {
	case fiber.MethodPost:
		return resource + ".create"
	case fiber.MethodPut, fiber.MethodPatch:
		return resource + ".update"
	case fiber.MethodDelete:
		return resource + ".delete"
	}
	return fmt.Sprintf("%s.%s", resource, strings.ToLower(method))
}

// extractResourceInfo extracts resource type and ID from an /api/v1 path
func extractResourceInfo(path string) (string, string) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 {
		return "", ""
	}
	if len(parts) > 3 {
		return parts[2], parts[3]
	}
	return parts[2], ""
}
