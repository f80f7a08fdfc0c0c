package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/agentx/aichat/internal/models"
)

// errorStatus maps err to the HTTP status and the message shown to the
// client. Unclassified errors are hidden behind a generic message.
func errorStatus(err error) (int, string) {
	var e *models.Error
	if errors.As(err, &e) {
		return e.HTTPStatus(), e.Message
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, fe.Message
	}

	return fiber.StatusInternalServerError, "Internal server error"
}

// ErrorHandler renders errors returned by handlers in the {"error": ...}
// envelope and logs server side failures.
func ErrorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, message := errorStatus(err)

		entry := logger.WithError(err).WithFields(logrus.Fields{
			"method": c.Method(),
			"path":   c.Path(),
			"status": status,
		})
		switch {
		case status >= 500:
			entry.Error("Request failed")
		case status != fiber.StatusNotFound:
			entry.Debug("Request rejected")
		}

		return c.Status(status).JSON(fiber.Map{"error": message})
	}
}
