package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/agentx/aichat/internal/models"
	"github.com/agentx/aichat/internal/services"
)

// GetSettings returns the global settings with the API key masked
func GetSettings(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		settings, err := svc.Config.GetSettings(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(settings)
	}
}

// UpdateSettings updates global settings
func UpdateSettings(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var settings map[string]interface{}
		if err := c.BodyParser(&settings); err != nil {
			return models.NewValidationError("invalid request body")
		}

		if err := svc.Config.UpdateSettings(c.UserContext(), settings); err != nil {
			return err
		}

		updated, err := svc.Config.GetSettings(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(updated)
	}
}

// ResetSetting removes one stored global setting
func ResetSetting(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Config.ResetSetting(c.UserContext(), c.Params("key")); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
