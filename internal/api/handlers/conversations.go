package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/agentx/aichat/internal/models"
	"github.com/agentx/aichat/internal/services"
)

// ListConversations returns every conversation
func ListConversations(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := svc.Conversations.ListConversations(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(list)
	}
}

// CreateConversation registers a new conversation for a host object
func CreateConversation(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in services.ConversationInput
		if err := c.BodyParser(&in); err != nil {
			return models.NewValidationError("invalid request body")
		}

		view, err := svc.Conversations.CreateConversation(c.UserContext(), in)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(view)
	}
}

// GetConversation returns a conversation with its own overrides
func GetConversation(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view, err := svc.Conversations.GetConversation(c.UserContext(), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(view)
	}
}

// UpdateConversation replaces a conversation's settings
func UpdateConversation(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in services.ConversationInput
		if err := c.BodyParser(&in); err != nil {
			return models.NewValidationError("invalid request body")
		}

		view, err := svc.Conversations.UpdateConversation(c.UserContext(), c.Params("id"), in)
		if err != nil {
			return err
		}
		return c.JSON(view)
	}
}

// DeleteConversation removes a conversation with all of its chats
func DeleteConversation(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Conversations.DeleteConversation(c.UserContext(), c.Params("id")); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
