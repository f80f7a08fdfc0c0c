package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/agentx/aichat/internal/services"
)

// GetProviders returns the registered providers and what they support
func GetProviders(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(svc.Config.Providers())
	}
}

// DiscoverModels lists the models a provider offers with the global
// credentials
func DiscoverModels(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := svc.Config.ListModels(c.UserContext(), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"provider": c.Params("id"),
			"models":   list,
		})
	}
}

// GetMetrics returns provider request counts, latency and circuit
// breaker states
func GetMetrics(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		metrics, breaker := svc.Providers.Metrics, svc.Providers.Breaker
		if metrics == nil && breaker == nil {
			return fiber.NewError(fiber.StatusNotFound, "Metrics are disabled")
		}

		result := fiber.Map{}
		if metrics != nil {
			result["metrics"] = metrics.Snapshot()
		}
		if breaker != nil {
			result["breakers"] = breaker.States()
		}
		return c.JSON(result)
	}
}

// ResetMetrics clears the collected provider metrics
func ResetMetrics(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if svc.Providers.Metrics == nil {
			return fiber.NewError(fiber.StatusNotFound, "Metrics are disabled")
		}
		svc.Providers.Metrics.Reset()
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ResetBreaker closes the circuit breaker of one provider:model key
func ResetBreaker(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if svc.Providers.Breaker == nil {
			return fiber.NewError(fiber.StatusNotFound, "Circuit breaker is disabled")
		}
		if !svc.Providers.Breaker.Reset(c.Params("key")) {
			return fiber.NewError(fiber.StatusNotFound, "Unknown circuit breaker")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GetHealth reports database and provider health
func GetHealth(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		report := svc.Health.Check(c.UserContext())
		if report.Status != "ok" {
			c.Status(fiber.StatusServiceUnavailable)
		}
		return c.JSON(report)
	}
}
