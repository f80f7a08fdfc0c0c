package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/agentx/aichat/internal/api/handlers"
	"github.com/agentx/aichat/internal/api/middleware"
	"github.com/agentx/aichat/internal/auth"
	"github.com/agentx/aichat/internal/config"
	"github.com/agentx/aichat/internal/services"
)

// Requests per minute per user or IP across the whole API
const apiRateLimit = 300

// NewApp builds the fiber app with middleware and all routes
func NewApp(cfg *config.Config, svc *services.Services, jwt *auth.JWTService, log *logrus.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "AIChat",
		ErrorHandler: handlers.ErrorHandler(log),
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))

	SetupRoutes(app, cfg, svc, jwt, log)
	return app
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, cfg *config.Config, svc *services.Services, jwt *auth.JWTService, log *logrus.Logger) {
	api := app.Group("/api/v1", middleware.APIRateLimit(apiRateLimit, time.Minute))

	// ========================================
	// Public routes
	// ========================================

	api.Get("/health", handlers.GetHealth(svc))

	// ========================================
	// Chat frontend (host token required)
	// ========================================

	chatHandler := handlers.NewChatHandler(svc.Conversations, log, cfg.Server.StreamStartTimeout)

	chat := api.Group("/conversations/:id/chat", middleware.AuthRequired(jwt, log))
	chat.Get("", chatHandler.Get)
	chat.Post("", middleware.ChatRateLimit(cfg.Server.ChatRateLimit), chatHandler.Post)

	// ========================================
	// Administration (admin role required)
	// ========================================

	admin := api.Group("", middleware.RequireAdmin(jwt, log), middleware.Audit(log))

	admin.Get("/settings", handlers.GetSettings(svc))
	admin.Put("/settings", handlers.UpdateSettings(svc))
	admin.Delete("/settings/:key", handlers.ResetSetting(svc))

	admin.Get("/conversations", handlers.ListConversations(svc))
	admin.Post("/conversations", handlers.CreateConversation(svc))
	admin.Get("/conversations/:id", handlers.GetConversation(svc))
	admin.Put("/conversations/:id", handlers.UpdateConversation(svc))
	admin.Delete("/conversations/:id", handlers.DeleteConversation(svc))

	admin.Get("/providers", handlers.GetProviders(svc))
	admin.Get("/providers/:id/models", handlers.DiscoverModels(svc))
	admin.Get("/metrics", handlers.GetMetrics(svc))
	admin.Delete("/metrics", handlers.ResetMetrics(svc))
	admin.Delete("/breakers/:key", handlers.ResetBreaker(svc))

	// ========================================
	// WebSocket routes
	// ========================================

	wsAuth := middleware.AuthMiddleware(middleware.AuthConfig{
		JWT:             jwt,
		Logger:          log,
		AllowQueryToken: true,
	})
	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return wsAuth(c)
	})

	app.Get("/ws/conversations/:id/chat", websocket.New(chatHandler.Socket))
}
