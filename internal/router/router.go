package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Ahmad-Mosha/chat-api/internal/config"
	"github.com/Ahmad-Mosha/chat-api/internal/handler"
	"github.com/Ahmad-Mosha/chat-api/internal/middleware"
	"github.com/Ahmad-Mosha/chat-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ConversationHandler *handler.ConversationHandler
	MessageHandler      *handler.MessageHandler
	UserHandler         *handler.UserHandler
	UploadHandler       *handler.UploadHandler
	GatewayHandler      *handler.GatewayHandler
	StatsHandler        *handler.StatsHandler
	SeedHandler         *handler.SeedHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.ConversationHandler != nil {
		conversations := api.Group("/conversations", jwtMiddleware)
		deps.ConversationHandler.Register(conversations)

		// History, search and read receipts live under the conversation path.
		if deps.MessageHandler != nil {
			deps.MessageHandler.RegisterConversationScoped(conversations)
		}
	}

	if deps.MessageHandler != nil {
		messages := api.Group("/messages", jwtMiddleware)
		messages.Use(middleware.RateLimit("messages", cfg.MessageRateLimit, cfg.MessageRateWindow))
		deps.MessageHandler.Register(messages)
	}

	if deps.UserHandler != nil {
		users := api.Group("/users", jwtMiddleware)
		deps.UserHandler.Register(users)
	}

	if deps.UploadHandler != nil {
		uploads := api.Group("/uploads", jwtMiddleware)
		deps.UploadHandler.Register(uploads)
	}

	if deps.GatewayHandler != nil {
		gateway := api.Group("/gateway", jwtMiddleware)
		deps.GatewayHandler.Register(gateway)
	}

	if deps.StatsHandler != nil {
		admin := api.Group("/admin", jwtMiddleware, middleware.RequireRole("admin"))
		deps.StatsHandler.Register(admin.Group("/stats"))
	}

	// Seed routes stay outside JWT; the service enforces its own token.
	if deps.SeedHandler != nil {
		deps.SeedHandler.Register(api.Group("/seed"))
	}
}
