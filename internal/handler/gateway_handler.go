package handler

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/Ahmad-Mosha/chat-api/internal/middleware"
	"github.com/Ahmad-Mosha/chat-api/internal/service"
)

// GatewayHandler wires the realtime websocket endpoint.
type GatewayHandler struct {
	delivery service.DeliveryService
	logger   zerolog.Logger
}

// NewGatewayHandler creates a gateway handler instance.
func NewGatewayHandler(delivery service.DeliveryService, logger zerolog.Logger) *GatewayHandler {
	return &GatewayHandler{
		delivery: delivery,
		logger:   logger.With().Str("component", "gateway_handler").Logger(),
	}
}

// Register binds the websocket route under the provided router group.
func (h *GatewayHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *GatewayHandler) handleConnection(conn *websocket.Conn) {
	userID := websocketUserID(conn)
	if userID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusUnauthorized, "user id missing"))
		_ = conn.Close()
		return
	}

	correlation := fmt.Sprint(conn.Locals("correlation_id"))
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)

	opts := service.GatewayConnectionOptions{
		UserID:        userID,
		CorrelationID: correlation,
		Context:       baseCtx,
	}

	h.logger.Info().Uint("user_id", userID).Msg("gateway websocket connected")
	h.delivery.ServeConnection(conn, opts)
	h.logger.Info().Uint("user_id", userID).Msg("gateway websocket disconnected")
}

func websocketUserID(conn *websocket.Conn) uint {
	if value := conn.Locals("user_id"); value != nil {
		switch v := value.(type) {
		case uint:
			return v
		case int:
			if v > 0 {
				return uint(v)
			}
		case float64:
			if v > 0 {
				return uint(v)
			}
		}
	}
	return 0
}
