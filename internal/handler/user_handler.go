package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/Ahmad-Mosha/chat-api/internal/dto"
	"github.com/Ahmad-Mosha/chat-api/internal/service"
	"github.com/Ahmad-Mosha/chat-api/internal/utils"
)

// UserHandler provides HTTP endpoints for user profiles, presence status and blocks.
type UserHandler struct {
	service  service.UserService
	delivery service.DeliveryService
	logger   zerolog.Logger
}

// NewUserHandler constructs a handler instance.
func NewUserHandler(service service.UserService, delivery service.DeliveryService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		service:  service,
		delivery: delivery,
		logger:   logger.With().Str("component", "user_handler").Logger(),
	}
}

// Register binds the user routes. The /me routes must come before /:id so the
// literal segment is not swallowed by the parameter.
func (h *UserHandler) Register(router fiber.Router) {
	router.Get("/me", h.me)
	router.Put("/me/status", h.updateStatus)
	router.Get("/:id", h.get)
	router.Post("/:id/block", h.block)
	router.Delete("/:id/block", h.unblock)
}

func (h *UserHandler) me(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	user, err := h.service.Get(withRequestContext(c), userID)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "profile", user)
}

func (h *UserHandler) get(c *fiber.Ctx) error {
	if userIDFromContext(c) == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	user, err := h.service.Get(withRequestContext(c), id)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "user", user)
}

func (h *UserHandler) updateStatus(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.StatusUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	ctx := withRequestContext(c)

	event, err := h.service.UpdateStatus(ctx, userID, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	h.delivery.StatusChanged(ctx, event)

	return utils.SendSuccess(c, "status updated", event)
}

func (h *UserHandler) block(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	targetID, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Block(withRequestContext(c), userID, targetID); err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "user blocked", nil)
}

func (h *UserHandler) unblock(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	targetID, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Unblock(withRequestContext(c), userID, targetID); err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "user unblocked", nil)
}
