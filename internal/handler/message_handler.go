package handler

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/Ahmad-Mosha/chat-api/internal/dto"
	"github.com/Ahmad-Mosha/chat-api/internal/service"
	"github.com/Ahmad-Mosha/chat-api/internal/utils"
)

// MessageHandler provides HTTP endpoints for sending and managing messages.
type MessageHandler struct {
	service  service.MessageService
	delivery service.DeliveryService
	logger   zerolog.Logger
}

// NewMessageHandler constructs a handler instance.
func NewMessageHandler(service service.MessageService, delivery service.DeliveryService, logger zerolog.Logger) *MessageHandler {
	return &MessageHandler{
		service:  service,
		delivery: delivery,
		logger:   logger.With().Str("component", "message_handler").Logger(),
	}
}

// Register binds the message routes.
func (h *MessageHandler) Register(router fiber.Router) {
	router.Post("", h.send)
	router.Put("/:id", h.edit)
	router.Delete("/:id", h.delete)
	router.Post("/:id/reactions", h.react)
}

// RegisterConversationScoped binds the message routes that live under a
// conversation path: history, search and read receipts.
func (h *MessageHandler) RegisterConversationScoped(router fiber.Router) {
	router.Get("/:id/messages", h.history)
	router.Get("/:id/messages/search", h.search)
	router.Post("/:id/read", h.markRead)
}

func (h *MessageHandler) send(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.MessageSendRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	ctx := withRequestContext(c)

	message, err := h.service.Send(ctx, userID, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	h.delivery.MessageCreated(ctx, message)

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", message)
}

func (h *MessageHandler) history(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	conversationID, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	history, err := h.service.History(withRequestContext(c), userID, conversationID, dto.MessageHistoryQuery{
		Page:  page,
		Limit: limit,
	})
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "messages", history)
}

func (h *MessageHandler) search(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	conversationID, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	query := strings.TrimSpace(c.Query("q"))
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	messages, err := h.service.Search(withRequestContext(c), userID, conversationID, dto.MessageSearchQuery{
		Query: query,
		Limit: limit,
	})
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "messages", messages)
}

func (h *MessageHandler) edit(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.MessageEditRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	ctx := withRequestContext(c)

	message, err := h.service.Edit(ctx, userID, id, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	h.delivery.MessageEdited(ctx, message)

	return utils.SendSuccess(c, "message updated", message)
}

func (h *MessageHandler) delete(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	ctx := withRequestContext(c)

	event, err := h.service.Delete(ctx, userID, id)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	h.delivery.MessageDeleted(ctx, event)

	return utils.SendSuccess(c, "message deleted", nil)
}

func (h *MessageHandler) react(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ReactionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	ctx := withRequestContext(c)

	event, err := h.service.React(ctx, userID, id, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	h.delivery.ReactionToggled(ctx, event)

	action := "removed"
	if event.Added {
		action = "added"
	}

	return utils.SendSuccess(c, "reaction "+action, event)
}

func (h *MessageHandler) markRead(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	conversationID, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	ctx := withRequestContext(c)

	event, err := h.service.MarkRead(ctx, userID, conversationID)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	h.delivery.ConversationRead(ctx, event)

	return utils.SendSuccess(c, "conversation read", event)
}

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}
