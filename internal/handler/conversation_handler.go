package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/Ahmad-Mosha/chat-api/internal/dto"
	"github.com/Ahmad-Mosha/chat-api/internal/service"
	"github.com/Ahmad-Mosha/chat-api/internal/utils"
)

// ConversationHandler provides HTTP endpoints for conversation management.
type ConversationHandler struct {
	service  service.ConversationService
	delivery service.DeliveryService
	logger   zerolog.Logger
}

// NewConversationHandler constructs a handler instance.
func NewConversationHandler(service service.ConversationService, delivery service.DeliveryService, logger zerolog.Logger) *ConversationHandler {
	return &ConversationHandler{
		service:  service,
		delivery: delivery,
		logger:   logger.With().Str("component", "conversation_handler").Logger(),
	}
}

// Register binds the conversation routes.
func (h *ConversationHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Post("/:id/participants", h.addParticipant)
	router.Delete("/:id/participants/:userID", h.removeParticipant)
}

func (h *ConversationHandler) create(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.ConversationCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	ctx := withRequestContext(c)

	response, created, err := h.service.Create(ctx, userID, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	// An existing direct conversation is returned as-is; only genuinely new
	// conversations are announced to their participants.
	if !created {
		return utils.SendSuccess(c, "conversation exists", response)
	}

	h.delivery.ConversationCreated(ctx, response)

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "conversation created", response)
}

func (h *ConversationHandler) list(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	conversations, err := h.service.List(withRequestContext(c), userID)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "conversations", conversations)
}

func (h *ConversationHandler) get(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	conversation, err := h.service.Get(withRequestContext(c), userID, id)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "conversation", conversation)
}

func (h *ConversationHandler) update(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ConversationUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	ctx := withRequestContext(c)

	response, err := h.service.Update(ctx, userID, id, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	h.delivery.ConversationUpdated(ctx, response)

	return utils.SendSuccess(c, "conversation updated", response)
}

func (h *ConversationHandler) addParticipant(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ParticipantAddRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	ctx := withRequestContext(c)

	response, err := h.service.AddParticipant(ctx, userID, id, payload.UserID)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	h.delivery.ParticipantAdded(ctx, dto.ParticipantEvent{
		ConversationID: id,
		UserID:         payload.UserID,
		Conversation:   &response,
	})

	return utils.SendSuccess(c, "participant added", response)
}

func (h *ConversationHandler) removeParticipant(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	targetID, err := parseUintParamValue(c, "userID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	ctx := withRequestContext(c)

	response, err := h.service.RemoveParticipant(ctx, userID, id, targetID)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	h.delivery.ParticipantRemoved(ctx, dto.ParticipantEvent{
		ConversationID: id,
		UserID:         targetID,
		Conversation:   &response,
	})

	return utils.SendSuccess(c, "participant removed", response)
}
