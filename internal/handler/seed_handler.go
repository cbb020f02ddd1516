package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/Ahmad-Mosha/chat-api/internal/models"
	"github.com/Ahmad-Mosha/chat-api/internal/service"
	"github.com/Ahmad-Mosha/chat-api/internal/utils"
)

// SeedHandler exposes tooling endpoints for loading demo fixtures.
type SeedHandler struct {
	service service.SeedService
	logger  zerolog.Logger
}

// NewSeedHandler constructs a seed handler.
func NewSeedHandler(service service.SeedService, logger zerolog.Logger) *SeedHandler {
	return &SeedHandler{
		service: service,
		logger:  logger.With().Str("component", "seed_handler").Logger(),
	}
}

// Register wires seed routes.
func (h *SeedHandler) Register(router fiber.Router) {
	router.Post("/users", h.users)
	router.Post("/channels", h.channels)
}

type seedUsersRequest struct {
	Items []models.User `json:"items"`
}

type seedChannelsRequest struct {
	Items []service.SeedChannel `json:"items"`
}

func (h *SeedHandler) users(c *fiber.Ctx) error {
	token := c.Get("X-Seed-Token")
	var payload seedUsersRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	affected, err := h.service.SeedUsers(withRequestContext(c), token, payload.Items)
	if err != nil {
		return h.seedError(c, err)
	}

	return utils.SendSuccess(c, "users seeded", fiber.Map{"affected": affected})
}

func (h *SeedHandler) channels(c *fiber.Ctx) error {
	token := c.Get("X-Seed-Token")
	var payload seedChannelsRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	created, err := h.service.SeedChannels(withRequestContext(c), token, payload.Items)
	if err != nil {
		return h.seedError(c, err)
	}

	return utils.SendSuccess(c, "channels seeded", fiber.Map{"affected": created})
}

func (h *SeedHandler) seedError(c *fiber.Ctx, err error) error {
	switch err {
	case service.ErrSeedDisabled:
		return utils.SendError(c, fiber.StatusForbidden, "seeding disabled")
	case service.ErrSeedUnauthorized:
		return utils.SendError(c, fiber.StatusForbidden, "invalid token")
	default:
		h.logger.Error().Err(err).Msg("seed operation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "seed operation failed")
	}
}
