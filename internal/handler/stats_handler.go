package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/Ahmad-Mosha/chat-api/internal/service"
	"github.com/Ahmad-Mosha/chat-api/internal/utils"
)

// StatsHandler exposes operational stats to administrators.
type StatsHandler struct {
	service service.UsageStatsService
	logger  zerolog.Logger
}

// NewStatsHandler constructs the handler.
func NewStatsHandler(service service.UsageStatsService, logger zerolog.Logger) *StatsHandler {
	return &StatsHandler{
		service: service,
		logger:  logger.With().Str("component", "stats_handler").Logger(),
	}
}

// Register attaches the stats routes to the router group.
func (h *StatsHandler) Register(router fiber.Router) {
	router.Get("", h.get)
}

func (h *StatsHandler) get(c *fiber.Ctx) error {
	usage, err := h.service.GetUsage(withRequestContext(c))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to aggregate usage stats")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load stats")
	}

	return utils.SendSuccess(c, "usage stats", usage)
}
