package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Ahmad-Mosha/chat-api/internal/middleware"
	"github.com/Ahmad-Mosha/chat-api/internal/service"
	"github.com/Ahmad-Mosha/chat-api/internal/utils"
)

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
		if id, ok := v.(int); ok {
			if id < 0 {
				return 0
			}
			return uint(id)
		}
	}
	return 0
}

func parseUintParamValue(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.Params(key))
	if value == "" {
		return 0, fmt.Errorf("%s required", key)
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(parsed), nil
}

func withRequestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// sendServiceError translates the service error taxonomy into an HTTP response.
// Unclassified errors are logged and masked so internals never leak to clients.
func sendServiceError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	if isValidationError(err) {
		return utils.SendErrorCode(c, fiber.StatusBadRequest, "invalid", err.Error())
	}

	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalid):
		status = fiber.StatusBadRequest
	case errors.Is(err, service.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		status = fiber.StatusForbidden
	case errors.Is(err, service.ErrConflict):
		status = fiber.StatusConflict
	}

	if status == fiber.StatusInternalServerError {
		logger.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return utils.SendErrorCode(c, status, "internal", "internal error")
	}

	return utils.SendErrorCode(c, status, service.ErrorCode(err), err.Error())
}
