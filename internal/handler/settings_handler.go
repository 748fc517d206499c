package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sage-go-api/internal/dto"
	"github.com/noah-isme/sage-go-api/internal/scoring"
	"github.com/noah-isme/sage-go-api/internal/service"
	"github.com/noah-isme/sage-go-api/internal/utils"
)

// SettingsHandler exposes the evaluator configuration surface.
type SettingsHandler struct {
	service service.SettingsService
	logger  zerolog.Logger
}

// NewSettingsHandler builds a settings handler instance.
func NewSettingsHandler(service service.SettingsService, logger zerolog.Logger) *SettingsHandler {
	return &SettingsHandler{
		service: service,
		logger:  logger.With().Str("component", "settings_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *SettingsHandler) Register(router fiber.Router) {
	router.Get("", h.get)
	router.Put("", h.update)
}

func (h *SettingsHandler) get(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "settings retrieved", h.service.Get())
}

func (h *SettingsHandler) update(c *fiber.Ctx) error {
	var payload dto.SettingsUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	settings, err := h.service.Update(c.Context(), payload)
	if err != nil {
		if errors.Is(err, scoring.ErrInvalidConfig) || isValidationError(err) {
			return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
		}
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "settings updated", settings)
}
