package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sage-go-api/internal/service"
	"github.com/noah-isme/sage-go-api/internal/utils"
)

// ResultHandler exposes released results to students.
type ResultHandler struct {
	service service.ResultService
	logger  zerolog.Logger
}

// NewResultHandler builds a result handler instance.
func NewResultHandler(service service.ResultService, logger zerolog.Logger) *ResultHandler {
	return &ResultHandler{
		service: service,
		logger:  logger.With().Str("component", "result_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *ResultHandler) Register(router fiber.Router) {
	router.Get("/exams/:exam_id/students/:student_id", h.getStudentResults)
}

func (h *ResultHandler) getStudentResults(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "exam_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	studentID, err := parseUintParam(c, "student_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	// Students may only read their own results. Reviewer roles see any student.
	role := userRoleFromContext(c)
	if role != "admin" && role != "teacher" && userIDFromContext(c) != studentID {
		return utils.SendError(c, fiber.StatusForbidden, "results belong to another student")
	}

	results, err := h.service.GetStudentResults(c.Context(), examID, studentID)
	if err != nil {
		if errors.Is(err, service.ErrResultsNotReady) {
			return utils.SendError(c, fiber.StatusConflict, err.Error())
		}
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "results retrieved", results)
}
