package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sage-go-api/internal/dto"
	"github.com/noah-isme/sage-go-api/internal/service"
	"github.com/noah-isme/sage-go-api/internal/utils"
)

// EvaluationHandler exposes the scoring pipeline endpoints.
type EvaluationHandler struct {
	service service.EvaluationService
	logger  zerolog.Logger
}

// NewEvaluationHandler builds an evaluation handler instance.
func NewEvaluationHandler(service service.EvaluationService, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		service: service,
		logger:  logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group. Students may
// submit answers for themselves; raw evaluations carry unreleased scores, so
// reading them is a reviewer operation.
func (h *EvaluationHandler) Register(router fiber.Router, reviewerOnly fiber.Handler) {
	router.Post("/evaluate", h.evaluate)
	router.Post("/submit", h.submitExam)
	router.Get("", reviewerOnly, h.list)
	router.Get("/:id", reviewerOnly, h.get)
}

func (h *EvaluationHandler) evaluate(c *fiber.Ctx) error {
	var payload dto.EvaluateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if !isReviewer(c) && payload.StudentID != userIDFromContext(c) {
		return utils.SendError(c, fiber.StatusForbidden, "cannot evaluate answers for another student")
	}

	evaluation, err := h.service.Evaluate(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	// Owners get a receipt only; marks stay hidden until approval.
	if !isReviewer(c) {
		return utils.SendSuccess(c, "answer received", dto.NewEvaluationReceipt(evaluation))
	}

	return utils.SendSuccess(c, "answer evaluated", evaluation)
}

func (h *EvaluationHandler) submitExam(c *fiber.Ctx) error {
	var payload dto.SubmitExamRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if !isReviewer(c) && payload.StudentID != userIDFromContext(c) {
		return utils.SendError(c, fiber.StatusForbidden, "cannot submit an exam for another student")
	}

	evaluations, err := h.service.SubmitExam(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	if !isReviewer(c) {
		return utils.SendSuccess(c, "exam submission received", dto.NewEvaluationReceiptSlice(evaluations))
	}

	return utils.SendSuccess(c, "exam submission evaluated", evaluations)
}

func (h *EvaluationHandler) list(c *fiber.Ctx) error {
	filter := dto.EvaluationFilter{}
	if examID, err := parseQueryUint(c, "exam_id"); err == nil && examID != nil {
		filter.ExamID = examID
	}
	if questionID, err := parseQueryUint(c, "question_id"); err == nil && questionID != nil {
		filter.QuestionID = questionID
	}
	if studentID, err := parseQueryUint(c, "student_id"); err == nil && studentID != nil {
		filter.StudentID = studentID
	}
	if status := c.Query("status"); status != "" {
		filter.Status = &status
	}
	if state := c.Query("approval_state"); state != "" {
		filter.ApprovalState = &state
	}

	evaluations, err := h.service.List(c.Context(), filter)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "evaluations retrieved", evaluations)
}

func (h *EvaluationHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	evaluation, err := h.service.Get(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "evaluation retrieved", evaluation)
}

func (h *EvaluationHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrQuestionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "question not found")
	case errors.Is(err, service.ErrStudentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "student not found")
	case errors.Is(err, service.ErrExamNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "exam not found")
	case errors.Is(err, service.ErrEvaluationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "evaluation not found")
	case errors.Is(err, service.ErrUnknownQuestion):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
