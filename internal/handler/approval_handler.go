package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sage-go-api/internal/dto"
	"github.com/noah-isme/sage-go-api/internal/service"
	"github.com/noah-isme/sage-go-api/internal/utils"
)

// ApprovalHandler exposes the reviewer approval workflow.
type ApprovalHandler struct {
	service service.ApprovalService
	logger  zerolog.Logger
}

// NewApprovalHandler builds an approval handler instance.
func NewApprovalHandler(service service.ApprovalService, logger zerolog.Logger) *ApprovalHandler {
	return &ApprovalHandler{
		service: service,
		logger:  logger.With().Str("component", "approval_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *ApprovalHandler) Register(router fiber.Router) {
	router.Get("/pending", h.listPending)
	router.Post("/bulk-approve", h.bulkApprove)
	router.Post("/:id/approve", h.approve)
	router.Post("/:id/reject", h.reject)
}

func (h *ApprovalHandler) listPending(c *fiber.Ctx) error {
	var examID uint
	if parsed, err := parseQueryUint(c, "exam_id"); err == nil && parsed != nil {
		examID = *parsed
	}

	pending, err := h.service.ListPending(c.Context(), examID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "pending evaluations retrieved", pending)
}

func (h *ApprovalHandler) approve(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	payload := dto.ApproveRequest{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	evaluation, err := h.service.Approve(c.Context(), id, payload, approvalActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "evaluation approved", evaluation)
}

func (h *ApprovalHandler) reject(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.RejectRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	evaluation, err := h.service.Reject(c.Context(), id, payload, approvalActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "evaluation rejected", evaluation)
}

func (h *ApprovalHandler) bulkApprove(c *fiber.Ctx) error {
	var payload dto.BulkApproveRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	// Bulk approval reports per-record failures in the payload, so only
	// request-level problems surface as errors here.
	result, err := h.service.BulkApprove(c.Context(), payload, approvalActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "bulk approval processed", result)
}

func (h *ApprovalHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrEvaluationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "evaluation not found")
	case errors.Is(err, service.ErrInvalidTransition):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidOverride), errors.Is(err, service.ErrNoMarksToApprove):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
