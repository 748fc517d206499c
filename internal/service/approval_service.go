package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/sage-go-api/internal/dto"
	"github.com/noah-isme/sage-go-api/internal/models"
	"github.com/noah-isme/sage-go-api/internal/observability"
	"github.com/noah-isme/sage-go-api/internal/repository"
)

// ErrEvaluationNotFound indicates the evaluation record was not located.
var ErrEvaluationNotFound = errors.New("evaluation not found")

// ErrInvalidTransition indicates the record is not pending, so it cannot be
// approved or rejected again.
var ErrInvalidTransition = errors.New("evaluation is not pending")

// ErrInvalidOverride indicates an override outside [0, max marks].
var ErrInvalidOverride = errors.New("override marks outside the valid range")

// ErrNoMarksToApprove indicates a failed evaluation was approved without an
// override, so there is no score to finalize.
var ErrNoMarksToApprove = errors.New("evaluation has no computed marks")

// ApprovalActor identifies the reviewer performing an approval action.
type ApprovalActor struct {
	ID   uint
	Role string
}

// ApprovalService finalizes evaluation records. Approve and Reject are
// terminal: once a record leaves pending it never changes again.
type ApprovalService interface {
	Approve(ctx context.Context, id uint, payload dto.ApproveRequest, actor ApprovalActor) (dto.EvaluationResponse, error)
	Reject(ctx context.Context, id uint, payload dto.RejectRequest, actor ApprovalActor) (dto.EvaluationResponse, error)
	BulkApprove(ctx context.Context, payload dto.BulkApproveRequest, actor ApprovalActor) (dto.BulkApprovalResponse, error)
	ListPending(ctx context.Context, examID uint) ([]dto.EvaluationResponse, error)
}

type approvalService struct {
	evaluations repository.EvaluationRepository
	redis       *redis.Client
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewApprovalService constructs the approval service. The redis client is
// optional; when present, approvals invalidate the cached student results.
func NewApprovalService(evaluations repository.EvaluationRepository, redisClient *redis.Client, validate *validator.Validate, logger zerolog.Logger) ApprovalService {
	return &approvalService{
		evaluations: evaluations,
		redis:       redisClient,
		validator:   validate,
		logger:      logger.With().Str("component", "approval_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/sage-go-api/internal/service/approval"),
	}
}

func (s *approvalService) Approve(ctx context.Context, id uint, payload dto.ApproveRequest, actor ApprovalActor) (dto.EvaluationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "approval.approve", trace.WithAttributes(
		attribute.Int64("evaluation.id", int64(id)),
		attribute.Int64("approval.actor_id", int64(actor.ID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.EvaluationResponse{}, err
	}

	record, err := s.evaluations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationResponse{}, ErrEvaluationNotFound
		}
		return dto.EvaluationResponse{}, err
	}

	if !record.IsPending() {
		span.SetStatus(codes.Error, "not_pending")
		return dto.EvaluationResponse{}, ErrInvalidTransition
	}

	finalMarks, err := resolveFinalMarks(record, payload.OverrideMarks)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid_marks")
		return dto.EvaluationResponse{}, err
	}

	approved, err := s.evaluations.TransitionToApproved(ctx, id, actor.ID, finalMarks)
	if err != nil {
		// A concurrent reviewer won the race between our read and the
		// guarded update.
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationResponse{}, ErrInvalidTransition
		}
		span.RecordError(err)
		return dto.EvaluationResponse{}, err
	}

	observability.ApprovalsTotal().WithLabelValues("approved").Inc()
	s.invalidateResults(ctx, approved.ExamID, approved.StudentID)
	s.logger.Info().
		Uint("evaluation_id", approved.ID).
		Uint("approver_id", actor.ID).
		Float64("final_marks", finalMarks).
		Bool("overridden", payload.OverrideMarks != nil).
		Msg("evaluation approved")

	return dto.NewEvaluationResponse(approved), nil
}

func (s *approvalService) Reject(ctx context.Context, id uint, payload dto.RejectRequest, actor ApprovalActor) (dto.EvaluationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "approval.reject", trace.WithAttributes(
		attribute.Int64("evaluation.id", int64(id)),
		attribute.Int64("approval.actor_id", int64(actor.ID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.EvaluationResponse{}, err
	}

	record, err := s.evaluations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationResponse{}, ErrEvaluationNotFound
		}
		return dto.EvaluationResponse{}, err
	}

	if !record.IsPending() {
		span.SetStatus(codes.Error, "not_pending")
		return dto.EvaluationResponse{}, ErrInvalidTransition
	}

	rejected, err := s.evaluations.TransitionToRejected(ctx, id, actor.ID, payload.Reason)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationResponse{}, ErrInvalidTransition
		}
		span.RecordError(err)
		return dto.EvaluationResponse{}, err
	}

	observability.ApprovalsTotal().WithLabelValues("rejected").Inc()
	s.invalidateResults(ctx, rejected.ExamID, rejected.StudentID)
	s.logger.Info().
		Uint("evaluation_id", rejected.ID).
		Uint("approver_id", actor.ID).
		Str("reason", payload.Reason).
		Msg("evaluation rejected")

	return dto.NewEvaluationResponse(rejected), nil
}

// BulkApprove approves each record independently: one bad record reports its
// error in the outcome list and the rest still go through.
func (s *approvalService) BulkApprove(ctx context.Context, payload dto.BulkApproveRequest, actor ApprovalActor) (dto.BulkApprovalResponse, error) {
	ctx, span := s.tracer.Start(ctx, "approval.bulk_approve", trace.WithAttributes(
		attribute.Int("approval.batch_size", len(payload.EvaluationIDs)),
		attribute.Int64("approval.actor_id", int64(actor.ID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.BulkApprovalResponse{}, err
	}

	response := dto.BulkApprovalResponse{
		Outcomes: make([]dto.BulkApprovalOutcome, 0, len(payload.EvaluationIDs)),
	}

	for _, id := range payload.EvaluationIDs {
		approved, err := s.Approve(ctx, id, dto.ApproveRequest{}, actor)
		if err != nil {
			response.Failed++
			response.Outcomes = append(response.Outcomes, dto.BulkApprovalOutcome{
				EvaluationID: id,
				Error:        err.Error(),
			})
			continue
		}

		response.Approved++
		response.Outcomes = append(response.Outcomes, dto.BulkApprovalOutcome{
			EvaluationID: id,
			Approved:     true,
			FinalMarks:   approved.FinalMarks,
		})
	}

	span.SetAttributes(
		attribute.Int("approval.approved", response.Approved),
		attribute.Int("approval.failed", response.Failed),
	)

	return response, nil
}

func (s *approvalService) ListPending(ctx context.Context, examID uint) ([]dto.EvaluationResponse, error) {
	pending := models.ApprovalStatePending
	filter := repository.EvaluationFilter{ApprovalState: &pending}
	if examID != 0 {
		filter.ExamID = &examID
	}

	records, err := s.evaluations.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return dto.NewEvaluationResponseSlice(records), nil
}

func (s *approvalService) invalidateResults(ctx context.Context, examID, studentID uint) {
	if s.redis == nil {
		return
	}

	if err := s.redis.Del(ctx, resultCacheKey(examID, studentID)).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate cached results")
	}
}

// resolveFinalMarks picks the marks an approval finalizes: the override when
// given, otherwise the computed marks. Overrides must stay within
// [0, max marks]; failed evaluations can only be approved with an override.
func resolveFinalMarks(record models.EvaluationRecord, override *float64) (float64, error) {
	if override != nil {
		if *override < 0 || *override > record.MaxMarks {
			return 0, ErrInvalidOverride
		}
		return *override, nil
	}

	if record.ComputedMarks == nil {
		return 0, ErrNoMarksToApprove
	}

	return *record.ComputedMarks, nil
}
