package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/sage-go-api/internal/dto"
	"github.com/noah-isme/sage-go-api/internal/observability"
	"github.com/noah-isme/sage-go-api/internal/repository"
)

// ErrResultsNotReady indicates the student still has pending evaluations for
// the exam, so no results are released yet.
var ErrResultsNotReady = errors.New("results not yet released")

const defaultResultTTL = 5 * time.Minute

// ResultService assembles released results for students. Marks become
// visible only once every evaluation of the submission has left pending.
type ResultService interface {
	GetStudentResults(ctx context.Context, examID, studentID uint) (dto.ResultResponse, error)
}

type resultService struct {
	evaluations repository.EvaluationRepository
	redis       *redis.Client
	ttl         time.Duration
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewResultService constructs the result service. The redis client is
// optional; without it every read goes to the database.
func NewResultService(evaluations repository.EvaluationRepository, redisClient *redis.Client, ttl time.Duration, logger zerolog.Logger) ResultService {
	if ttl <= 0 {
		ttl = defaultResultTTL
	}

	return &resultService{
		evaluations: evaluations,
		redis:       redisClient,
		ttl:         ttl,
		logger:      logger.With().Str("component", "result_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/sage-go-api/internal/service/result"),
	}
}

func (s *resultService) GetStudentResults(ctx context.Context, examID, studentID uint) (dto.ResultResponse, error) {
	ctx, span := s.tracer.Start(ctx, "results.get", trace.WithAttributes(
		attribute.Int64("exam.id", int64(examID)),
		attribute.Int64("student.id", int64(studentID)),
	))
	defer span.End()

	if cached, ok := s.fromCache(ctx, examID, studentID); ok {
		span.SetAttributes(attribute.Bool("results.cache_hit", true))
		observability.ResultCacheHits().WithLabelValues("hit").Inc()
		return cached, nil
	}
	observability.ResultCacheHits().WithLabelValues("miss").Inc()

	pendingState := "pending"
	pending, err := s.evaluations.List(ctx, repository.EvaluationFilter{
		ExamID:        &examID,
		StudentID:     &studentID,
		ApprovalState: &pendingState,
	})
	if err != nil {
		span.RecordError(err)
		return dto.ResultResponse{}, err
	}
	if len(pending) > 0 {
		return dto.ResultResponse{}, ErrResultsNotReady
	}

	records, err := s.evaluations.ListReleasedByStudent(ctx, examID, studentID)
	if err != nil {
		span.RecordError(err)
		return dto.ResultResponse{}, err
	}

	response := dto.NewResultResponse(examID, studentID, records)
	s.toCache(ctx, examID, studentID, response)

	return response, nil
}

func (s *resultService) fromCache(ctx context.Context, examID, studentID uint) (dto.ResultResponse, bool) {
	if s.redis == nil {
		return dto.ResultResponse{}, false
	}

	payload, err := s.redis.Get(ctx, resultCacheKey(examID, studentID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("result cache read failed")
		}
		return dto.ResultResponse{}, false
	}

	var response dto.ResultResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		s.logger.Warn().Err(err).Msg("result cache entry corrupt, discarding")
		return dto.ResultResponse{}, false
	}

	return response, true
}

func (s *resultService) toCache(ctx context.Context, examID, studentID uint, response dto.ResultResponse) {
	if s.redis == nil {
		return
	}

	payload, err := json.Marshal(response)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode results for cache")
		return
	}

	if err := s.redis.Set(ctx, resultCacheKey(examID, studentID), payload, s.ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("result cache write failed")
	}
}

func resultCacheKey(examID, studentID uint) string {
	return fmt.Sprintf("sage:results:%d:%d", examID, studentID)
}
