package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
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
	"github.com/noah-isme/sage-go-api/internal/scoring"
	"github.com/noah-isme/sage-go-api/pkg/ai"
	"github.com/noah-isme/sage-go-api/pkg/similarity"
)

// Number of answers scored concurrently during a full exam submission. The
// bottleneck is the model server, so this stays deliberately small.
const submitWorkers = 4

// ErrQuestionNotFound indicates the referenced question does not exist.
var ErrQuestionNotFound = errors.New("question not found")

// ErrStudentNotFound indicates the referenced student does not exist.
var ErrStudentNotFound = errors.New("student not found")

// ErrExamNotFound indicates the referenced exam does not exist.
var ErrExamNotFound = errors.New("exam not found")

// ErrUnknownQuestion indicates a submitted answer references a question that
// does not belong to the exam.
var ErrUnknownQuestion = errors.New("answer references a question outside the exam")

const filteredExplanation = "Answer is not relevant enough to the question"

// EvaluationService orchestrates the scoring pipeline: relevance filter,
// strategy dispatch, record persistence and lifecycle events.
type EvaluationService interface {
	Evaluate(ctx context.Context, payload dto.EvaluateRequest) (dto.EvaluationResponse, error)
	SubmitExam(ctx context.Context, payload dto.SubmitExamRequest) ([]dto.EvaluationResponse, error)
	Get(ctx context.Context, id uint) (dto.EvaluationResponse, error)
	List(ctx context.Context, filter dto.EvaluationFilter) ([]dto.EvaluationResponse, error)
}

type evaluationService struct {
	evaluations repository.EvaluationRepository
	exams       repository.ExamRepository
	students    repository.StudentRepository
	settings    SettingsService
	oracle      similarity.Oracle
	explainer   ai.Explainer
	nats        *nats.Conn
	natsSubject string
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
}

type evaluationEvent struct {
	EvaluationID uint      `json:"evaluation_id"`
	ExamID       uint      `json:"exam_id"`
	QuestionID   uint      `json:"question_id"`
	StudentID    uint      `json:"student_id"`
	Status       string    `json:"status"`
	Filtered     bool      `json:"filtered"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NewEvaluationService constructs the orchestrator.
func NewEvaluationService(
	evaluations repository.EvaluationRepository,
	exams repository.ExamRepository,
	students repository.StudentRepository,
	settings SettingsService,
	oracle similarity.Oracle,
	explainer ai.Explainer,
	natsConn *nats.Conn,
	natsSubject string,
	validate *validator.Validate,
	logger zerolog.Logger,
) EvaluationService {
	return &evaluationService{
		evaluations: evaluations,
		exams:       exams,
		students:    students,
		settings:    settings,
		oracle:      oracle,
		explainer:   explainer,
		nats:        natsConn,
		natsSubject: natsSubject,
		validator:   validate,
		logger:      logger.With().Str("component", "evaluation_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/sage-go-api/internal/service/evaluation"),
	}
}

func (s *evaluationService) Evaluate(ctx context.Context, payload dto.EvaluateRequest) (dto.EvaluationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.EvaluationResponse{}, err
	}

	question, err := s.exams.GetQuestion(ctx, payload.QuestionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationResponse{}, ErrQuestionNotFound
		}
		return dto.EvaluationResponse{}, err
	}

	if _, err := s.students.GetByID(ctx, payload.StudentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationResponse{}, ErrStudentNotFound
		}
		return dto.EvaluationResponse{}, err
	}

	record, err := s.evaluateAnswer(ctx, question, payload.StudentID, payload.StudentAnswer)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}

	return dto.NewEvaluationResponse(record), nil
}

// SubmitExam scores every answer of one student's submission. Answers run
// through a small worker pool; one failed answer does not abort the rest,
// it simply yields a failed record like in the single-answer path.
func (s *evaluationService) SubmitExam(ctx context.Context, payload dto.SubmitExamRequest) ([]dto.EvaluationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, err
	}

	exam, err := s.exams.GetByID(ctx, payload.ExamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}

	if _, err := s.students.GetByID(ctx, payload.StudentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}

	questions := make(map[uint]models.Question, len(exam.Questions))
	for _, question := range exam.Questions {
		questions[question.ID] = question
	}
	for _, answer := range payload.Answers {
		if _, ok := questions[answer.QuestionID]; !ok {
			return nil, ErrUnknownQuestion
		}
	}

	ctx, span := s.tracer.Start(ctx, "evaluation.submit_exam", trace.WithAttributes(
		attribute.Int64("exam.id", int64(payload.ExamID)),
		attribute.Int64("student.id", int64(payload.StudentID)),
		attribute.Int("exam.answers", len(payload.Answers)),
	))
	defer span.End()

	records := make([]models.EvaluationRecord, len(payload.Answers))
	errs := make([]error, len(payload.Answers))

	var wg sync.WaitGroup
	sem := make(chan struct{}, submitWorkers)
	for i, answer := range payload.Answers {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, answer dto.SubmittedAnswer) {
			defer wg.Done()
			defer func() { <-sem }()
			records[i], errs[i] = s.evaluateAnswer(ctx, questions[answer.QuestionID], payload.StudentID, answer.Answer)
		}(i, answer)
	}
	wg.Wait()

	responses := make([]dto.EvaluationResponse, 0, len(records))
	for i, record := range records {
		if errs[i] != nil {
			span.RecordError(errs[i])
			span.SetStatus(codes.Error, "answer_evaluation_failed")
			return nil, errs[i]
		}
		responses = append(responses, dto.NewEvaluationResponse(record))
	}

	return responses, nil
}

func (s *evaluationService) Get(ctx context.Context, id uint) (dto.EvaluationResponse, error) {
	record, err := s.evaluations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationResponse{}, ErrEvaluationNotFound
		}
		return dto.EvaluationResponse{}, err
	}

	return dto.NewEvaluationResponse(record), nil
}

func (s *evaluationService) List(ctx context.Context, filter dto.EvaluationFilter) ([]dto.EvaluationResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	records, err := s.evaluations.List(ctx, repository.EvaluationFilter{
		ExamID:        filter.ExamID,
		QuestionID:    filter.QuestionID,
		StudentID:     filter.StudentID,
		Status:        filter.Status,
		ApprovalState: filter.ApprovalState,
	})
	if err != nil {
		return nil, err
	}

	return dto.NewEvaluationResponseSlice(records), nil
}

// evaluateAnswer runs the pipeline for one answer and persists the outcome.
// Config is snapshotted once at the top; a settings update mid-run cannot
// produce a record scored under mixed parameters. Oracle failures come back
// as a persisted failed record, not as an error: only infrastructure
// problems (persistence, lookups) surface as errors.
func (s *evaluationService) evaluateAnswer(ctx context.Context, question models.Question, studentID uint, studentAnswer string) (models.EvaluationRecord, error) {
	cfg := s.settings.Snapshot()

	ctx, span := s.tracer.Start(ctx, "evaluation.evaluate", trace.WithAttributes(
		attribute.Int64("question.id", int64(question.ID)),
		attribute.Int64("student.id", int64(studentID)),
		attribute.String("evaluator.type", string(cfg.EvaluatorType)),
	))
	defer span.End()

	started := time.Now()
	record := models.EvaluationRecord{
		ExamID:        question.ExamID,
		QuestionID:    question.ID,
		StudentID:     studentID,
		StudentAnswer: studentAnswer,
		MaxMarks:      question.MaxMarks,
		ApprovalState: models.ApprovalStatePending,
	}

	filter := scoring.NewPrimaryFilter(s.oracle)
	passed, raw, err := filter.Apply(ctx, studentAnswer, question.ReferenceAnswer, cfg.SimilarityThreshold)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "similarity_failed")
		s.markFailed(&record, err)
	} else {
		record.RawSimilarity = &raw

		if !passed {
			zero := 0.0
			record.Filtered = true
			record.ComputedMarks = &zero
			record.Status = models.EvaluationStatusFiltered
			record.Explanation = filteredExplanation
			record.Band = scoring.Band(cfg, 0)
			span.SetAttributes(attribute.Bool("evaluation.filtered", true))
		} else {
			strategy := scoring.SelectStrategy(cfg, s.oracle, s.explainer)
			outcome, err := strategy.Score(ctx, scoring.Input{
				Question:        question.Text,
				StudentAnswer:   studentAnswer,
				ReferenceAnswer: question.ReferenceAnswer,
				MaxMarks:        question.MaxMarks,
				Config:          cfg,
			})
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "scoring_failed")
				s.markFailed(&record, err)
			} else {
				marks := outcome.ComputedMarks
				record.ComputedMarks = &marks
				record.OracleScore = outcome.OracleScore
				record.Explanation = outcome.Explanation
				record.Status = models.EvaluationStatusEvaluated
				record.Details = outcome.Details
				if question.MaxMarks > 0 {
					record.Band = scoring.Band(cfg, marks/question.MaxMarks)
				}
			}
		}
	}

	if err := s.evaluations.Create(ctx, &record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist_failed")
		return models.EvaluationRecord{}, err
	}

	observability.EvaluationsTotal().WithLabelValues(record.Status, string(cfg.EvaluatorType)).Inc()
	observability.EvaluationDuration().WithLabelValues(string(cfg.EvaluatorType)).Observe(time.Since(started).Seconds())

	s.publishEvent(record)
	s.logger.Info().
		Uint("evaluation_id", record.ID).
		Uint("question_id", record.QuestionID).
		Uint("student_id", record.StudentID).
		Str("status", record.Status).
		Bool("filtered", record.Filtered).
		Msg("answer evaluated")

	span.SetAttributes(attribute.String("evaluation.status", record.Status))

	return record, nil
}

// markFailed stamps the failure kind onto the record. Failed records carry no
// computed marks and the reviewer sees the raw error in the explanation.
func (s *evaluationService) markFailed(record *models.EvaluationRecord, err error) {
	record.Status = models.EvaluationStatusFailed
	record.Explanation = "Evaluation failed: " + err.Error()

	switch {
	case errors.Is(err, ai.ErrMalformedResponse):
		record.FailureKind = models.FailureKindMalformedResponse
	default:
		record.FailureKind = models.FailureKindOracleUnavailable
	}
}

func (s *evaluationService) publishEvent(record models.EvaluationRecord) {
	if s.nats == nil || strings.TrimSpace(s.natsSubject) == "" {
		return
	}

	payload, err := json.Marshal(evaluationEvent{
		EvaluationID: record.ID,
		ExamID:       record.ExamID,
		QuestionID:   record.QuestionID,
		StudentID:    record.StudentID,
		Status:       record.Status,
		Filtered:     record.Filtered,
		OccurredAt:   time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode evaluation event")
		return
	}

	suffix := ".completed"
	if record.IsFailed() {
		suffix = ".failed"
	}
	if err := s.nats.Publish(s.natsSubject+suffix, payload); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish evaluation event")
	}
}
