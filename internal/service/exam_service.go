package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gorm.io/gorm"

	"github.com/noah-isme/sage-go-api/internal/dto"
	"github.com/noah-isme/sage-go-api/internal/models"
	"github.com/noah-isme/sage-go-api/internal/repository"
)

// ErrUnsupportedImportType indicates the uploaded question file is neither
// CSV nor JSON.
var ErrUnsupportedImportType = errors.New("unsupported question import format")

// questionImportSchema validates JSON question imports before any row is
// touched. CSV imports are validated row by row instead.
var questionImportSchema = jsonschema.MustCompileString("questions.schema.json", `{
	"type": "array",
	"minItems": 1,
	"items": {
		"type": "object",
		"required": ["text", "reference_answer", "max_marks"],
		"properties": {
			"text": {"type": "string", "minLength": 3},
			"reference_answer": {"type": "string", "minLength": 3},
			"max_marks": {"type": "number", "exclusiveMinimum": 0},
			"question_order": {"type": "integer", "minimum": 0}
		}
	}
}`)

// ExamService manages exams and their question banks.
type ExamService interface {
	Create(ctx context.Context, payload dto.ExamCreateRequest, creatorID uint) (dto.ExamResponse, error)
	Update(ctx context.Context, id uint, payload dto.ExamUpdateRequest) (dto.ExamResponse, error)
	Get(ctx context.Context, id uint) (dto.ExamResponse, error)
	List(ctx context.Context, filter dto.ExamListFilter) ([]dto.ExamResponse, int64, error)
	Delete(ctx context.Context, id uint) error
	ImportQuestions(ctx context.Context, examID uint, filename string, data []byte) (dto.ImportReport, error)
}

type examService struct {
	exams     repository.ExamRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewExamService constructs the exam service.
func NewExamService(exams repository.ExamRepository, validate *validator.Validate, logger zerolog.Logger) ExamService {
	return &examService{
		exams:     exams,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "exam_service").Logger(),
	}
}

func (s *examService) Create(ctx context.Context, payload dto.ExamCreateRequest, creatorID uint) (dto.ExamResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ExamResponse{}, err
	}

	exam := models.Exam{
		Title:       s.clean(payload.Title),
		Description: s.clean(payload.Description),
		Duration:    payload.Duration,
		CreatedBy:   creatorID,
	}

	for i, question := range payload.Questions {
		order := question.QuestionOrder
		if order == 0 {
			order = i + 1
		}
		exam.Questions = append(exam.Questions, models.Question{
			Text:            s.clean(question.Text),
			ReferenceAnswer: s.clean(question.ReferenceAnswer),
			MaxMarks:        question.MaxMarks,
			QuestionOrder:   order,
		})
	}

	if err := s.exams.Create(ctx, &exam); err != nil {
		return dto.ExamResponse{}, err
	}

	s.logger.Info().Uint("exam_id", exam.ID).Int("questions", len(exam.Questions)).Msg("exam created")

	return dto.NewExamResponse(exam), nil
}

func (s *examService) Update(ctx context.Context, id uint, payload dto.ExamUpdateRequest) (dto.ExamResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ExamResponse{}, err
	}

	exam, err := s.exams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExamResponse{}, ErrExamNotFound
		}
		return dto.ExamResponse{}, err
	}

	if payload.Title != nil {
		exam.Title = s.clean(*payload.Title)
	}
	if payload.Description != nil {
		exam.Description = s.clean(*payload.Description)
	}
	if payload.Duration != nil {
		exam.Duration = *payload.Duration
	}

	if err := s.exams.Update(ctx, &exam); err != nil {
		return dto.ExamResponse{}, err
	}

	return dto.NewExamResponse(exam), nil
}

func (s *examService) Get(ctx context.Context, id uint) (dto.ExamResponse, error) {
	exam, err := s.exams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExamResponse{}, ErrExamNotFound
		}
		return dto.ExamResponse{}, err
	}

	return dto.NewExamResponse(exam), nil
}

func (s *examService) List(ctx context.Context, filter dto.ExamListFilter) ([]dto.ExamResponse, int64, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, 0, err
	}

	exams, total, err := s.exams.List(ctx, repository.ExamFilter{
		Search:   filter.Search,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	})
	if err != nil {
		return nil, 0, err
	}

	return dto.NewExamResponseSlice(exams), total, nil
}

func (s *examService) Delete(ctx context.Context, id uint) error {
	if err := s.exams.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrExamNotFound
		}
		return err
	}

	return nil
}

// ImportQuestions bulk-loads questions from an uploaded CSV or JSON file.
// The format is detected from the content, not the filename. Invalid CSV
// rows are skipped and reported; an invalid JSON document is rejected whole.
func (s *examService) ImportQuestions(ctx context.Context, examID uint, filename string, data []byte) (dto.ImportReport, error) {
	if _, err := s.exams.GetByID(ctx, examID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ImportReport{}, ErrExamNotFound
		}
		return dto.ImportReport{}, err
	}

	mime := mimetype.Detect(data)

	var (
		questions []models.Question
		report    dto.ImportReport
		err       error
	)
	switch {
	case mime.Is("application/json") || strings.HasSuffix(strings.ToLower(filename), ".json"):
		questions, report, err = s.parseJSONQuestions(data)
	case mime.Is("text/csv") || mime.Is("text/plain") || strings.HasSuffix(strings.ToLower(filename), ".csv"):
		questions, report, err = s.parseCSVQuestions(data)
	default:
		return dto.ImportReport{}, fmt.Errorf("%w: %s", ErrUnsupportedImportType, mime.String())
	}
	if err != nil {
		return dto.ImportReport{}, err
	}

	for i := range questions {
		questions[i].ExamID = examID
	}

	if err := s.exams.CreateQuestions(ctx, questions); err != nil {
		return dto.ImportReport{}, err
	}

	s.logger.Info().
		Uint("exam_id", examID).
		Int("imported", report.Imported).
		Int("skipped", report.Skipped).
		Msg("questions imported")

	return report, nil
}

func (s *examService) parseJSONQuestions(data []byte) ([]models.Question, dto.ImportReport, error) {
	var decoded interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, dto.ImportReport{}, fmt.Errorf("invalid question JSON: %w", err)
	}
	if err := questionImportSchema.Validate(decoded); err != nil {
		return nil, dto.ImportReport{}, fmt.Errorf("question JSON rejected by schema: %w", err)
	}

	var rows []dto.QuestionCreateRequest
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, dto.ImportReport{}, err
	}

	questions := make([]models.Question, 0, len(rows))
	for i, row := range rows {
		order := row.QuestionOrder
		if order == 0 {
			order = i + 1
		}
		questions = append(questions, models.Question{
			Text:            s.clean(row.Text),
			ReferenceAnswer: s.clean(row.ReferenceAnswer),
			MaxMarks:        row.MaxMarks,
			QuestionOrder:   order,
		})
	}

	return questions, dto.ImportReport{Imported: len(questions)}, nil
}

// parseCSVQuestions expects a header of text,reference_answer,max_marks and
// an optional question_order column.
func (s *examService) parseCSVQuestions(data []byte) ([]models.Question, dto.ImportReport, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, dto.ImportReport{}, fmt.Errorf("invalid question CSV: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"text", "reference_answer", "max_marks"} {
		if _, ok := columns[required]; !ok {
			return nil, dto.ImportReport{}, fmt.Errorf("question CSV missing %q column", required)
		}
	}

	var (
		questions []models.Question
		report    dto.ImportReport
	)
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		question, err := s.csvRowToQuestion(row, columns, len(questions)+1)
		if err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		questions = append(questions, question)
		report.Imported++
	}

	if report.Imported == 0 {
		return nil, dto.ImportReport{}, fmt.Errorf("question CSV contained no valid rows")
	}

	return questions, report, nil
}

func (s *examService) csvRowToQuestion(row []string, columns map[string]int, fallbackOrder int) (models.Question, error) {
	field := func(name string) string {
		index, ok := columns[name]
		if !ok || index >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[index])
	}

	text := s.clean(field("text"))
	reference := s.clean(field("reference_answer"))
	if len(text) < 3 || len(reference) < 3 {
		return models.Question{}, errors.New("text and reference_answer must be at least 3 characters")
	}

	maxMarks, err := strconv.ParseFloat(field("max_marks"), 64)
	if err != nil || maxMarks <= 0 {
		return models.Question{}, errors.New("max_marks must be a positive number")
	}

	order := fallbackOrder
	if raw := field("question_order"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return models.Question{}, errors.New("question_order must be a non-negative integer")
		}
		order = parsed
	}

	return models.Question{
		Text:            text,
		ReferenceAnswer: reference,
		MaxMarks:        maxMarks,
		QuestionOrder:   order,
	}, nil
}

func (s *examService) clean(value string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(value))
}
