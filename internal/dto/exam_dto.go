package dto

import (
	"time"

	"github.com/noah-isme/sage-go-api/internal/models"
)

// ExamCreateRequest describes the payload for creating a new exam.
type ExamCreateRequest struct {
	Title       string                  `json:"title" validate:"required,min=3"`
	Description string                  `json:"description" validate:"omitempty,max=2000"`
	Duration    int                     `json:"duration" validate:"omitempty,gt=0"`
	Questions   []QuestionCreateRequest `json:"questions" validate:"omitempty,dive"`
}

// ExamUpdateRequest describes the payload for updating exam metadata.
type ExamUpdateRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=3"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Duration    *int    `json:"duration" validate:"omitempty,gt=0"`
}

// QuestionCreateRequest describes one question in an exam payload.
type QuestionCreateRequest struct {
	Text            string  `json:"text" validate:"required,min=3"`
	ReferenceAnswer string  `json:"reference_answer" validate:"required,min=3"`
	MaxMarks        float64 `json:"max_marks" validate:"required,gt=0"`
	QuestionOrder   int     `json:"question_order" validate:"omitempty,gte=0"`
}

// ExamListFilter describes query string filters for exam listings.
type ExamListFilter struct {
	Search   string `query:"search"`
	Page     int    `query:"page" validate:"omitempty,gte=1"`
	PageSize int    `query:"page_size" validate:"omitempty,gte=1,lte=100"`
}

// ExamResponse is the serialized representation returned to API clients.
type ExamResponse struct {
	ID          uint               `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Duration    int                `json:"duration"`
	CreatedBy   uint               `json:"created_by"`
	Questions   []QuestionResponse `json:"questions,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// QuestionResponse serializes a question, including its reference answer.
// Only admin surfaces should emit it; student surfaces use QuestionLite.
type QuestionResponse struct {
	ID              uint    `json:"id"`
	ExamID          uint    `json:"exam_id"`
	Text            string  `json:"text"`
	ReferenceAnswer string  `json:"reference_answer"`
	MaxMarks        float64 `json:"max_marks"`
	QuestionOrder   int     `json:"question_order"`
}

// ImportReport summarizes a bulk question import.
type ImportReport struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// NewExamResponse converts a model into a DTO.
func NewExamResponse(model models.Exam) ExamResponse {
	response := ExamResponse{
		ID:          model.ID,
		Title:       model.Title,
		Description: model.Description,
		Duration:    model.Duration,
		CreatedBy:   model.CreatedBy,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}

	if len(model.Questions) > 0 {
		questions := make([]QuestionResponse, 0, len(model.Questions))
		for _, question := range model.Questions {
			questions = append(questions, NewQuestionResponse(question))
		}
		response.Questions = questions
	}

	return response
}

// NewQuestionResponse converts a question model into a DTO.
func NewQuestionResponse(model models.Question) QuestionResponse {
	return QuestionResponse{
		ID:              model.ID,
		ExamID:          model.ExamID,
		Text:            model.Text,
		ReferenceAnswer: model.ReferenceAnswer,
		MaxMarks:        model.MaxMarks,
		QuestionOrder:   model.QuestionOrder,
	}
}

// NewExamResponseSlice converts a slice of models into DTOs.
func NewExamResponseSlice(exams []models.Exam) []ExamResponse {
	responses := make([]ExamResponse, 0, len(exams))
	for _, exam := range exams {
		responses = append(responses, NewExamResponse(exam))
	}

	return responses
}
