package dto

import (
	"time"

	"github.com/noah-isme/sage-go-api/internal/models"
)

// EvaluateRequest asks for a single answer to be scored.
type EvaluateRequest struct {
	QuestionID    uint   `json:"question_id" validate:"required,gt=0"`
	StudentID     uint   `json:"student_id" validate:"required,gt=0"`
	StudentAnswer string `json:"student_answer" validate:"required"`
}

// SubmitExamRequest carries a full exam submission for one student.
type SubmitExamRequest struct {
	ExamID    uint                `json:"exam_id" validate:"required,gt=0"`
	StudentID uint                `json:"student_id" validate:"required,gt=0"`
	Answers   []SubmittedAnswer   `json:"answers" validate:"required,min=1,dive"`
}

// SubmittedAnswer pairs a question with the student's response text.
type SubmittedAnswer struct {
	QuestionID uint   `json:"question_id" validate:"required,gt=0"`
	Answer     string `json:"answer"`
}

// EvaluationFilter describes query string filters for listing evaluations.
type EvaluationFilter struct {
	ExamID        *uint   `query:"exam_id"`
	QuestionID    *uint   `query:"question_id"`
	StudentID     *uint   `query:"student_id"`
	Status        *string `query:"status" validate:"omitempty,oneof=evaluated filtered failed"`
	ApprovalState *string `query:"approval_state" validate:"omitempty,oneof=pending approved rejected"`
}

// EvaluationResponse is returned to API clients when viewing evaluations.
type EvaluationResponse struct {
	ID            uint                   `json:"id"`
	ExamID        uint                   `json:"exam_id"`
	QuestionID    uint                   `json:"question_id"`
	StudentID     uint                   `json:"student_id"`
	StudentAnswer string                 `json:"student_answer"`
	MaxMarks      float64                `json:"max_marks"`
	RawSimilarity *float64               `json:"raw_similarity"`
	Filtered      bool                   `json:"filtered"`
	OracleScore   *float64               `json:"oracle_score"`
	Explanation   string                 `json:"explanation"`
	ComputedMarks *float64               `json:"computed_marks"`
	Status        string                 `json:"status"`
	FailureKind   string                 `json:"failure_kind,omitempty"`
	Band          string                 `json:"band,omitempty"`
	ApprovalState string                 `json:"approval_state"`
	ApprovedBy    *uint                  `json:"approved_by"`
	ApprovedAt    *time.Time             `json:"approved_at"`
	FinalMarks    *float64               `json:"final_marks"`
	RejectReason  string                 `json:"reject_reason,omitempty"`
	Details       map[string]interface{} `json:"details,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	Question      QuestionLite           `json:"question"`
	Student       StudentLite            `json:"student"`
}

// QuestionLite summarizes a question in evaluation responses.
type QuestionLite struct {
	ID       uint    `json:"id"`
	Text     string  `json:"text"`
	MaxMarks float64 `json:"max_marks"`
}

// NewEvaluationResponse converts an EvaluationRecord model into a DTO.
func NewEvaluationResponse(model models.EvaluationRecord) EvaluationResponse {
	response := EvaluationResponse{
		ID:            model.ID,
		ExamID:        model.ExamID,
		QuestionID:    model.QuestionID,
		StudentID:     model.StudentID,
		StudentAnswer: model.StudentAnswer,
		MaxMarks:      model.MaxMarks,
		RawSimilarity: model.RawSimilarity,
		Filtered:      model.Filtered,
		OracleScore:   model.OracleScore,
		Explanation:   model.Explanation,
		ComputedMarks: model.ComputedMarks,
		Status:        model.Status,
		FailureKind:   model.FailureKind,
		Band:          model.Band,
		ApprovalState: model.ApprovalState,
		ApprovedBy:    model.ApprovedBy,
		ApprovedAt:    model.ApprovedAt,
		FinalMarks:    model.FinalMarks,
		RejectReason:  model.RejectReason,
		Details:       model.Details,
		CreatedAt:     model.CreatedAt,
	}

	if model.Question.ID != 0 {
		response.Question = QuestionLite{
			ID:       model.Question.ID,
			Text:     model.Question.Text,
			MaxMarks: model.Question.MaxMarks,
		}
	}

	if model.Student.ID != 0 {
		response.Student = StudentLite{
			ID:    model.Student.ID,
			Name:  model.Student.Name,
			Email: model.Student.Email,
		}
	}

	return response
}

// EvaluationReceipt acknowledges a processed answer without exposing how it
// scored. Students receive receipts; marks and explanations stay hidden until
// a reviewer approves the record and the result surface releases them.
type EvaluationReceipt struct {
	EvaluationID  uint   `json:"evaluation_id"`
	ExamID        uint   `json:"exam_id"`
	QuestionID    uint   `json:"question_id"`
	ApprovalState string `json:"approval_state"`
}

// NewEvaluationReceipt strips an evaluation down to its status marker.
func NewEvaluationReceipt(response EvaluationResponse) EvaluationReceipt {
	return EvaluationReceipt{
		EvaluationID:  response.ID,
		ExamID:        response.ExamID,
		QuestionID:    response.QuestionID,
		ApprovalState: response.ApprovalState,
	}
}

// NewEvaluationReceiptSlice converts evaluation DTOs into receipts.
func NewEvaluationReceiptSlice(responses []EvaluationResponse) []EvaluationReceipt {
	receipts := make([]EvaluationReceipt, 0, len(responses))
	for _, response := range responses {
		receipts = append(receipts, NewEvaluationReceipt(response))
	}

	return receipts
}

// NewEvaluationResponseSlice converts evaluation models into DTOs.
func NewEvaluationResponseSlice(records []models.EvaluationRecord) []EvaluationResponse {
	responses := make([]EvaluationResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, NewEvaluationResponse(record))
	}

	return responses
}
