package dto

import "github.com/noah-isme/sage-go-api/internal/models"

// ResultItem is one released question result. Marks and explanation are
// present only for approved records; a rejected record keeps its place in the
// list as a status marker so the max_marks total stays honest.
type ResultItem struct {
	QuestionID    uint     `json:"question_id"`
	QuestionText  string   `json:"question_text"`
	MaxMarks      float64  `json:"max_marks"`
	ApprovalState string   `json:"approval_state"`
	FinalMarks    *float64 `json:"final_marks,omitempty"`
	Band          string   `json:"band,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
}

// ResultResponse aggregates a student's released marks for one exam.
type ResultResponse struct {
	ExamID     uint         `json:"exam_id"`
	StudentID  uint         `json:"student_id"`
	TotalMarks float64      `json:"total_marks"`
	MaxMarks   float64      `json:"max_marks"`
	Percentage float64      `json:"percentage"`
	Items      []ResultItem `json:"items"`
}

// NewResultResponse builds the released view from terminal records. Approved
// records contribute marks; rejected records appear with their state only.
func NewResultResponse(examID, studentID uint, records []models.EvaluationRecord) ResultResponse {
	response := ResultResponse{
		ExamID:    examID,
		StudentID: studentID,
		Items:     make([]ResultItem, 0, len(records)),
	}

	for _, record := range records {
		item := ResultItem{
			QuestionID:    record.QuestionID,
			MaxMarks:      record.MaxMarks,
			ApprovalState: record.ApprovalState,
		}
		if record.Question.ID != 0 {
			item.QuestionText = record.Question.Text
		}

		if record.ApprovalState == models.ApprovalStateApproved {
			final := 0.0
			if record.FinalMarks != nil {
				final = *record.FinalMarks
			}
			item.FinalMarks = &final
			item.Band = record.Band
			item.Explanation = record.Explanation
			response.TotalMarks += final
		}

		response.Items = append(response.Items, item)
		response.MaxMarks += record.MaxMarks
	}

	if response.MaxMarks > 0 {
		response.Percentage = response.TotalMarks / response.MaxMarks * 100
	}

	return response
}
