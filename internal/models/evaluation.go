package models

import (
	"time"

	"gorm.io/datatypes"
)

// Approval states for an evaluation record. APPROVED and REJECTED are
// terminal; re-evaluation always creates a fresh record.
const (
	ApprovalStatePending  = "pending"
	ApprovalStateApproved = "approved"
	ApprovalStateRejected = "rejected"
)

// Evaluation statuses. A failed evaluation carries no computed marks and
// never reaches the approval auto-pathways.
const (
	EvaluationStatusEvaluated = "evaluated"
	EvaluationStatusFiltered  = "filtered"
	EvaluationStatusFailed    = "failed"
)

// Failure kinds recorded on failed evaluations, so operators can tell an
// unreachable model server apart from a response-format regression.
const (
	FailureKindOracleUnavailable = "oracle_unavailable"
	FailureKindMalformedResponse = "malformed_response"
)

// EvaluationRecord captures one scoring run for one (question, student
// answer) pair. The orchestrator creates it exactly once and never touches
// it again; only the approval workflow mutates it afterwards.
type EvaluationRecord struct {
	ID            uint     `gorm:"primaryKey" json:"id"`
	QuestionID    uint     `gorm:"not null;index" json:"question_id"`
	StudentID     uint     `gorm:"not null;index" json:"student_id"`
	ExamID        uint     `gorm:"not null;index" json:"exam_id"`
	StudentAnswer string   `gorm:"type:text" json:"student_answer"`
	MaxMarks      float64  `gorm:"not null" json:"max_marks"`
	RawSimilarity *float64 `json:"raw_similarity"`
	Filtered      bool     `gorm:"not null;default:false" json:"filtered"`
	OracleScore   *float64 `json:"oracle_score"`
	Explanation   string   `gorm:"type:text" json:"explanation"`
	ComputedMarks *float64 `json:"computed_marks"`
	Status        string   `gorm:"size:32;not null;index" json:"status"`
	FailureKind   string   `gorm:"size:32" json:"failure_kind,omitempty"`
	Band          string   `gorm:"size:16" json:"band,omitempty"`

	ApprovalState string     `gorm:"size:16;not null;default:pending;index" json:"approval_state"`
	ApprovedBy    *uint      `json:"approved_by"`
	ApprovedAt    *time.Time `json:"approved_at"`
	FinalMarks    *float64   `json:"final_marks"`
	RejectReason  string     `gorm:"type:text" json:"reject_reason,omitempty"`

	Details   datatypes.JSONMap `json:"details"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`

	Question Question `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Student  Student  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// IsPending reports whether the record can still be approved or rejected.
func (r EvaluationRecord) IsPending() bool {
	return r.ApprovalState == ApprovalStatePending
}

// IsFailed reports whether the evaluation produced no score.
func (r EvaluationRecord) IsFailed() bool {
	return r.Status == EvaluationStatusFailed
}
