package dto

// ApproveRequest approves a single pending evaluation, optionally
// overriding the computed marks.
type ApproveRequest struct {
	OverrideMarks *float64 `json:"override_marks" validate:"omitempty,gte=0"`
}

// RejectRequest rejects a pending evaluation with a reviewer note.
type RejectRequest struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

// BulkApproveRequest approves a batch of pending evaluations at once.
type BulkApproveRequest struct {
	EvaluationIDs []uint `json:"evaluation_ids" validate:"required,min=1,dive,gt=0"`
}

// BulkApprovalOutcome reports the per-record result of a bulk approval.
type BulkApprovalOutcome struct {
	EvaluationID uint     `json:"evaluation_id"`
	Approved     bool     `json:"approved"`
	FinalMarks   *float64 `json:"final_marks,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// BulkApprovalResponse aggregates bulk approval outcomes.
type BulkApprovalResponse struct {
	Approved int                   `json:"approved"`
	Failed   int                   `json:"failed"`
	Outcomes []BulkApprovalOutcome `json:"outcomes"`
}
