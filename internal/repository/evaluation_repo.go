package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/sage-go-api/internal/models"
)

// EvaluationFilter narrows evaluation queries.
type EvaluationFilter struct {
	ExamID        *uint
	QuestionID    *uint
	StudentID     *uint
	Status        *string
	ApprovalState *string
}

// EvaluationRepository defines data operations for evaluation records.
type EvaluationRepository interface {
	Create(ctx context.Context, record *models.EvaluationRecord) error
	GetByID(ctx context.Context, id uint) (models.EvaluationRecord, error)
	List(ctx context.Context, filter EvaluationFilter) ([]models.EvaluationRecord, error)
	ListReleasedByStudent(ctx context.Context, examID, studentID uint) ([]models.EvaluationRecord, error)
	CountPendingByExam(ctx context.Context, examID uint) (int64, error)
	TransitionToApproved(ctx context.Context, id, approverID uint, finalMarks float64) (models.EvaluationRecord, error)
	TransitionToRejected(ctx context.Context, id, approverID uint, reason string) (models.EvaluationRecord, error)
}

type evaluationRepository struct {
	db *gorm.DB
}

// NewEvaluationRepository instantiates the repository.
func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

func (r *evaluationRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.EvaluationRecord{}).
		Preload("Question").
		Preload("Student")
}

func (r *evaluationRepository) Create(ctx context.Context, record *models.EvaluationRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *evaluationRepository) GetByID(ctx context.Context, id uint) (models.EvaluationRecord, error) {
	var record models.EvaluationRecord
	if err := r.baseQuery(ctx).First(&record, id).Error; err != nil {
		return models.EvaluationRecord{}, err
	}

	return record, nil
}

func (r *evaluationRepository) List(ctx context.Context, filter EvaluationFilter) ([]models.EvaluationRecord, error) {
	query := r.baseQuery(ctx)

	if filter.ExamID != nil {
		query = query.Where("exam_id = ?", *filter.ExamID)
	}

	if filter.QuestionID != nil {
		query = query.Where("question_id = ?", *filter.QuestionID)
	}

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	if filter.ApprovalState != nil {
		query = query.Where("approval_state = ?", *filter.ApprovalState)
	}

	var records []models.EvaluationRecord
	if err := query.Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

// ListReleasedByStudent returns the student's terminal records for an exam,
// both approved and rejected. Pending records never appear here; the caller
// gates on them separately.
func (r *evaluationRepository) ListReleasedByStudent(ctx context.Context, examID, studentID uint) ([]models.EvaluationRecord, error) {
	var records []models.EvaluationRecord
	if err := r.baseQuery(ctx).
		Where("exam_id = ?", examID).
		Where("student_id = ?", studentID).
		Where("approval_state IN ?", []string{models.ApprovalStateApproved, models.ApprovalStateRejected}).
		Order("question_id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

func (r *evaluationRepository) CountPendingByExam(ctx context.Context, examID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.EvaluationRecord{}).
		Where("exam_id = ?", examID).
		Where("approval_state = ?", models.ApprovalStatePending).
		Count(&count).Error

	return count, err
}

// TransitionToApproved moves a pending record to approved. The pending
// predicate on the UPDATE makes concurrent approvals race-safe: the second
// writer matches zero rows and sees ErrRecordNotFound.
func (r *evaluationRepository) TransitionToApproved(ctx context.Context, id, approverID uint, finalMarks float64) (models.EvaluationRecord, error) {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&models.EvaluationRecord{}).
		Where("id = ?", id).
		Where("approval_state = ?", models.ApprovalStatePending).
		Updates(map[string]interface{}{
			"approval_state": models.ApprovalStateApproved,
			"approved_by":    approverID,
			"approved_at":    now,
			"final_marks":    finalMarks,
		})
	if result.Error != nil {
		return models.EvaluationRecord{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.EvaluationRecord{}, gorm.ErrRecordNotFound
	}

	return r.GetByID(ctx, id)
}

// TransitionToRejected works like TransitionToApproved but records a reason
// and leaves final_marks empty.
func (r *evaluationRepository) TransitionToRejected(ctx context.Context, id, approverID uint, reason string) (models.EvaluationRecord, error) {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&models.EvaluationRecord{}).
		Where("id = ?", id).
		Where("approval_state = ?", models.ApprovalStatePending).
		Updates(map[string]interface{}{
			"approval_state": models.ApprovalStateRejected,
			"approved_by":    approverID,
			"approved_at":    now,
			"reject_reason":  reason,
		})
	if result.Error != nil {
		return models.EvaluationRecord{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.EvaluationRecord{}, gorm.ErrRecordNotFound
	}

	return r.GetByID(ctx, id)
}
