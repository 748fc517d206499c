package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/sage-go-api/internal/dto"
	"github.com/noah-isme/sage-go-api/internal/models"
	"github.com/noah-isme/sage-go-api/internal/repository"
)

func setupApprovalService(t *testing.T) (*gorm.DB, ApprovalService, repository.EvaluationRepository, models.EvaluationRecord) {
	t.Helper()

	dsn := fmt.Sprintf("file:approval_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Student{}, &models.Exam{}, &models.Question{}, &models.EvaluationRecord{}))

	student := models.Student{Name: "Noa", Email: "noa@example.com"}
	require.NoError(t, db.Create(&student).Error)
	exam := models.Exam{Title: "Physics Quiz", CreatedBy: 1}
	require.NoError(t, db.Create(&exam).Error)
	question := models.Question{ExamID: exam.ID, Text: "State Newton's second law.", ReferenceAnswer: "Force equals mass times acceleration.", MaxMarks: 10}
	require.NoError(t, db.Create(&question).Error)

	marks := 8.5
	record := models.EvaluationRecord{
		ExamID:        exam.ID,
		QuestionID:    question.ID,
		StudentID:     student.ID,
		StudentAnswer: "F equals m times a.",
		MaxMarks:      10,
		ComputedMarks: &marks,
		Status:        models.EvaluationStatusEvaluated,
		ApprovalState: models.ApprovalStatePending,
	}
	require.NoError(t, db.Create(&record).Error)

	repo := repository.NewEvaluationRepository(db)
	validate := validator.New(validator.WithRequiredStructEnabled())
	service := NewApprovalService(repo, nil, validate, testLogger())

	return db, service, repo, record
}

func TestApproveFinalizesComputedMarks(t *testing.T) {
	_, service, _, record := setupApprovalService(t)

	response, err := service.Approve(context.Background(), record.ID, dto.ApproveRequest{}, ApprovalActor{ID: 7, Role: "teacher"})
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStateApproved, response.ApprovalState)
	require.NotNil(t, response.FinalMarks)
	require.InDelta(t, 8.5, *response.FinalMarks, 1e-9)
	require.NotNil(t, response.ApprovedBy)
	require.Equal(t, uint(7), *response.ApprovedBy)
	require.NotNil(t, response.ApprovedAt)
}

func TestApproveWithOverride(t *testing.T) {
	_, service, _, record := setupApprovalService(t)

	override := 9.0
	response, err := service.Approve(context.Background(), record.ID, dto.ApproveRequest{OverrideMarks: &override}, ApprovalActor{ID: 7})
	require.NoError(t, err)
	require.InDelta(t, 9.0, *response.FinalMarks, 1e-9)
}

func TestApproveOverrideAboveMaxRejected(t *testing.T) {
	_, service, repo, record := setupApprovalService(t)

	override := 11.0
	_, err := service.Approve(context.Background(), record.ID, dto.ApproveRequest{OverrideMarks: &override}, ApprovalActor{ID: 7})
	require.ErrorIs(t, err, ErrInvalidOverride)

	stored, err := repo.GetByID(context.Background(), record.ID)
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatePending, stored.ApprovalState)
}

func TestApproveTwiceReturnsInvalidTransition(t *testing.T) {
	_, service, repo, record := setupApprovalService(t)

	first, err := service.Approve(context.Background(), record.ID, dto.ApproveRequest{}, ApprovalActor{ID: 7})
	require.NoError(t, err)

	override := 2.0
	_, err = service.Approve(context.Background(), record.ID, dto.ApproveRequest{OverrideMarks: &override}, ApprovalActor{ID: 8})
	require.ErrorIs(t, err, ErrInvalidTransition)

	stored, err := repo.GetByID(context.Background(), record.ID)
	require.NoError(t, err)
	require.InDelta(t, *first.FinalMarks, *stored.FinalMarks, 1e-9, "first approval's marks must survive")
	require.Equal(t, uint(7), *stored.ApprovedBy)
}

func TestRejectRecordsReason(t *testing.T) {
	_, service, _, record := setupApprovalService(t)

	response, err := service.Reject(context.Background(), record.ID, dto.RejectRequest{Reason: "needs manual regrade"}, ApprovalActor{ID: 7})
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStateRejected, response.ApprovalState)
	require.Equal(t, "needs manual regrade", response.RejectReason)
	require.Nil(t, response.FinalMarks)

	_, err = service.Approve(context.Background(), record.ID, dto.ApproveRequest{}, ApprovalActor{ID: 7})
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApproveFailedEvaluationNeedsOverride(t *testing.T) {
	db, service, _, record := setupApprovalService(t)

	failed := models.EvaluationRecord{
		ExamID:        record.ExamID,
		QuestionID:    record.QuestionID,
		StudentID:     record.StudentID,
		StudentAnswer: "unscored",
		MaxMarks:      10,
		Status:        models.EvaluationStatusFailed,
		FailureKind:   models.FailureKindOracleUnavailable,
		ApprovalState: models.ApprovalStatePending,
	}
	require.NoError(t, db.Create(&failed).Error)

	_, err := service.Approve(context.Background(), failed.ID, dto.ApproveRequest{}, ApprovalActor{ID: 7})
	require.ErrorIs(t, err, ErrNoMarksToApprove)

	override := 6.0
	response, err := service.Approve(context.Background(), failed.ID, dto.ApproveRequest{OverrideMarks: &override}, ApprovalActor{ID: 7})
	require.NoError(t, err)
	require.InDelta(t, 6.0, *response.FinalMarks, 1e-9)
}

func TestBulkApprovePartialSuccess(t *testing.T) {
	db, service, _, record := setupApprovalService(t)

	marks := 4.0
	second := models.EvaluationRecord{
		ExamID:        record.ExamID,
		QuestionID:    record.QuestionID,
		StudentID:     record.StudentID,
		StudentAnswer: "another answer",
		MaxMarks:      10,
		ComputedMarks: &marks,
		Status:        models.EvaluationStatusEvaluated,
		ApprovalState: models.ApprovalStatePending,
	}
	require.NoError(t, db.Create(&second).Error)

	// Approve the first one up front so the bulk call hits a terminal record.
	_, err := service.Approve(context.Background(), record.ID, dto.ApproveRequest{}, ApprovalActor{ID: 7})
	require.NoError(t, err)

	response, err := service.BulkApprove(context.Background(), dto.BulkApproveRequest{
		EvaluationIDs: []uint{record.ID, second.ID, 9999},
	}, ApprovalActor{ID: 7})
	require.NoError(t, err)

	require.Equal(t, 1, response.Approved)
	require.Equal(t, 2, response.Failed)
	require.Len(t, response.Outcomes, 3)

	require.False(t, response.Outcomes[0].Approved)
	require.Contains(t, response.Outcomes[0].Error, ErrInvalidTransition.Error())

	require.True(t, response.Outcomes[1].Approved)
	require.NotNil(t, response.Outcomes[1].FinalMarks)
	require.InDelta(t, 4.0, *response.Outcomes[1].FinalMarks, 1e-9)

	require.False(t, response.Outcomes[2].Approved)
	require.Contains(t, response.Outcomes[2].Error, ErrEvaluationNotFound.Error())
}

func TestListPendingFiltersByExam(t *testing.T) {
	_, service, _, record := setupApprovalService(t)

	pending, err := service.ListPending(context.Background(), record.ExamID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, record.ID, pending[0].ID)

	none, err := service.ListPending(context.Background(), record.ExamID+100)
	require.NoError(t, err)
	require.Empty(t, none)
}
