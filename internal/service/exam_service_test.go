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

func setupExamService(t *testing.T) (*gorm.DB, ExamService) {
	t.Helper()

	dsn := fmt.Sprintf("file:exam_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Exam{}, &models.Question{}))

	validate := validator.New(validator.WithRequiredStructEnabled())
	return db, NewExamService(repository.NewExamRepository(db), validate, testLogger())
}

func TestExamCreateSanitizesAndOrdersQuestions(t *testing.T) {
	_, service := setupExamService(t)

	response, err := service.Create(context.Background(), dto.ExamCreateRequest{
		Title:       "  Biology <script>alert(1)</script> Midterm ",
		Description: "Covers unit one.",
		Questions: []dto.QuestionCreateRequest{
			{Text: "Explain photosynthesis.", ReferenceAnswer: "Plants convert light to chemical energy.", MaxMarks: 10},
			{Text: "Define osmosis.", ReferenceAnswer: "Water moves across a membrane.", MaxMarks: 5},
		},
	}, 3)
	require.NoError(t, err)

	require.Equal(t, "Biology  Midterm", response.Title)
	require.Equal(t, uint(3), response.CreatedBy)
	require.Len(t, response.Questions, 2)
	require.Equal(t, 1, response.Questions[0].QuestionOrder)
	require.Equal(t, 2, response.Questions[1].QuestionOrder)
}

func TestExamCreateRejectsShortTitle(t *testing.T) {
	_, service := setupExamService(t)

	_, err := service.Create(context.Background(), dto.ExamCreateRequest{Title: "ab"}, 1)
	require.Error(t, err)
}

func TestExamImportQuestionsCSV(t *testing.T) {
	_, service := setupExamService(t)

	exam, err := service.Create(context.Background(), dto.ExamCreateRequest{Title: "History Quiz"}, 1)
	require.NoError(t, err)

	csvData := []byte("text,reference_answer,max_marks,question_order\n" +
		"When did WW2 end?,It ended in 1945.,5,1\n" +
		"Too short,x,5,2\n" +
		"Who wrote the Declaration?,Thomas Jefferson drafted it.,5,3\n")

	report, err := service.ImportQuestions(context.Background(), exam.ID, "questions.csv", csvData)
	require.NoError(t, err)
	require.Equal(t, 2, report.Imported)
	require.Equal(t, 1, report.Skipped)
	require.Len(t, report.Errors, 1)

	stored, err := service.Get(context.Background(), exam.ID)
	require.NoError(t, err)
	require.Len(t, stored.Questions, 2)
}

func TestExamImportQuestionsJSON(t *testing.T) {
	_, service := setupExamService(t)

	exam, err := service.Create(context.Background(), dto.ExamCreateRequest{Title: "Geography Quiz"}, 1)
	require.NoError(t, err)

	jsonData := []byte(`[
		{"text": "Name the longest river.", "reference_answer": "The Nile is commonly cited as the longest river.", "max_marks": 5},
		{"text": "What is a delta?", "reference_answer": "A landform at a river mouth built from sediment.", "max_marks": 5, "question_order": 7}
	]`)

	report, err := service.ImportQuestions(context.Background(), exam.ID, "questions.json", jsonData)
	require.NoError(t, err)
	require.Equal(t, 2, report.Imported)
	require.Zero(t, report.Skipped)

	stored, err := service.Get(context.Background(), exam.ID)
	require.NoError(t, err)
	require.Len(t, stored.Questions, 2)
}

func TestExamImportRejectsInvalidJSONSchema(t *testing.T) {
	_, service := setupExamService(t)

	exam, err := service.Create(context.Background(), dto.ExamCreateRequest{Title: "Bad Import"}, 1)
	require.NoError(t, err)

	// max_marks must be positive, so the schema rejects the whole document.
	jsonData := []byte(`[{"text": "A question?", "reference_answer": "An answer here.", "max_marks": 0}]`)
	_, err = service.ImportQuestions(context.Background(), exam.ID, "bad.json", jsonData)
	require.Error(t, err)

	stored, err := service.Get(context.Background(), exam.ID)
	require.NoError(t, err)
	require.Empty(t, stored.Questions)
}

func TestExamImportUnknownExam(t *testing.T) {
	_, service := setupExamService(t)

	_, err := service.ImportQuestions(context.Background(), 9999, "questions.csv", []byte("text,reference_answer,max_marks\n"))
	require.ErrorIs(t, err, ErrExamNotFound)
}

func TestExamUpdateAndDelete(t *testing.T) {
	_, service := setupExamService(t)

	exam, err := service.Create(context.Background(), dto.ExamCreateRequest{Title: "Draft Exam"}, 1)
	require.NoError(t, err)

	title := "Final Exam"
	duration := 90
	updated, err := service.Update(context.Background(), exam.ID, dto.ExamUpdateRequest{Title: &title, Duration: &duration})
	require.NoError(t, err)
	require.Equal(t, "Final Exam", updated.Title)
	require.Equal(t, 90, updated.Duration)

	require.NoError(t, service.Delete(context.Background(), exam.ID))
	_, err = service.Get(context.Background(), exam.ID)
	require.ErrorIs(t, err, ErrExamNotFound)

	require.ErrorIs(t, service.Delete(context.Background(), exam.ID), ErrExamNotFound)
}
