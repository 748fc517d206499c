package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/sage-go-api/internal/models"
)

func setupExamTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:exam_repo_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Exam{}, &models.Question{}))
	return db
}

func TestExamRepositoryCreateAndGetOrdersQuestions(t *testing.T) {
	db := setupExamTestDB(t)
	repo := NewExamRepository(db)

	exam := models.Exam{Title: "Chemistry Final", CreatedBy: 1}
	require.NoError(t, repo.Create(context.Background(), &exam))

	questions := []models.Question{
		{ExamID: exam.ID, Text: "Define molarity.", ReferenceAnswer: "Moles of solute per litre.", MaxMarks: 5, QuestionOrder: 2},
		{ExamID: exam.ID, Text: "What is an acid?", ReferenceAnswer: "A proton donor.", MaxMarks: 5, QuestionOrder: 1},
	}
	require.NoError(t, repo.CreateQuestions(context.Background(), questions))

	stored, err := repo.GetByID(context.Background(), exam.ID)
	require.NoError(t, err)
	require.Len(t, stored.Questions, 2)
	require.Equal(t, "What is an acid?", stored.Questions[0].Text)
	require.Equal(t, "Define molarity.", stored.Questions[1].Text)
}

func TestExamRepositoryListSearchAndPagination(t *testing.T) {
	db := setupExamTestDB(t)
	repo := NewExamRepository(db)

	for _, title := range []string{"Biology Midterm", "Biology Final", "History Quiz"} {
		exam := models.Exam{Title: title, CreatedBy: 1}
		require.NoError(t, repo.Create(context.Background(), &exam))
	}

	exams, total, err := repo.List(context.Background(), ExamFilter{Search: "biology"})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, exams, 2)

	paged, total, err := repo.List(context.Background(), ExamFilter{Search: "biology", Page: 2, PageSize: 1})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, paged, 1)
}

func TestExamRepositoryDeleteMissingReturnsNotFound(t *testing.T) {
	db := setupExamTestDB(t)
	repo := NewExamRepository(db)

	err := repo.Delete(context.Background(), 9999)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
