package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/sage-go-api/internal/models"
	"github.com/noah-isme/sage-go-api/internal/repository"
	"github.com/noah-isme/sage-go-api/internal/service"
)

func setupApprovalApp(t *testing.T) (*fiber.App, models.EvaluationRecord) {
	t.Helper()

	dsn := fmt.Sprintf("file:approval_handler_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Student{}, &models.Exam{}, &models.Question{}, &models.EvaluationRecord{}))

	student := models.Student{Name: "Sam", Email: "sam@example.com"}
	require.NoError(t, db.Create(&student).Error)
	exam := models.Exam{Title: "Physics Quiz", CreatedBy: 1}
	require.NoError(t, db.Create(&exam).Error)
	question := models.Question{ExamID: exam.ID, Text: "Define inertia.", ReferenceAnswer: "Resistance of a body to changes in motion.", MaxMarks: 10}
	require.NoError(t, db.Create(&question).Error)

	marks := 7.5
	record := models.EvaluationRecord{
		ExamID:        exam.ID,
		QuestionID:    question.ID,
		StudentID:     student.ID,
		StudentAnswer: "Objects resist changes to their motion.",
		MaxMarks:      10,
		ComputedMarks: &marks,
		Status:        models.EvaluationStatusEvaluated,
		ApprovalState: models.ApprovalStatePending,
	}
	require.NoError(t, db.Create(&record).Error)

	validate := validator.New(validator.WithRequiredStructEnabled())
	approvalService := service.NewApprovalService(repository.NewEvaluationRepository(db), nil, validate, zerolog.Nop())

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(42))
		c.Locals("user_role", "teacher")
		return c.Next()
	})
	NewApprovalHandler(approvalService, zerolog.Nop()).Register(app.Group("/api/v1/approvals"))

	return app, record
}

type approvalEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func TestApprovalHandlerApprove(t *testing.T) {
	app, record := setupApprovalApp(t)

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/approvals/%d/approve", record.ID), nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope approvalEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.True(t, envelope.Success)

	var data struct {
		ApprovalState string   `json:"approval_state"`
		FinalMarks    *float64 `json:"final_marks"`
		ApprovedBy    *uint    `json:"approved_by"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	require.Equal(t, models.ApprovalStateApproved, data.ApprovalState)
	require.NotNil(t, data.FinalMarks)
	require.InDelta(t, 7.5, *data.FinalMarks, 1e-9)
	require.NotNil(t, data.ApprovedBy)
	require.Equal(t, uint(42), *data.ApprovedBy)
}

func TestApprovalHandlerApproveTwiceConflicts(t *testing.T) {
	app, record := setupApprovalApp(t)

	url := fmt.Sprintf("/api/v1/approvals/%d/approve", record.ID)
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, url, nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, url, nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestApprovalHandlerRejectRequiresReason(t *testing.T) {
	app, record := setupApprovalApp(t)

	url := fmt.Sprintf("/api/v1/approvals/%d/reject", record.ID)
	req := httptest.NewRequest(http.MethodPost, url, bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, url, bytes.NewReader([]byte(`{"reason":"off topic answer"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestApprovalHandlerBulkApprove(t *testing.T) {
	app, record := setupApprovalApp(t)

	body := fmt.Sprintf(`{"evaluation_ids": [%d, 9999]}`, record.ID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/approvals/bulk-approve", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope approvalEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))

	var data struct {
		Approved int `json:"approved"`
		Failed   int `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	require.Equal(t, 1, data.Approved)
	require.Equal(t, 1, data.Failed)
}

func TestApprovalHandlerUnknownEvaluation(t *testing.T) {
	app, _ := setupApprovalApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/approvals/9999/approve", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
