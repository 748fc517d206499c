package contract_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sage-go-api/internal/dto"
	"github.com/noah-isme/sage-go-api/internal/handler"
	"github.com/noah-isme/sage-go-api/internal/middleware"
)

// The evaluation payload is consumed by the review frontend; this schema
// pins the fields it depends on.
const evaluationEnvelopeSchema = `{
	"type": "object",
	"required": ["success", "message", "data"],
	"properties": {
		"success": {"type": "boolean"},
		"message": {"type": "string"},
		"data": {
			"type": "object",
			"required": ["id", "question_id", "student_id", "status", "approval_state", "max_marks"],
			"properties": {
				"id": {"type": "integer"},
				"question_id": {"type": "integer"},
				"student_id": {"type": "integer"},
				"status": {"enum": ["evaluated", "filtered", "failed"]},
				"approval_state": {"enum": ["pending", "approved", "rejected"]},
				"max_marks": {"type": "number"},
				"computed_marks": {"type": ["number", "null"]},
				"raw_similarity": {"type": ["number", "null"]},
				"oracle_score": {"type": ["number", "null"]},
				"final_marks": {"type": ["number", "null"]},
				"filtered": {"type": "boolean"}
			}
		}
	}
}`

type stubEvaluationService struct {
	response dto.EvaluationResponse
}

func (s stubEvaluationService) Evaluate(context.Context, dto.EvaluateRequest) (dto.EvaluationResponse, error) {
	return s.response, nil
}

func (s stubEvaluationService) SubmitExam(context.Context, dto.SubmitExamRequest) ([]dto.EvaluationResponse, error) {
	return []dto.EvaluationResponse{s.response}, nil
}

func (s stubEvaluationService) Get(context.Context, uint) (dto.EvaluationResponse, error) {
	return s.response, nil
}

func (s stubEvaluationService) List(context.Context, dto.EvaluationFilter) ([]dto.EvaluationResponse, error) {
	return []dto.EvaluationResponse{s.response}, nil
}

func TestEvaluationResponseContract(t *testing.T) {
	schema := jsonschema.MustCompileString("evaluation.schema.json", evaluationEnvelopeSchema)

	marks := 8.5
	similarity := 0.72
	oracle := 85.0
	stub := stubEvaluationService{response: dto.EvaluationResponse{
		ID:            1,
		ExamID:        1,
		QuestionID:    2,
		StudentID:     3,
		StudentAnswer: "Plants convert light into chemical energy.",
		MaxMarks:      10,
		RawSimilarity: &similarity,
		OracleScore:   &oracle,
		ComputedMarks: &marks,
		Explanation:   "Covers the key mechanism.",
		Status:        "evaluated",
		ApprovalState: "pending",
		Band:          "Excellent",
	}}

	evaluationHandler := handler.NewEvaluationHandler(stub, zerolog.Nop())

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(9))
		c.Locals("user_role", "teacher")
		return c.Next()
	})
	evaluationHandler.Register(app.Group("/api/v1/evaluations"), middleware.RequireRole("admin", "teacher"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/evaluations/1", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}
