package contract_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-evaluation-api/internal/dto"
	"github.com/noah-isme/gema-evaluation-api/internal/handler"
)

type stubSubmissionService struct {
	response dto.EvaluationResponse
}

func (s stubSubmissionService) Submit(context.Context, dto.EvaluationSubmitRequest) (dto.EvaluationResponse, error) {
	return s.response, nil
}

type stubStatusService struct {
	evaluation dto.EvaluationResponse
}

func (s stubStatusService) CheckStatuses(_ context.Context, payload dto.EvaluationStatusRequest) (dto.EvaluationStatusResponse, error) {
	statuses := make(map[string]bool, len(payload.RateeIDs))
	for i, id := range payload.RateeIDs {
		statuses[id] = i%2 == 0
	}
	return dto.EvaluationStatusResponse{Statuses: statuses}, nil
}

func (s stubStatusService) ListDepartmentEvaluations(_ context.Context, departmentID string) (dto.DepartmentEvaluationsResponse, error) {
	return dto.DepartmentEvaluationsResponse{DepartmentID: departmentID, Items: []dto.EvaluationResponse{s.evaluation}}, nil
}

func (s stubStatusService) ListAllEvaluations(context.Context) (dto.EvaluationListResponse, error) {
	return dto.EvaluationListResponse{Items: []dto.EvaluationResponse{s.evaluation}}, nil
}

func (s stubStatusService) GetEvaluation(context.Context, dto.EvaluationLookupRequest) (dto.EvaluationResponse, error) {
	return s.evaluation, nil
}

func TestEvaluationResponsesMatchContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("..", "contracts", "evaluation.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + filepath.ToSlash(schemaPath))
	require.NoError(t, err)

	now := time.Now().UTC()
	evaluation := dto.EvaluationResponse{
		ID:             "5d1c6f0e-9a43-4d4b-9bd0-2f0a5c0f6a11",
		RaterID:        "alice",
		RateeID:        "bob",
		FormID:         "peer",
		PeriodID:       "2024q1",
		GeneralComment: "steady",
		TotalScore:     9,
		AverageScore:   4.5,
		Completed:      true,
		SubmittedAt:    &now,
		CreatedAt:      now,
		UpdatedAt:      now,
		Answers: []dto.EvaluationAnswerResponse{
			{QuestionID: "q1", Score: 4},
			{QuestionID: "q2", Score: 5, Comment: "great"},
		},
	}

	h := handler.NewEvaluationHandler(stubSubmissionService{response: evaluation}, stubStatusService{evaluation: evaluation}, zerolog.Nop())
	app := fiber.New()
	h.Register(app.Group("/api/v1/evaluations"), handler.Routes{})

	statusBody, err := json.Marshal(dto.EvaluationStatusRequest{
		RaterID: "alice", FormID: "peer", PeriodID: "2024q1", RateeIDs: []string{"bob", "carol"},
	})
	require.NoError(t, err)
	submitBody, err := json.Marshal(dto.EvaluationSubmitRequest{
		RaterID: "alice", RateeID: "bob", FormID: "peer", PeriodID: "2024q1",
	})
	require.NoError(t, err)

	requests := []*http.Request{
		httptest.NewRequest(http.MethodPost, "/api/v1/evaluations/submit", bytes.NewReader(submitBody)),
		httptest.NewRequest(http.MethodPost, "/api/v1/evaluations/status", bytes.NewReader(statusBody)),
		httptest.NewRequest(http.MethodGet, "/api/v1/evaluations/departments/sales", nil),
		httptest.NewRequest(http.MethodGet, "/api/v1/evaluations/departments", nil),
		httptest.NewRequest(http.MethodGet, "/api/v1/evaluations?rater_id=alice&ratee_id=bob&form_id=peer&period_id=2024q1", nil),
	}

	for _, req := range requests {
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, req.URL.Path)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		resp.Body.Close()

		var payload interface{}
		require.NoError(t, json.Unmarshal(body, &payload))
		require.NoError(t, schema.Validate(payload), req.URL.Path)
	}
}
