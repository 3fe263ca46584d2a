package dto

import (
	"time"

	"github.com/noah-isme/gema-evaluation-api/internal/models"
)

// EvaluationAnswerRequest is one answer inside a submission.
type EvaluationAnswerRequest struct {
	QuestionID string  `json:"question_id" validate:"required,max=64"`
	Score      float64 `json:"score" validate:"gte=0"`
	Comment    string  `json:"comment" validate:"omitempty,max=2000"`
}

// EvaluationQuestionRequest describes a form question supplied alongside a submission.
type EvaluationQuestionRequest struct {
	ID       string `json:"id" validate:"required,max=64"`
	MaxScore int    `json:"max_score" validate:"gte=0"`
	Required bool   `json:"required"`
}

// EvaluationSubmitRequest is the payload of a submit-evaluation call.
// When Questions is empty the form's questions are loaded from the directory.
type EvaluationSubmitRequest struct {
	RaterID        string                      `json:"rater_id" validate:"required,identifier"`
	RateeID        string                      `json:"ratee_id" validate:"required,identifier"`
	FormID         string                      `json:"form_id" validate:"required,identifier"`
	PeriodID       string                      `json:"period_id" validate:"required,identifier"`
	GeneralComment string                      `json:"general_comment" validate:"omitempty,max=5000"`
	Answers        []EvaluationAnswerRequest   `json:"answers" validate:"max=500,dive"`
	Questions      []EvaluationQuestionRequest `json:"questions" validate:"max=500,dive"`
}

// EvaluationStatusRequest asks which ratees a rater already evaluated for a form and period.
type EvaluationStatusRequest struct {
	RaterID  string   `json:"rater_id" validate:"required,identifier"`
	FormID   string   `json:"form_id" validate:"required,identifier"`
	PeriodID string   `json:"period_id" validate:"required,identifier"`
	RateeIDs []string `json:"ratee_ids" validate:"max=500,dive,required,identifier"`
}

// EvaluationStatusResponse maps each requested ratee to its completion flag.
type EvaluationStatusResponse struct {
	Statuses map[string]bool `json:"statuses"`
}

// EvaluationLookupRequest identifies a single evaluation by its key tuple.
type EvaluationLookupRequest struct {
	RaterID  string `query:"rater_id" validate:"required,identifier"`
	RateeID  string `query:"ratee_id" validate:"required,identifier"`
	FormID   string `query:"form_id" validate:"required,identifier"`
	PeriodID string `query:"period_id" validate:"required,identifier"`
}

// EvaluationAnswerResponse serializes a stored answer.
type EvaluationAnswerResponse struct {
	QuestionID string  `json:"question_id"`
	Score      float64 `json:"score"`
	Comment    string  `json:"comment,omitempty"`
}

// EvaluationResponse is the stored evaluation returned to API clients.
type EvaluationResponse struct {
	ID             string                     `json:"id"`
	RaterID        string                     `json:"rater_id"`
	RateeID        string                     `json:"ratee_id"`
	FormID         string                     `json:"form_id"`
	PeriodID       string                     `json:"period_id"`
	GeneralComment string                     `json:"general_comment"`
	TotalScore     float64                    `json:"total_score"`
	AverageScore   float64                    `json:"average_score"`
	Completed      bool                       `json:"completed"`
	Disqualified   bool                       `json:"disqualified"`
	SubmittedAt    *time.Time                 `json:"submitted_at"`
	CreatedAt      time.Time                  `json:"created_at"`
	UpdatedAt      time.Time                  `json:"updated_at"`
	Answers        []EvaluationAnswerResponse `json:"answers"`
}

// DepartmentEvaluationsResponse lists the completed evaluations of one department.
type DepartmentEvaluationsResponse struct {
	DepartmentID string               `json:"department_id"`
	Items        []EvaluationResponse `json:"items"`
}

// EvaluationListResponse lists stored evaluations across every department.
type EvaluationListResponse struct {
	Items []EvaluationResponse `json:"items"`
}

// NewEvaluationResponse converts an Evaluation model into a DTO.
func NewEvaluationResponse(model models.Evaluation) EvaluationResponse {
	answers := make([]EvaluationAnswerResponse, 0, len(model.Answers))
	for _, answer := range model.Answers {
		answers = append(answers, EvaluationAnswerResponse{
			QuestionID: answer.QuestionID,
			Score:      answer.Score,
			Comment:    answer.Comment,
		})
	}

	return EvaluationResponse{
		ID:             model.ID,
		RaterID:        model.RaterID,
		RateeID:        model.RateeID,
		FormID:         model.FormID,
		PeriodID:       model.PeriodID,
		GeneralComment: model.GeneralComment,
		TotalScore:     model.TotalScore,
		AverageScore:   model.AverageScore,
		Completed:      model.Completed,
		Disqualified:   model.Disqualified,
		SubmittedAt:    model.SubmittedAt,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
		Answers:        answers,
	}
}

// NewEvaluationResponseSlice converts evaluation models into DTOs.
func NewEvaluationResponseSlice(items []models.Evaluation) []EvaluationResponse {
	responses := make([]EvaluationResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewEvaluationResponse(item))
	}
	return responses
}
