package models

import (
	"time"

	"gorm.io/datatypes"
)

// Question is the read-only scoring input supplied by the form provider.
// A zero MaxScore marks a binary compliance gate: 1 means a violation was found.
type Question struct {
	ID       string `json:"id" toml:"id"`
	MaxScore int    `json:"max_score" toml:"max_score"`
	Required bool   `json:"required" toml:"required"`
}

// IsGate reports whether the question is a compliance gate rather than a scored item.
func (q Question) IsGate() bool {
	return q.MaxScore == 0
}

// Answer is a single rater response to a question.
type Answer struct {
	QuestionID string  `json:"question_id"`
	Score      float64 `json:"score"`
	Comment    string  `json:"comment,omitempty"`
}

// EvaluationKey is the natural key of an evaluation record.
type EvaluationKey struct {
	RaterID  string `json:"rater_id"`
	RateeID  string `json:"ratee_id"`
	FormID   string `json:"form_id"`
	PeriodID string `json:"period_id"`
}

// Evaluation is one rater's review of one ratee for a form and period.
type Evaluation struct {
	ID             string                      `gorm:"primaryKey;size:36" json:"id"`
	RaterID        string                      `gorm:"size:64;not null;uniqueIndex:idx_evaluation_key" json:"rater_id"`
	RateeID        string                      `gorm:"size:64;not null;uniqueIndex:idx_evaluation_key;index" json:"ratee_id"`
	FormID         string                      `gorm:"size:64;not null;uniqueIndex:idx_evaluation_key" json:"form_id"`
	PeriodID       string                      `gorm:"size:64;not null;uniqueIndex:idx_evaluation_key" json:"period_id"`
	GeneralComment string                      `gorm:"type:text" json:"general_comment"`
	TotalScore     float64                     `gorm:"not null;default:0" json:"total_score"`
	AverageScore   float64                     `gorm:"not null;default:0" json:"average_score"`
	Completed      bool                        `gorm:"not null;default:false;index" json:"completed"`
	Disqualified   bool                        `gorm:"not null;default:false" json:"disqualified"`
	SubmittedAt    *time.Time                  `json:"submitted_at"`
	CreatedAt      time.Time                   `json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
	Answers        datatypes.JSONSlice[Answer] `json:"answers"`
}

// Key returns the natural key of the evaluation.
func (e Evaluation) Key() EvaluationKey {
	return EvaluationKey{
		RaterID:  e.RaterID,
		RateeID:  e.RateeID,
		FormID:   e.FormID,
		PeriodID: e.PeriodID,
	}
}

// EvaluationMeta records the key tuple and shard of a persisted evaluation file.
type EvaluationMeta struct {
	RaterID      string    `json:"rater_id"`
	RateeID      string    `json:"ratee_id"`
	FormID       string    `json:"form_id"`
	PeriodID     string    `json:"period_id"`
	DepartmentID string    `json:"department_id"`
	SavedAt      time.Time `json:"saved_at"`
}

// EvaluationEnvelope is the on-disk document written by the file store.
type EvaluationEnvelope struct {
	Evaluation Evaluation     `json:"evaluation"`
	Meta       EvaluationMeta `json:"meta"`
}
