package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-evaluation-api/internal/models"
)

func reviewQuestions() []models.Question {
	return []models.Question{
		{ID: "q1", MaxScore: 5},
		{ID: "q2", MaxScore: 5},
		{ID: "gate", MaxScore: 0, Required: true},
	}
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name         string
		questions    []models.Question
		answers      []models.Answer
		policy       GatePolicy
		total        float64
		average      float64
		disqualified bool
	}{
		{
			name:      "gate unanswered is compliant",
			questions: reviewQuestions(),
			answers:   []models.Answer{{QuestionID: "q1", Score: 4}, {QuestionID: "q2", Score: 5}},
			policy:    UnansweredGateCompliant,
			total:     9,
			average:   4.5,
		},
		{
			name:      "gate answered compliant",
			questions: reviewQuestions(),
			answers:   []models.Answer{{QuestionID: "q1", Score: 4}, {QuestionID: "q2", Score: 5}, {QuestionID: "gate", Score: 0}},
			policy:    UnansweredGateCompliant,
			total:     9,
			average:   4.5,
		},
		{
			name:         "gate violation forces average to zero",
			questions:    reviewQuestions(),
			answers:      []models.Answer{{QuestionID: "q1", Score: 4}, {QuestionID: "q2", Score: 5}, {QuestionID: "gate", Score: 1}},
			policy:       UnansweredGateCompliant,
			total:        9,
			average:      0,
			disqualified: true,
		},
		{
			name:         "unanswered gate under violation policy",
			questions:    reviewQuestions(),
			answers:      []models.Answer{{QuestionID: "q1", Score: 4}},
			policy:       UnansweredGateViolation,
			total:        4,
			average:      0,
			disqualified: true,
		},
		{
			name:      "zero score excluded from denominator",
			questions: reviewQuestions(),
			answers:   []models.Answer{{QuestionID: "q1", Score: 0}, {QuestionID: "q2", Score: 3}},
			policy:    UnansweredGateCompliant,
			total:     3,
			average:   3,
		},
		{
			name:      "all zero scores",
			questions: reviewQuestions(),
			answers:   []models.Answer{{QuestionID: "q1", Score: 0}, {QuestionID: "q2", Score: 0}},
			policy:    UnansweredGateCompliant,
		},
		{
			name:    "no questions",
			answers: []models.Answer{{QuestionID: "q1", Score: 5}},
			policy:  UnansweredGateCompliant,
		},
		{
			name:      "answers to unknown questions ignored",
			questions: reviewQuestions(),
			answers:   []models.Answer{{QuestionID: "q1", Score: 2}, {QuestionID: "other", Score: 5}},
			policy:    UnansweredGateCompliant,
			total:     2,
			average:   2,
		},
		{
			name:      "first answer per question wins",
			questions: reviewQuestions(),
			answers:   []models.Answer{{QuestionID: "q1", Score: 2}, {QuestionID: "q1", Score: 5}},
			policy:    UnansweredGateCompliant,
			total:     2,
			average:   2,
		},
		{
			name:      "gate answer never adds to score",
			questions: []models.Question{{ID: "q1", MaxScore: 10}, {ID: "gate", MaxScore: 0}},
			answers:   []models.Answer{{QuestionID: "q1", Score: 7}, {QuestionID: "gate", Score: 0}},
			policy:    UnansweredGateCompliant,
			total:     7,
			average:   7,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := Compute(tc.questions, tc.answers, tc.policy)
			require.InDelta(t, tc.total, result.TotalScore, 1e-9)
			require.InDelta(t, tc.average, result.AverageScore, 1e-9)
			require.Equal(t, tc.disqualified, result.Disqualified)
		})
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	answers := []models.Answer{{QuestionID: "q1", Score: 4}, {QuestionID: "q2", Score: 5}, {QuestionID: "gate", Score: 1}}
	first := Compute(reviewQuestions(), answers, UnansweredGateCompliant)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, Compute(reviewQuestions(), answers, UnansweredGateCompliant))
	}
}

func TestParseGatePolicy(t *testing.T) {
	policy, err := ParseGatePolicy("")
	require.NoError(t, err)
	require.Equal(t, UnansweredGateCompliant, policy)

	policy, err = ParseGatePolicy(" Violation ")
	require.NoError(t, err)
	require.Equal(t, UnansweredGateViolation, policy)

	_, err = ParseGatePolicy("strict")
	require.Error(t, err)
}
