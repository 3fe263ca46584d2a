// Package scoring computes the aggregate score of an evaluation.
package scoring

import (
	"fmt"
	"strings"

	"github.com/noah-isme/gema-evaluation-api/internal/models"
)

// GatePolicy decides how an unanswered compliance gate is treated.
type GatePolicy string

const (
	// UnansweredGateCompliant treats a gate without an answer as "no violation".
	UnansweredGateCompliant GatePolicy = "compliant"
	// UnansweredGateViolation treats a gate without an answer as a violation.
	UnansweredGateViolation GatePolicy = "violation"
)

// GateViolationScore is the gate answer that marks a violation.
const GateViolationScore = 1

// ParseGatePolicy converts a configuration value into a policy.
func ParseGatePolicy(value string) (GatePolicy, error) {
	switch GatePolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", UnansweredGateCompliant:
		return UnansweredGateCompliant, nil
	case UnansweredGateViolation:
		return UnansweredGateViolation, nil
	default:
		return "", fmt.Errorf("unknown unanswered gate policy %q", value)
	}
}

// Result is the outcome of scoring one evaluation.
type Result struct {
	TotalScore   float64
	AverageScore float64
	Disqualified bool
	// ScoredCount is the number of answers that entered the average.
	ScoredCount int
}

// Compute scores answers against questions.
//
// Only answers to questions with a positive MaxScore and a positive score are
// counted; zero means "not applicable" and stays out of the denominator.
// A gate answered with GateViolationScore disqualifies the evaluation, which
// forces the average to zero while the total keeps the raw sum.
func Compute(questions []models.Question, answers []models.Answer, policy GatePolicy) Result {
	scored := make(map[string]struct{}, len(questions))
	gates := make(map[string]struct{})
	for _, question := range questions {
		if question.IsGate() {
			gates[question.ID] = struct{}{}
			continue
		}
		scored[question.ID] = struct{}{}
	}

	byQuestion := make(map[string]models.Answer, len(answers))
	for _, answer := range answers {
		if _, seen := byQuestion[answer.QuestionID]; seen {
			continue
		}
		byQuestion[answer.QuestionID] = answer
	}

	var result Result
	for id := range gates {
		answer, answered := byQuestion[id]
		if !answered {
			if policy == UnansweredGateViolation {
				result.Disqualified = true
			}
			continue
		}
		if answer.Score == GateViolationScore {
			result.Disqualified = true
		}
	}

	seen := make(map[string]struct{}, len(answers))
	for _, answer := range answers {
		if _, dup := seen[answer.QuestionID]; dup {
			continue
		}
		seen[answer.QuestionID] = struct{}{}

		if _, ok := scored[answer.QuestionID]; !ok || answer.Score <= 0 {
			continue
		}
		result.TotalScore += answer.Score
		result.ScoredCount++
	}

	if !result.Disqualified && result.ScoredCount > 0 {
		result.AverageScore = result.TotalScore / float64(result.ScoredCount)
	}

	return result
}
