package service

import (
	"errors"

	"github.com/noah-isme/gema-evaluation-api/internal/repository"
)

var (
	// ErrEvaluationNotFound indicates no evaluation exists for the key tuple.
	ErrEvaluationNotFound = errors.New("evaluation not found")
	// ErrRateeNotFound indicates the ratee is unknown to the directory.
	ErrRateeNotFound = errors.New("ratee not found")
	// ErrDepartmentNotFound indicates the department is unknown to the directory.
	ErrDepartmentNotFound = errors.New("department not found")
	// ErrFormNotFound indicates the form has no questions to score against.
	ErrFormNotFound = errors.New("form not found")
	// ErrInvalidAnswer indicates an answer score outside its question's range.
	ErrInvalidAnswer = errors.New("invalid answer")
	// ErrMissingGateAnswer indicates a required compliance question was left unanswered.
	ErrMissingGateAnswer = errors.New("required compliance question unanswered")
	// ErrInvalidIdentifier indicates an identifier that fails the allow-list.
	ErrInvalidIdentifier = repository.ErrInvalidIdentifier
)
