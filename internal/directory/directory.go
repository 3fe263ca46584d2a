// Package directory resolves staff, departments and form questions for the evaluation engine.
package directory

import (
	"context"
	"errors"

	"github.com/noah-isme/gema-evaluation-api/internal/models"
)

var (
	// ErrUserNotFound indicates the user is unknown to the directory.
	ErrUserNotFound = errors.New("user not found")
	// ErrFormNotFound indicates the form has no questions on record.
	ErrFormNotFound = errors.New("form not found")
)

// Directory maps users to departments.
type Directory interface {
	DepartmentOf(ctx context.Context, userID string) (string, error)
	DepartmentExists(ctx context.Context, departmentID string) (bool, error)
}

// QuestionSource supplies the ordered questions of a form.
type QuestionSource interface {
	QuestionsForForm(ctx context.Context, formID string) ([]models.Question, error)
}
