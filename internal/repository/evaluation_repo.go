package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/noah-isme/gema-evaluation-api/internal/models"
)

var (
	// ErrEvaluationNotFound indicates no record exists for the key tuple.
	ErrEvaluationNotFound = errors.New("evaluation not found")
	// ErrInvalidIdentifier indicates an identifier that is unsafe to use as a path segment.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrCorruptRecord indicates a stored record that cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt evaluation record")
)

// StorageError wraps an I/O or database failure of the record store.
type StorageError struct {
	Op  string
	Err error
}

// Error omits file paths carried by the wrapped error.
func (e *StorageError) Error() string {
	var pathErr *fs.PathError
	if errors.As(e.Err, &pathErr) {
		return fmt.Sprintf("evaluation storage %s: %s: %v", e.Op, pathErr.Op, pathErr.Err)
	}
	var linkErr *os.LinkError
	if errors.As(e.Err, &linkErr) {
		return fmt.Sprintf("evaluation storage %s: %s: %v", e.Op, linkErr.Op, linkErr.Err)
	}
	return fmt.Sprintf("evaluation storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// EvaluationRepository stores at most one evaluation per key tuple.
//
// departmentID is the ratee's department; sharded backends use it to locate
// the record, relational backends resolve the department with a join.
type EvaluationRepository interface {
	Get(ctx context.Context, departmentID string, key models.EvaluationKey) (models.Evaluation, error)
	Exists(ctx context.Context, departmentID string, key models.EvaluationKey) (bool, error)
	// Upsert replaces the record stored under the key of evaluation, keeping its ID and CreatedAt.
	// On return evaluation holds the stored state.
	Upsert(ctx context.Context, departmentID string, evaluation *models.Evaluation) error
	// ListCompletedForDepartment returns completed records of the department's ratees, newest submission first.
	ListCompletedForDepartment(ctx context.Context, departmentID string) ([]models.Evaluation, error)
	// ListAll returns every stored record across departments, newest submission first.
	ListAll(ctx context.Context) ([]models.Evaluation, error)
}

// sortBySubmittedAt orders newest submissions first; records never submitted go last.
func sortBySubmittedAt(items []models.Evaluation) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].SubmittedAt, items[j].SubmittedAt
		switch {
		case a == nil && b == nil:
			return items[i].ID < items[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Equal(*b):
			return items[i].ID < items[j].ID
		default:
			return a.After(*b)
		}
	})
}
