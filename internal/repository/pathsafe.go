package repository

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/noah-isme/gema-evaluation-api/internal/models"
)

var identifierPattern = regexp.MustCompile(`^[-_a-zA-Z0-9]{1,64}$`)

// ValidIdentifier reports whether value may be used as a directory or file name segment.
func ValidIdentifier(value string) bool {
	return identifierPattern.MatchString(value)
}

// ValidateKey checks every component of the key against the identifier allow-list.
func ValidateKey(key models.EvaluationKey) error {
	fields := []struct {
		name  string
		value string
	}{
		{"rater_id", key.RaterID},
		{"ratee_id", key.RateeID},
		{"form_id", key.FormID},
		{"period_id", key.PeriodID},
	}
	for _, field := range fields {
		if !ValidIdentifier(field.value) {
			return fmt.Errorf("%w: %s", ErrInvalidIdentifier, field.name)
		}
	}
	return nil
}

// shardDir resolves the department directory and verifies it stays inside baseDir.
func shardDir(baseDir, departmentID string) (string, error) {
	if !ValidIdentifier(departmentID) {
		return "", fmt.Errorf("%w: department_id", ErrInvalidIdentifier)
	}

	resolved, err := filepath.Abs(filepath.Join(baseDir, departmentID))
	if err != nil {
		return "", fmt.Errorf("%w: department_id", ErrInvalidIdentifier)
	}
	if !within(baseDir, resolved) {
		return "", fmt.Errorf("%w: department_id", ErrInvalidIdentifier)
	}

	return resolved, nil
}

func within(baseDir, target string) bool {
	rel, err := filepath.Rel(baseDir, target)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || filepath.IsAbs(rel) {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// segmentEscaper rewrites '_' inside an id to '~', which the allow-list never accepts,
// so the '_' separators of a record file name are unambiguous.
var segmentEscaper = strings.NewReplacer("_", "~")

// recordFileName maps a key to its file name. Distinct keys never share a name.
func recordFileName(key models.EvaluationKey) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s_%s_%s.json",
		segmentEscaper.Replace(key.RaterID),
		segmentEscaper.Replace(key.RateeID),
		segmentEscaper.Replace(key.FormID),
		segmentEscaper.Replace(key.PeriodID),
	), nil
}
