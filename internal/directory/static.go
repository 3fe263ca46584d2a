package directory

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/noah-isme/gema-evaluation-api/internal/models"
)

// Roster is the TOML document backing a StaticDirectory.
type Roster struct {
	Departments []RosterDepartment `toml:"departments"`
	Forms       []RosterForm       `toml:"forms"`
}

// RosterDepartment lists the members of one department.
type RosterDepartment struct {
	ID      string   `toml:"id"`
	Name    string   `toml:"name"`
	Members []string `toml:"members"`
}

// RosterForm lists the questions of one form in display order.
type RosterForm struct {
	ID        string            `toml:"id"`
	Questions []models.Question `toml:"questions"`
}

// LoadRoster reads a roster file from disk.
func LoadRoster(path string) (Roster, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Roster{}, fmt.Errorf("read roster: %w", err)
	}

	var roster Roster
	if err := toml.Unmarshal(content, &roster); err != nil {
		return Roster{}, fmt.Errorf("parse roster: %w", err)
	}

	return roster, nil
}

// StaticDirectory serves directory lookups from an in-memory roster.
type StaticDirectory struct {
	departments map[string]struct{}
	members     map[string]string
	forms       map[string][]models.Question
}

// NewStaticDirectory indexes the roster. A user listed in two departments keeps the first.
func NewStaticDirectory(roster Roster) *StaticDirectory {
	d := &StaticDirectory{
		departments: make(map[string]struct{}, len(roster.Departments)),
		members:     make(map[string]string),
		forms:       make(map[string][]models.Question, len(roster.Forms)),
	}

	for _, department := range roster.Departments {
		id := strings.TrimSpace(department.ID)
		if id == "" {
			continue
		}
		d.departments[id] = struct{}{}
		for _, member := range department.Members {
			member = strings.TrimSpace(member)
			if _, exists := d.members[member]; member == "" || exists {
				continue
			}
			d.members[member] = id
		}
	}

	for _, form := range roster.Forms {
		questions := make([]models.Question, len(form.Questions))
		copy(questions, form.Questions)
		d.forms[strings.TrimSpace(form.ID)] = questions
	}

	return d
}

func (d *StaticDirectory) DepartmentOf(_ context.Context, userID string) (string, error) {
	department, ok := d.members[userID]
	if !ok {
		return "", ErrUserNotFound
	}
	return department, nil
}

func (d *StaticDirectory) DepartmentExists(_ context.Context, departmentID string) (bool, error) {
	_, ok := d.departments[departmentID]
	return ok, nil
}

func (d *StaticDirectory) QuestionsForForm(_ context.Context, formID string) ([]models.Question, error) {
	questions, ok := d.forms[formID]
	if !ok || len(questions) == 0 {
		return nil, ErrFormNotFound
	}

	result := make([]models.Question, len(questions))
	copy(result, questions)
	return result, nil
}
