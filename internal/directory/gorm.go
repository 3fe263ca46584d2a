package directory

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-evaluation-api/internal/models"
)

// GormDirectory reads staff, departments and form questions from the relational database.
type GormDirectory struct {
	db *gorm.DB
}

// NewGormDirectory instantiates the directory.
func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func (d *GormDirectory) DepartmentOf(ctx context.Context, userID string) (string, error) {
	var member models.StaffMember
	err := d.db.WithContext(ctx).
		Select("id", "department_id").
		Where("id = ?", userID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}

	return member.DepartmentID, nil
}

func (d *GormDirectory) DepartmentExists(ctx context.Context, departmentID string) (bool, error) {
	var count int64
	if err := d.db.WithContext(ctx).
		Model(&models.Department{}).
		Where("id = ?", departmentID).
		Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}

func (d *GormDirectory) QuestionsForForm(ctx context.Context, formID string) ([]models.Question, error) {
	var rows []models.FormQuestion
	if err := d.db.WithContext(ctx).
		Where("form_id = ?", formID).
		Order("position ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, ErrFormNotFound
	}

	questions := make([]models.Question, 0, len(rows))
	for _, row := range rows {
		questions = append(questions, row.AsQuestion())
	}

	return questions, nil
}

// SyncRoster upserts the roster's departments, members and forms into the directory
// tables so the relational record store can join on staff_members.
func SyncRoster(ctx context.Context, db *gorm.DB, roster Roster) error {
	directory := NewStaticDirectory(roster)

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, department := range roster.Departments {
			if _, ok := directory.departments[department.ID]; !ok {
				continue
			}
			row := models.Department{ID: department.ID, Name: department.Name}
			if row.Name == "" {
				row.Name = department.ID
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
			}).Create(&row).Error; err != nil {
				return err
			}
		}

		for member, departmentID := range directory.members {
			row := models.StaffMember{ID: member, DepartmentID: departmentID}
			if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"department_id", "updated_at"}),
			}).Create(&row).Error; err != nil {
				return err
			}
		}

		for formID, questions := range directory.forms {
			for position, question := range questions {
				row := models.FormQuestion{
					FormID:   formID,
					ID:       question.ID,
					Position: position,
					MaxScore: question.MaxScore,
					Required: question.Required,
				}
				if err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "form_id"}, {Name: "id"}},
					DoUpdates: clause.AssignmentColumns([]string{"position", "max_score", "required", "updated_at"}),
				}).Create(&row).Error; err != nil {
					return err
				}
			}
		}

		return nil
	})
}
