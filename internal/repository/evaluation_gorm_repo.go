package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-evaluation-api/internal/models"
)

var evaluationKeyColumns = []clause.Column{
	{Name: "rater_id"},
	{Name: "ratee_id"},
	{Name: "form_id"},
	{Name: "period_id"},
}

var evaluationMutableColumns = []string{
	"general_comment",
	"total_score",
	"average_score",
	"completed",
	"disqualified",
	"submitted_at",
	"updated_at",
	"answers",
}

type evaluationGormRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewEvaluationGormRepository stores evaluations in the evaluations table and resolves
// departments through staff_members.
func NewEvaluationGormRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationGormRepository{db: db, now: time.Now}
}

func byKey(db *gorm.DB, key models.EvaluationKey) *gorm.DB {
	return db.Where("rater_id = ? AND ratee_id = ? AND form_id = ? AND period_id = ?",
		key.RaterID, key.RateeID, key.FormID, key.PeriodID)
}

func (r *evaluationGormRepository) Get(ctx context.Context, _ string, key models.EvaluationKey) (models.Evaluation, error) {
	defer observeStore("gorm", "get", time.Now())

	var evaluation models.Evaluation
	if err := byKey(r.db.WithContext(ctx), key).First(&evaluation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Evaluation{}, ErrEvaluationNotFound
		}
		return models.Evaluation{}, storageError("get", err)
	}

	return evaluation, nil
}

func (r *evaluationGormRepository) Exists(ctx context.Context, _ string, key models.EvaluationKey) (bool, error) {
	var count int64
	if err := byKey(r.db.WithContext(ctx).Model(&models.Evaluation{}), key).Count(&count).Error; err != nil {
		return false, storageError("exists", err)
	}
	return count > 0, nil
}

func (r *evaluationGormRepository) Upsert(ctx context.Context, _ string, evaluation *models.Evaluation) error {
	defer observeStore("gorm", "upsert", time.Now())

	if evaluation == nil {
		return errors.New("evaluation must not be nil")
	}

	key := evaluation.Key()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Evaluation
		err := byKey(tx.Select("id", "created_at"), key).First(&existing).Error
		switch {
		case err == nil:
			evaluation.ID = existing.ID
			evaluation.CreatedAt = existing.CreatedAt
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		now := r.now().UTC()
		if evaluation.ID == "" {
			evaluation.ID = uuid.NewString()
		}
		if evaluation.CreatedAt.IsZero() {
			evaluation.CreatedAt = now
		}
		if evaluation.UpdatedAt.IsZero() {
			evaluation.UpdatedAt = now
		}

		// The unique index on the key resolves a concurrent insert into an update of the winner's row.
		if err := tx.Clauses(clause.OnConflict{
			Columns:   evaluationKeyColumns,
			DoUpdates: clause.AssignmentColumns(evaluationMutableColumns),
		}).Create(evaluation).Error; err != nil {
			return err
		}

		var stored models.Evaluation
		if err := byKey(tx, key).First(&stored).Error; err != nil {
			return err
		}
		*evaluation = stored
		return nil
	})

	return storageError("upsert", err)
}

func (r *evaluationGormRepository) ListCompletedForDepartment(ctx context.Context, departmentID string) ([]models.Evaluation, error) {
	defer observeStore("gorm", "list_department", time.Now())

	var evaluations []models.Evaluation
	err := r.db.WithContext(ctx).
		Model(&models.Evaluation{}).
		Select("evaluations.*").
		Joins("JOIN staff_members ON staff_members.id = evaluations.ratee_id").
		Where("staff_members.department_id = ?", departmentID).
		Where("evaluations.completed = ?", true).
		Order("evaluations.submitted_at IS NULL").
		Order("evaluations.submitted_at DESC").
		Order("evaluations.id ASC").
		Find(&evaluations).Error
	if err != nil {
		return nil, storageError("list", err)
	}

	if evaluations == nil {
		evaluations = make([]models.Evaluation, 0)
	}
	return evaluations, nil
}

func (r *evaluationGormRepository) ListAll(ctx context.Context) ([]models.Evaluation, error) {
	defer observeStore("gorm", "list_all", time.Now())

	var evaluations []models.Evaluation
	err := r.db.WithContext(ctx).
		Order("submitted_at IS NULL").
		Order("submitted_at DESC").
		Order("id ASC").
		Find(&evaluations).Error
	if err != nil {
		return nil, storageError("list", err)
	}

	if evaluations == nil {
		evaluations = make([]models.Evaluation, 0)
	}
	return evaluations, nil
}
