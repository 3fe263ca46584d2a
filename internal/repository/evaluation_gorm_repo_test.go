package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-evaluation-api/internal/models"
)

func setupEvaluationTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Department{}, &models.StaffMember{}, &models.Evaluation{}))

	require.NoError(t, db.Create(&[]models.Department{{ID: "d1", Name: "Sales"}, {ID: "d2", Name: "Ops"}}).Error)
	require.NoError(t, db.Create(&[]models.StaffMember{
		{ID: "a", FullName: "Anna", DepartmentID: "d1"},
		{ID: "b", FullName: "Ben", DepartmentID: "d1"},
		{ID: "c", FullName: "Chi", DepartmentID: "d2"},
	}).Error)
	return db
}

func TestGormRepositoryUpsertKeepsSingleRecord(t *testing.T) {
	db := setupEvaluationTestDB(t)
	repo := NewEvaluationGormRepository(db)
	ctx := context.Background()
	key := models.EvaluationKey{RaterID: "r1", RateeID: "a", FormID: "peer", PeriodID: "p1"}

	first := completedEvaluation(key, 4, time.Now().Add(-time.Hour))
	require.NoError(t, repo.Upsert(ctx, "d1", first))
	require.NotEmpty(t, first.ID)

	second := completedEvaluation(key, 2, time.Now())
	second.GeneralComment = "revised"
	second.Disqualified = true
	require.NoError(t, repo.Upsert(ctx, "d1", second))
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.Evaluation{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	stored, err := repo.Get(ctx, "d1", key)
	require.NoError(t, err)
	require.Equal(t, first.ID, stored.ID)
	require.Equal(t, "revised", stored.GeneralComment)
	require.True(t, stored.Disqualified)
	require.InDelta(t, 2.0, stored.AverageScore, 1e-9)
	require.Len(t, stored.Answers, 2)
	require.Equal(t, "q1", stored.Answers[0].QuestionID)

	exists, err := repo.Exists(ctx, "d1", key)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestGormRepositoryGetMissing(t *testing.T) {
	repo := NewEvaluationGormRepository(setupEvaluationTestDB(t))
	key := models.EvaluationKey{RaterID: "r1", RateeID: "a", FormID: "peer", PeriodID: "p1"}

	_, err := repo.Get(context.Background(), "d1", key)
	require.ErrorIs(t, err, ErrEvaluationNotFound)

	exists, err := repo.Exists(context.Background(), "d1", key)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestGormRepositoryListsByRateeDepartment(t *testing.T) {
	repo := NewEvaluationGormRepository(setupEvaluationTestDB(t))
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Upsert(ctx, "d1", completedEvaluation(models.EvaluationKey{RaterID: "c", RateeID: "a", FormID: "f", PeriodID: "p"}, 4, now.Add(-2*time.Hour))))
	require.NoError(t, repo.Upsert(ctx, "d1", completedEvaluation(models.EvaluationKey{RaterID: "c", RateeID: "b", FormID: "f", PeriodID: "p"}, 3, now)))
	require.NoError(t, repo.Upsert(ctx, "d2", completedEvaluation(models.EvaluationKey{RaterID: "a", RateeID: "c", FormID: "f", PeriodID: "p"}, 5, now)))

	unsubmitted := completedEvaluation(models.EvaluationKey{RaterID: "c", RateeID: "a", FormID: "f", PeriodID: "p0"}, 2, now)
	unsubmitted.SubmittedAt = nil
	require.NoError(t, repo.Upsert(ctx, "d1", unsubmitted))

	draft := completedEvaluation(models.EvaluationKey{RaterID: "b", RateeID: "a", FormID: "f", PeriodID: "p"}, 1, now)
	draft.Completed = false
	require.NoError(t, repo.Upsert(ctx, "d1", draft))

	items, err := repo.ListCompletedForDepartment(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, "b", items[0].RateeID)
	require.Equal(t, "a", items[1].RateeID)
	require.Equal(t, "p", items[1].PeriodID)
	require.Nil(t, items[2].SubmittedAt, "unsubmitted records sort last")
	for _, item := range items {
		require.NotEqual(t, "c", item.RateeID, "ratee from another department leaked into listing")
	}

	d2, err := repo.ListCompletedForDepartment(ctx, "d2")
	require.NoError(t, err)
	require.Len(t, d2, 1)

	none, err := repo.ListCompletedForDepartment(ctx, "d9")
	require.NoError(t, err)
	require.NotNil(t, none)
	require.Empty(t, none)
}

func TestGormRepositoryListAllSpansDepartments(t *testing.T) {
	repo := NewEvaluationGormRepository(setupEvaluationTestDB(t))
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Upsert(ctx, "d1", completedEvaluation(models.EvaluationKey{RaterID: "c", RateeID: "a", FormID: "f", PeriodID: "p"}, 4, now.Add(-time.Hour))))
	require.NoError(t, repo.Upsert(ctx, "d2", completedEvaluation(models.EvaluationKey{RaterID: "a", RateeID: "c", FormID: "f", PeriodID: "p"}, 5, now)))

	draft := completedEvaluation(models.EvaluationKey{RaterID: "b", RateeID: "a", FormID: "f", PeriodID: "p"}, 1, now)
	draft.Completed = false
	draft.SubmittedAt = nil
	require.NoError(t, repo.Upsert(ctx, "d1", draft))

	items, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, "c", items[0].RateeID)
	require.Equal(t, "a", items[1].RateeID)
	require.Nil(t, items[2].SubmittedAt)
}

func TestGormRepositoryConcurrentUpsertsConverge(t *testing.T) {
	db := setupEvaluationTestDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	repo := NewEvaluationGormRepository(db)
	key := models.EvaluationKey{RaterID: "r1", RateeID: "a", FormID: "peer", PeriodID: "p1"}

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			evaluation := completedEvaluation(key, float64(i%5+1), time.Now())
			if err := repo.Upsert(context.Background(), "d1", evaluation); err != nil {
				t.Error(err)
				return
			}
			ids[i] = evaluation.ID
		}(i)
	}
	wg.Wait()

	var count int64
	require.NoError(t, db.Model(&models.Evaluation{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
	for _, id := range ids {
		require.Equal(t, ids[0], id)
	}
}
