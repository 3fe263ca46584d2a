package directory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-evaluation-api/internal/models"
)

const rosterTOML = `
[[departments]]
id = "sales"
name = "Sales"
members = ["u1", "u2"]

[[departments]]
id = "ops"
name = "Operations"
members = ["u3", "u1"]

[[forms]]
id = "peer"

[[forms.questions]]
id = "q1"
max_score = 5
required = true

[[forms.questions]]
id = "gate"
max_score = 0
required = true
`

func TestStaticDirectoryFromRosterFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.toml")
	require.NoError(t, os.WriteFile(path, []byte(rosterTOML), 0o600))

	roster, err := LoadRoster(path)
	require.NoError(t, err)
	dir := NewStaticDirectory(roster)
	ctx := context.Background()

	department, err := dir.DepartmentOf(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "sales", department, "first department listing wins")

	department, err = dir.DepartmentOf(ctx, "u3")
	require.NoError(t, err)
	require.Equal(t, "ops", department)

	_, err = dir.DepartmentOf(ctx, "ghost")
	require.ErrorIs(t, err, ErrUserNotFound)

	exists, err := dir.DepartmentExists(ctx, "ops")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = dir.DepartmentExists(ctx, "hr")
	require.NoError(t, err)
	require.False(t, exists)

	questions, err := dir.QuestionsForForm(ctx, "peer")
	require.NoError(t, err)
	require.Equal(t, []models.Question{
		{ID: "q1", MaxScore: 5, Required: true},
		{ID: "gate", MaxScore: 0, Required: true},
	}, questions)

	_, err = dir.QuestionsForForm(ctx, "leadership")
	require.ErrorIs(t, err, ErrFormNotFound)
}

func TestLoadRosterRejectsInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[departments]\nid = "), 0o600))

	_, err := LoadRoster(path)
	require.Error(t, err)
}

func TestGormDirectory(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:directory_test?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Department{}, &models.StaffMember{}, &models.FormQuestion{}))

	require.NoError(t, db.Create(&models.Department{ID: "sales", Name: "Sales"}).Error)
	require.NoError(t, db.Create(&models.StaffMember{ID: "u1", FullName: "Jane", DepartmentID: "sales"}).Error)
	require.NoError(t, db.Create(&[]models.FormQuestion{
		{ID: "q2", FormID: "peer", Position: 2, MaxScore: 5},
		{ID: "q1", FormID: "peer", Position: 1, MaxScore: 5, Required: true},
		{ID: "gate", FormID: "peer", Position: 3, MaxScore: 0},
	}).Error)

	dir := NewGormDirectory(db)
	ctx := context.Background()

	department, err := dir.DepartmentOf(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "sales", department)

	_, err = dir.DepartmentOf(ctx, "u9")
	require.ErrorIs(t, err, ErrUserNotFound)

	exists, err := dir.DepartmentExists(ctx, "sales")
	require.NoError(t, err)
	require.True(t, exists)

	questions, err := dir.QuestionsForForm(ctx, "peer")
	require.NoError(t, err)
	require.Len(t, questions, 3)
	require.Equal(t, "q1", questions[0].ID)
	require.True(t, questions[0].Required)
	require.Equal(t, "gate", questions[2].ID)
	require.True(t, questions[2].IsGate())

	_, err = dir.QuestionsForForm(ctx, "none")
	require.ErrorIs(t, err, ErrFormNotFound)
}

func TestSyncRosterFeedsGormDirectory(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:sync_roster_test?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Department{}, &models.StaffMember{}, &models.FormQuestion{}))

	path := filepath.Join(t.TempDir(), "roster.toml")
	require.NoError(t, os.WriteFile(path, []byte(rosterTOML), 0o600))
	roster, err := LoadRoster(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, SyncRoster(ctx, db, roster))
	require.NoError(t, SyncRoster(ctx, db, roster))

	dir := NewGormDirectory(db)

	department, err := dir.DepartmentOf(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "sales", department)

	var members int64
	require.NoError(t, db.Model(&models.StaffMember{}).Count(&members).Error)
	require.EqualValues(t, 3, members)

	questions, err := dir.QuestionsForForm(ctx, "peer")
	require.NoError(t, err)
	require.Equal(t, []models.Question{
		{ID: "q1", MaxScore: 5, Required: true},
		{ID: "gate", MaxScore: 0, Required: true},
	}, questions)
}
