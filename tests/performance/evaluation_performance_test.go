package performance_test

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-evaluation-api/internal/directory"
	"github.com/noah-isme/gema-evaluation-api/internal/dto"
	"github.com/noah-isme/gema-evaluation-api/internal/handler"
	"github.com/noah-isme/gema-evaluation-api/internal/lock"
	"github.com/noah-isme/gema-evaluation-api/internal/models"
	"github.com/noah-isme/gema-evaluation-api/internal/repository"
	"github.com/noah-isme/gema-evaluation-api/internal/scoring"
	"github.com/noah-isme/gema-evaluation-api/internal/service"
	"github.com/noah-isme/gema-evaluation-api/internal/utils"
)

const seededRatees = 50

func setupDepartmentListingApp(t *testing.T) *fiber.App {
	t.Helper()

	repo, err := repository.NewEvaluationFileRepository(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	members := make([]string, 0, seededRatees)
	for i := 0; i < seededRatees; i++ {
		members = append(members, fmt.Sprintf("staff-%03d", i))
	}
	people := directory.NewStaticDirectory(directory.Roster{
		Departments: []directory.RosterDepartment{{ID: "sales", Members: members}},
		Forms: []directory.RosterForm{{ID: "peer", Questions: []models.Question{
			{ID: "q1", MaxScore: 5},
			{ID: "q2", MaxScore: 5},
		}}},
	})

	validate := utils.NewValidator()
	submissions := service.NewEvaluationSubmissionService(repo, people, people, lock.NewKeyedMutex(), nil, validate, scoring.UnansweredGateCompliant, zerolog.Nop())
	statuses := service.NewEvaluationStatusService(repo, people, validate, zerolog.Nop())

	// Four raters per ratee.
	for _, ratee := range members {
		for r := 0; r < 4; r++ {
			_, err := submissions.Submit(context.Background(), dto.EvaluationSubmitRequest{
				RaterID:  fmt.Sprintf("rater-%d", r),
				RateeID:  ratee,
				FormID:   "peer",
				PeriodID: "2024q1",
				Answers: []dto.EvaluationAnswerRequest{
					{QuestionID: "q1", Score: float64(r%5 + 1)},
					{QuestionID: "q2", Score: 3},
				},
			})
			require.NoError(t, err)
		}
	}

	app := fiber.New()
	handler.NewEvaluationHandler(submissions, statuses, zerolog.Nop()).Register(app.Group("/api/v1/evaluations"), handler.Routes{})
	return app
}

func TestDepartmentListingP95LatencyBelow250ms(t *testing.T) {
	if testing.Short() {
		t.Skip("performance test")
	}
	app := setupDepartmentListingApp(t)

	runs := 30
	durations := make([]time.Duration, 0, runs)

	for i := 0; i < runs; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/evaluations/departments/sales", nil)
		start := time.Now()
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		durations = append(durations, time.Since(start))
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	index := int(math.Ceil(0.95*float64(len(durations)))) - 1
	if index < 0 {
		index = 0
	}

	require.LessOrEqual(t, durations[index], 250*time.Millisecond)
}
