package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-evaluation-api/internal/directory"
	"github.com/noah-isme/gema-evaluation-api/internal/dto"
	"github.com/noah-isme/gema-evaluation-api/internal/lock"
	"github.com/noah-isme/gema-evaluation-api/internal/models"
	"github.com/noah-isme/gema-evaluation-api/internal/observability"
	"github.com/noah-isme/gema-evaluation-api/internal/repository"
	"github.com/noah-isme/gema-evaluation-api/internal/scoring"
)

// EvaluationSubmissionService scores and stores evaluation submissions.
type EvaluationSubmissionService interface {
	Submit(ctx context.Context, payload dto.EvaluationSubmitRequest) (dto.EvaluationResponse, error)
}

type evaluationSubmissionService struct {
	evaluations repository.EvaluationRepository
	people      directory.Directory
	forms       directory.QuestionSource
	locker      lock.Locker
	publisher   EvaluationEventPublisher
	validator   *validator.Validate
	policy      scoring.GatePolicy
	sanitizer   *bluemonday.Policy
	tracer      trace.Tracer
	logger      zerolog.Logger
	now         func() time.Time
}

// NewEvaluationSubmissionService constructs the submission workflow.
// forms and publisher are optional; a nil locker falls back to an in-process keyed mutex.
func NewEvaluationSubmissionService(
	evaluations repository.EvaluationRepository,
	people directory.Directory,
	forms directory.QuestionSource,
	locker lock.Locker,
	publisher EvaluationEventPublisher,
	validate *validator.Validate,
	policy scoring.GatePolicy,
	logger zerolog.Logger,
) EvaluationSubmissionService {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	if policy == "" {
		policy = scoring.UnansweredGateCompliant
	}

	return &evaluationSubmissionService{
		evaluations: evaluations,
		people:      people,
		forms:       forms,
		locker:      locker,
		publisher:   publisher,
		validator:   validate,
		policy:      policy,
		sanitizer:   bluemonday.StrictPolicy(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-evaluation-api/internal/service/evaluation"),
		logger:      logger.With().Str("component", "evaluation_submission_service").Logger(),
		now:         time.Now,
	}
}

func (s *evaluationSubmissionService) Submit(ctx context.Context, payload dto.EvaluationSubmitRequest) (dto.EvaluationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		observability.EvaluationSubmissions().WithLabelValues("rejected").Inc()
		return dto.EvaluationResponse{}, err
	}

	key := models.EvaluationKey{
		RaterID:  payload.RaterID,
		RateeID:  payload.RateeID,
		FormID:   payload.FormID,
		PeriodID: payload.PeriodID,
	}

	ctx, span := s.tracer.Start(ctx, "evaluations.submit", trace.WithAttributes(
		attribute.String("evaluation.rater_id", key.RaterID),
		attribute.String("evaluation.ratee_id", key.RateeID),
		attribute.String("evaluation.form_id", key.FormID),
		attribute.String("evaluation.period_id", key.PeriodID),
	))
	defer span.End()

	response, err := s.submit(ctx, key, payload)
	if err != nil {
		span.RecordError(err)
		if isClientError(err) {
			observability.EvaluationSubmissions().WithLabelValues("rejected").Inc()
		} else {
			observability.EvaluationSubmissions().WithLabelValues("failed").Inc()
		}
		return dto.EvaluationResponse{}, err
	}

	return response, nil
}

func (s *evaluationSubmissionService) submit(ctx context.Context, key models.EvaluationKey, payload dto.EvaluationSubmitRequest) (dto.EvaluationResponse, error) {
	questions, err := s.resolveQuestions(ctx, payload)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}

	answers := s.normalizeAnswers(payload.Answers)
	if err := checkAnswers(questions, answers); err != nil {
		return dto.EvaluationResponse{}, err
	}

	departmentID, err := s.people.DepartmentOf(ctx, key.RateeID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return dto.EvaluationResponse{}, ErrRateeNotFound
		}
		return dto.EvaluationResponse{}, err
	}

	unlock, err := s.locker.Lock(ctx, lockKey(key))
	if err != nil {
		return dto.EvaluationResponse{}, fmt.Errorf("lock evaluation: %w", err)
	}
	defer unlock()

	existing, err := s.evaluations.Get(ctx, departmentID, key)
	resubmission := err == nil
	switch {
	case err == nil, errors.Is(err, repository.ErrEvaluationNotFound):
	case errors.Is(err, repository.ErrCorruptRecord):
		s.logger.Warn().Err(err).Str("department_id", departmentID).Msg("replacing unreadable evaluation")
	default:
		return dto.EvaluationResponse{}, err
	}

	result := scoring.Compute(questions, answers, s.policy)
	now := s.now().UTC()

	record := models.Evaluation{
		RaterID:        key.RaterID,
		RateeID:        key.RateeID,
		FormID:         key.FormID,
		PeriodID:       key.PeriodID,
		GeneralComment: s.sanitize(payload.GeneralComment),
		TotalScore:     result.TotalScore,
		AverageScore:   result.AverageScore,
		Completed:      true,
		Disqualified:   result.Disqualified,
		SubmittedAt:    &now,
		CreatedAt:      now,
		UpdatedAt:      now,
		Answers:        datatypes.JSONSlice[models.Answer](answers),
	}
	if resubmission {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
	}

	if err := s.evaluations.Upsert(ctx, departmentID, &record); err != nil {
		s.logger.Error().Err(err).Str("department_id", departmentID).Msg("failed to store evaluation")
		return dto.EvaluationResponse{}, err
	}

	outcome := "created"
	if resubmission {
		outcome = "updated"
	}
	observability.EvaluationSubmissions().WithLabelValues(outcome).Inc()
	if record.Disqualified {
		observability.EvaluationDisqualified().Inc()
	}

	response := dto.NewEvaluationResponse(record)
	if s.publisher != nil {
		event := EvaluationEvent{
			Type:         EvaluationSubmittedEvent,
			DepartmentID: departmentID,
			Resubmission: resubmission,
			Evaluation:   response,
			OccurredAt:   now,
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn().Err(err).Str("evaluation_id", record.ID).Msg("failed to publish evaluation event")
		}
	}

	s.logger.Info().
		Str("evaluation_id", record.ID).
		Str("department_id", departmentID).
		Bool("resubmission", resubmission).
		Bool("disqualified", record.Disqualified).
		Float64("average_score", record.AverageScore).
		Msg("evaluation submitted")

	return response, nil
}

func (s *evaluationSubmissionService) resolveQuestions(ctx context.Context, payload dto.EvaluationSubmitRequest) ([]models.Question, error) {
	if len(payload.Questions) > 0 {
		questions := make([]models.Question, 0, len(payload.Questions))
		for _, question := range payload.Questions {
			questions = append(questions, models.Question{
				ID:       strings.TrimSpace(question.ID),
				MaxScore: question.MaxScore,
				Required: question.Required,
			})
		}
		return questions, nil
	}

	if s.forms == nil {
		return nil, nil
	}

	questions, err := s.forms.QuestionsForForm(ctx, payload.FormID)
	if err != nil {
		if errors.Is(err, directory.ErrFormNotFound) {
			return nil, ErrFormNotFound
		}
		return nil, err
	}
	return questions, nil
}

func (s *evaluationSubmissionService) normalizeAnswers(items []dto.EvaluationAnswerRequest) []models.Answer {
	answers := make([]models.Answer, 0, len(items))
	for _, item := range items {
		answers = append(answers, models.Answer{
			QuestionID: strings.TrimSpace(item.QuestionID),
			Score:      item.Score,
			Comment:    s.sanitize(item.Comment),
		})
	}
	return answers
}

func (s *evaluationSubmissionService) sanitize(value string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(value))
}

// checkAnswers rejects scores outside a question's range and required gates left unanswered.
// Answers to questions outside the set are kept but never scored.
func checkAnswers(questions []models.Question, answers []models.Answer) error {
	answered := make(map[string]struct{}, len(answers))
	byID := make(map[string]models.Question, len(questions))
	for _, question := range questions {
		byID[question.ID] = question
	}

	for _, answer := range answers {
		answered[answer.QuestionID] = struct{}{}
		question, ok := byID[answer.QuestionID]
		if !ok {
			continue
		}
		if question.IsGate() {
			if answer.Score != 0 && answer.Score != scoring.GateViolationScore {
				return fmt.Errorf("%w: compliance question %s accepts 0 or 1", ErrInvalidAnswer, question.ID)
			}
			continue
		}
		if answer.Score < 0 || answer.Score > float64(question.MaxScore) {
			return fmt.Errorf("%w: question %s accepts 0 to %d", ErrInvalidAnswer, question.ID, question.MaxScore)
		}
	}

	for _, question := range questions {
		if !question.IsGate() || !question.Required {
			continue
		}
		if _, ok := answered[question.ID]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingGateAnswer, question.ID)
		}
	}

	return nil
}

func lockKey(key models.EvaluationKey) string {
	return strings.Join([]string{key.RaterID, key.RateeID, key.FormID, key.PeriodID}, ":")
}

func isClientError(err error) bool {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrors),
		errors.Is(err, ErrInvalidAnswer),
		errors.Is(err, ErrMissingGateAnswer),
		errors.Is(err, ErrInvalidIdentifier),
		errors.Is(err, ErrRateeNotFound),
		errors.Is(err, ErrFormNotFound):
		return true
	default:
		return false
	}
}
