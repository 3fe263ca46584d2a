package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-evaluation-api/internal/directory"
	"github.com/noah-isme/gema-evaluation-api/internal/dto"
	"github.com/noah-isme/gema-evaluation-api/internal/models"
	"github.com/noah-isme/gema-evaluation-api/internal/observability"
	"github.com/noah-isme/gema-evaluation-api/internal/repository"
)

// EvaluationStatusService answers read-side questions about stored evaluations.
type EvaluationStatusService interface {
	CheckStatuses(ctx context.Context, payload dto.EvaluationStatusRequest) (dto.EvaluationStatusResponse, error)
	ListDepartmentEvaluations(ctx context.Context, departmentID string) (dto.DepartmentEvaluationsResponse, error)
	GetEvaluation(ctx context.Context, payload dto.EvaluationLookupRequest) (dto.EvaluationResponse, error)
	ListAllEvaluations(ctx context.Context) (dto.EvaluationListResponse, error)
}

type evaluationStatusService struct {
	evaluations repository.EvaluationRepository
	people      directory.Directory
	validator   *validator.Validate
	tracer      trace.Tracer
	logger      zerolog.Logger
}

// NewEvaluationStatusService constructs the status and aggregation service. It reads the
// record store directly so results always reflect the latest upsert.
func NewEvaluationStatusService(evaluations repository.EvaluationRepository, people directory.Directory, validate *validator.Validate, logger zerolog.Logger) EvaluationStatusService {
	return &evaluationStatusService{
		evaluations: evaluations,
		people:      people,
		validator:   validate,
		tracer:      otel.Tracer("github.com/noah-isme/gema-evaluation-api/internal/service/evaluation"),
		logger:      logger.With().Str("component", "evaluation_status_service").Logger(),
	}
}

func (s *evaluationStatusService) CheckStatuses(ctx context.Context, payload dto.EvaluationStatusRequest) (dto.EvaluationStatusResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.EvaluationStatusResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "evaluations.check_statuses", trace.WithAttributes(
		attribute.String("evaluation.rater_id", payload.RaterID),
		attribute.Int("evaluation.ratee_count", len(payload.RateeIDs)),
	))
	defer span.End()

	statuses := make(map[string]bool, len(payload.RateeIDs))
	for _, rateeID := range payload.RateeIDs {
		if _, done := statuses[rateeID]; done {
			continue
		}

		completed, err := s.completed(ctx, models.EvaluationKey{
			RaterID:  payload.RaterID,
			RateeID:  rateeID,
			FormID:   payload.FormID,
			PeriodID: payload.PeriodID,
		})
		if err != nil {
			span.RecordError(err)
			return dto.EvaluationStatusResponse{}, err
		}
		statuses[rateeID] = completed
	}

	return dto.EvaluationStatusResponse{Statuses: statuses}, nil
}

func (s *evaluationStatusService) completed(ctx context.Context, key models.EvaluationKey) (bool, error) {
	observability.EvaluationStatusLookups().Inc()

	departmentID, err := s.people.DepartmentOf(ctx, key.RateeID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}

	evaluation, err := s.evaluations.Get(ctx, departmentID, key)
	switch {
	case err == nil:
		return evaluation.Completed, nil
	case errors.Is(err, repository.ErrEvaluationNotFound):
		return false, nil
	case errors.Is(err, repository.ErrCorruptRecord):
		s.logger.Warn().Err(err).Str("ratee_id", key.RateeID).Msg("unreadable evaluation reported as not completed")
		return false, nil
	default:
		return false, err
	}
}

func (s *evaluationStatusService) ListDepartmentEvaluations(ctx context.Context, departmentID string) (dto.DepartmentEvaluationsResponse, error) {
	departmentID = strings.TrimSpace(departmentID)
	if !repository.ValidIdentifier(departmentID) {
		return dto.DepartmentEvaluationsResponse{}, fmt.Errorf("%w: department_id", ErrInvalidIdentifier)
	}

	ctx, span := s.tracer.Start(ctx, "evaluations.list_department", trace.WithAttributes(
		attribute.String("evaluation.department_id", departmentID),
	))
	defer span.End()

	exists, err := s.people.DepartmentExists(ctx, departmentID)
	if err != nil {
		span.RecordError(err)
		return dto.DepartmentEvaluationsResponse{}, err
	}
	if !exists {
		return dto.DepartmentEvaluationsResponse{}, ErrDepartmentNotFound
	}

	items, err := s.evaluations.ListCompletedForDepartment(ctx, departmentID)
	if err != nil {
		span.RecordError(err)
		return dto.DepartmentEvaluationsResponse{}, err
	}

	span.SetAttributes(attribute.Int("evaluation.count", len(items)))

	return dto.DepartmentEvaluationsResponse{
		DepartmentID: departmentID,
		Items:        dto.NewEvaluationResponseSlice(items),
	}, nil
}

func (s *evaluationStatusService) ListAllEvaluations(ctx context.Context) (dto.EvaluationListResponse, error) {
	ctx, span := s.tracer.Start(ctx, "evaluations.list_all")
	defer span.End()

	items, err := s.evaluations.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		return dto.EvaluationListResponse{}, err
	}

	span.SetAttributes(attribute.Int("evaluation.count", len(items)))
	return dto.EvaluationListResponse{Items: dto.NewEvaluationResponseSlice(items)}, nil
}

func (s *evaluationStatusService) GetEvaluation(ctx context.Context, payload dto.EvaluationLookupRequest) (dto.EvaluationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.EvaluationResponse{}, err
	}

	key := models.EvaluationKey{
		RaterID:  payload.RaterID,
		RateeID:  payload.RateeID,
		FormID:   payload.FormID,
		PeriodID: payload.PeriodID,
	}

	departmentID, err := s.people.DepartmentOf(ctx, key.RateeID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return dto.EvaluationResponse{}, ErrRateeNotFound
		}
		return dto.EvaluationResponse{}, err
	}

	evaluation, err := s.evaluations.Get(ctx, departmentID, key)
	if err != nil {
		if errors.Is(err, repository.ErrEvaluationNotFound) {
			return dto.EvaluationResponse{}, ErrEvaluationNotFound
		}
		return dto.EvaluationResponse{}, err
	}

	return dto.NewEvaluationResponse(evaluation), nil
}
