package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-evaluation-api/internal/dto"
	"github.com/noah-isme/gema-evaluation-api/internal/lock"
	"github.com/noah-isme/gema-evaluation-api/internal/repository"
	"github.com/noah-isme/gema-evaluation-api/internal/service"
	"github.com/noah-isme/gema-evaluation-api/internal/utils"
)

// EvaluationHandler exposes the evaluation submission and reporting endpoints.
type EvaluationHandler struct {
	submissions service.EvaluationSubmissionService
	statuses    service.EvaluationStatusService
	logger      zerolog.Logger
}

// NewEvaluationHandler builds an evaluation handler instance.
func NewEvaluationHandler(submissions service.EvaluationSubmissionService, statuses service.EvaluationStatusService, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		submissions: submissions,
		statuses:    statuses,
		logger:      logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Routes groups the per-route middleware the router may attach.
type Routes struct {
	Submit     []fiber.Handler
	Department []fiber.Handler
	All        []fiber.Handler
}

// Register attaches the routes to the provided router group.
func (h *EvaluationHandler) Register(router fiber.Router, routes Routes) {
	router.Get("", h.get)
	router.Post("/submit", append(routes.Submit, h.submit)...)
	router.Post("/status", h.status)
	router.Get("/departments", append(routes.All, h.listAll)...)
	router.Get("/departments/:departmentId", append(routes.Department, h.listDepartment)...)
}

func (h *EvaluationHandler) submit(c *fiber.Ctx) error {
	var payload dto.EvaluationSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if !actingAs(c, payload.RaterID) {
		return utils.SendError(c, fiber.StatusForbidden, "cannot submit on behalf of another rater")
	}

	evaluation, err := h.submissions.Submit(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "evaluation submitted", evaluation)
}

func (h *EvaluationHandler) status(c *fiber.Ctx) error {
	var payload dto.EvaluationStatusRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if !actingAs(c, payload.RaterID) {
		return utils.SendError(c, fiber.StatusForbidden, "cannot read another rater's statuses")
	}

	statuses, err := h.statuses.CheckStatuses(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "evaluation statuses retrieved", statuses)
}

func (h *EvaluationHandler) listDepartment(c *fiber.Ctx) error {
	departmentID := c.Params("departmentId")

	evaluations, err := h.statuses.ListDepartmentEvaluations(c.UserContext(), departmentID)
	if errors.Is(err, service.ErrDepartmentNotFound) {
		return utils.SendSuccess(c, "department evaluations retrieved", dto.DepartmentEvaluationsResponse{
			DepartmentID: departmentID,
			Items:        []dto.EvaluationResponse{},
		})
	}
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "department evaluations retrieved", evaluations)
}

func (h *EvaluationHandler) listAll(c *fiber.Ctx) error {
	evaluations, err := h.statuses.ListAllEvaluations(c.UserContext())
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "evaluations retrieved", evaluations)
}

func (h *EvaluationHandler) get(c *fiber.Ctx) error {
	var payload dto.EvaluationLookupRequest
	if err := c.QueryParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}
	if !actingAs(c, payload.RaterID) {
		return utils.SendError(c, fiber.StatusForbidden, "cannot read another rater's evaluation")
	}

	evaluation, err := h.statuses.GetEvaluation(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "evaluation retrieved", evaluation)
}

func (h *EvaluationHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	var storageErr *repository.StorageError
	switch {
	case errors.As(err, &validationErrors):
		return utils.SendValidationError(c, validationErrors)
	case errors.Is(err, service.ErrInvalidIdentifier),
		errors.Is(err, service.ErrInvalidAnswer),
		errors.Is(err, service.ErrMissingGateAnswer):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrRateeNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "ratee not found")
	case errors.Is(err, service.ErrFormNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "form not found")
	case errors.Is(err, service.ErrEvaluationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "evaluation not found")
	case errors.Is(err, lock.ErrLockTimeout):
		return utils.SendError(c, fiber.StatusConflict, "evaluation is being updated, retry shortly")
	case errors.As(err, &storageErr):
		requestLogger(h.logger, c).Error().Err(err).Msg("evaluation storage failure")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to persist evaluation")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
