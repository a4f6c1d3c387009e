// Package web provides the REST API that receives candidate events from the CRM and exposes
// workflows and their executions.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/workflow"
)

const (
	// UserIDHeader names the user a manual run is executed on behalf of.
	UserIDHeader = "X-User-ID"

	defaultExecutionLimit = 20
	maxExecutionLimit     = 100
)

// ManualRunner runs a workflow for one candidate and waits for the closed record.
type ManualRunner interface {
	RunManual(ctx context.Context, workflowID, candidateID, executedBy string) (*models.WorkflowExecution, error)
}

type APIHandlers struct {
	repository *workflow.Repository
	runner     ManualRunner
	sink       EventSink
	validator  *validator.Validate
}

func NewAPIHandlers(
	repository *workflow.Repository,
	runner ManualRunner,
	sink EventSink,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		repository: repository,
		runner:     runner,
		sink:       sink,
		validator:  validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.repository.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Recruitflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		message = "Recruitflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// Candidate events

func (h *APIHandlers) StatusChanged(c fiber.Ctx) error {
	var req StatusChangedRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	return h.accept(c, models.StatusChangedEvent(req.CandidateID, req.OldStatus, req.NewStatus))
}

func (h *APIHandlers) TagAdded(c fiber.Ctx) error {
	var req TagRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	return h.accept(c, models.TagAddedEvent(req.CandidateID, req.Tag))
}

func (h *APIHandlers) TagRemoved(c fiber.Ctx) error {
	var req TagRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	return h.accept(c, models.TagRemovedEvent(req.CandidateID, req.Tag))
}

func (h *APIHandlers) DaysInStage(c fiber.Ctx) error {
	var req DaysInStageRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	return h.accept(c, models.DaysInStageEvent(req.CandidateID, *req.DaysInStage))
}

func (h *APIHandlers) Score(c fiber.Ctx) error {
	var req ScoreRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	return h.accept(c, models.ScoreThresholdEvent(req.CandidateID, *req.Score))
}

var errInvalidJSON = errors.New("invalid JSON format")

// bind decodes and validates the request body.
func (h *APIHandlers) bind(c fiber.Ctx, req any) error {
	if err := c.Bind().JSON(req); err != nil {
		return errInvalidJSON
	}

	return h.validator.Struct(req)
}

func (h *APIHandlers) accept(c fiber.Ctx, event models.EventContext) error {
	executions, queued, err := h.sink.Accept(c.Context(), event)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(EventAcceptedResponse{
		Event:      event,
		Queued:     queued,
		Executions: executions,
	})
}

// Workflows

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.repository.FetchAll(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	if activeStr := c.Query("active"); activeStr != "" {
		active, err := strconv.ParseBool(activeStr)
		if err != nil {
			return badRequest(c, "Invalid query parameters: "+err.Error())
		}

		filtered := make([]*models.Workflow, 0, len(workflows))
		for _, wf := range workflows {
			if wf.IsActive == active {
				filtered = append(filtered, wf)
			}
		}

		workflows = filtered
	}

	return c.JSON(fiber.Map{
		"workflows":   workflows,
		"total_count": len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	wf, err := h.repository.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(wf)
}

// ImportWorkflow creates a workflow from a JSON definition, or replaces the one whose id
// the definition names.
func (h *APIHandlers) ImportWorkflow(c fiber.Ctx) error {
	body := c.Body()
	if !json.Valid(body) {
		return badRequest(c, "Invalid JSON format")
	}

	wf, err := h.repository.Import(c.Context(), body)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(wf)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	body := c.Body()
	if !json.Valid(body) {
		return badRequest(c, "Invalid JSON format")
	}

	definition, err := models.ParseWorkflowDefinition(body)
	if err != nil {
		return handleServiceError(c, err)
	}

	updated, err := h.repository.Update(c.Context(), c.Params("id"), definition)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) ActivateWorkflow(c fiber.Ctx) error {
	return h.setActive(c, true)
}

func (h *APIHandlers) DeactivateWorkflow(c fiber.Ctx) error {
	return h.setActive(c, false)
}

func (h *APIHandlers) setActive(c fiber.Ctx, active bool) error {
	wf, err := h.repository.SetActive(c.Context(), c.Params("id"), active)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(wf)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	err := h.repository.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// RunWorkflow executes a workflow for one candidate on behalf of the calling user and
// returns the closed execution.
func (h *APIHandlers) RunWorkflow(c fiber.Ctx) error {
	userID := c.Get(UserIDHeader)
	if userID == "" {
		return badRequest(c, UserIDHeader+" header is required")
	}

	var req RunWorkflowRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	execution, err := h.runner.RunManual(c.Context(), c.Params("id"), req.CandidateID, userID)
	if err != nil && execution == nil {
		return handleServiceError(c, err)
	}

	// the actions ran even when the closed record could not be written
	return c.JSON(execution)
}

// Executions

func (h *APIHandlers) GetWorkflowExecutions(c fiber.Ctx) error {
	limit := defaultExecutionLimit

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			return badRequest(c, "limit must be a positive integer")
		}

		limit = min(parsed, maxExecutionLimit)
	}

	executions, err := h.repository.Executions(c.Context(), c.Params("id"), limit)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions": executions,
		"limit":      limit,
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	execution, err := h.repository.Execution(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}
