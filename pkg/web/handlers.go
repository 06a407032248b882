// Package web provides the HTTP front door that turns requests into queued workflow jobs.
package web

import (
	"net/http"
	"time"

	"github.com/flowmark/journey/pkg/models"
	"github.com/flowmark/journey/pkg/registry"
	"github.com/flowmark/journey/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	workflowService *services.Workflow
	validator       *validator.Validate
	registry        *registry.Registry
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		workflowService: workflowService,
		validator:       validator,
		registry:        registry,
	}
}

// ProcessWorkflow queues a stored workflow. It does not wait for the execution.
func (h *APIHandlers) ProcessWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	job, err := h.workflowService.ProcessWorkflow(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(MessageResponse{
		Success: true,
		Message: "Workflow " + id + " queued for processing as job " + job.ID,
	})
}

func (h *APIHandlers) GetJobStatus(c fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return badRequest(c, "Job ID is required")
	}

	status, err := h.workflowService.GetJobStatus(c.Context(), jobID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(JobStatusResponse{Success: true, Status: status})
}

func (h *APIHandlers) ProcessWorkflows(c fiber.Ctx) error {
	var req []WorkflowJobRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format: expected an array of {id, workflow}")
	}

	if len(req) == 0 {
		return badRequest(c, services.ErrEmptyBatch.Error())
	}

	jobs := make([]models.WorkflowJob, 0, len(req))

	for _, item := range req {
		if err := h.validator.Struct(item); err != nil {
			return badRequest(c, err.Error())
		}

		jobs = append(jobs, models.WorkflowJob{ID: item.ID, Workflow: item.Workflow})
	}

	job, err := h.workflowService.ProcessWorkflows(c.Context(), jobs)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(JobResponse{
		Success: true,
		Message: "Workflows queued for processing",
		JobID:   job.ID,
	})
}

func (h *APIHandlers) ProcessCronWorkflow(c fiber.Ctx) error {
	var req CronWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	job, tz, err := h.workflowService.ProcessCronWorkflow(c.Context(), req.ID, req.Workflow, req.CronExpression, req.Timezone)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(CronJobResponse{
		Success:        true,
		Message:        "Workflow scheduled",
		JobID:          job.ID,
		CronExpression: req.CronExpression,
		Timezone:       tz,
	})
}

// GetNodeTypes lists the node types the engine can execute with their config schemas.
func (h *APIHandlers) GetNodeTypes(c fiber.Ctx) error {
	factories := h.registry.GetAvailableNodes()

	nodes := make([]NodeTypeResponse, 0, len(factories))
	for _, factory := range factories {
		nodes = append(nodes, NodeTypeResponse{
			ID:          factory.ID(),
			Name:        factory.Name(),
			Description: factory.Description(),
			Schema:      factory.Schema(),
		})
	}

	return c.JSON(nodes)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()
	serviceCheck, svcOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Journey worker is unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && svcOk {
		status = "healthy"
		message = "Journey worker is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry": registryCheck,
			"service":  serviceCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
