// Package web provides HTTP handlers and REST API endpoints for the
// operations console.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/opsdeck/opsdeck/pkg/models"
	"github.com/opsdeck/opsdeck/pkg/schedule"
	"github.com/opsdeck/opsdeck/pkg/services"
)

type APIHandlers struct {
	console   *services.Console
	catalog   *services.Catalog
	scheduler *schedule.Scheduler
	validator *validator.Validate
}

func NewAPIHandlers(
	console *services.Console,
	catalog *services.Catalog,
	scheduler *schedule.Scheduler,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		console:   console,
		catalog:   catalog,
		scheduler: scheduler,
		validator: validator,
	}
}

// Sessions

func (h *APIHandlers) CreateSession(c fiber.Ctx) error {
	session := h.console.CreateSession()

	return c.Status(fiber.StatusCreated).JSON(TransformSessionResponse(session))
}

func (h *APIHandlers) GetSessions(c fiber.Ctx) error {
	sessions := h.console.ListSessions()

	responses := make([]SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		responses = append(responses, TransformSessionResponse(session))
	}

	return c.JSON(fiber.Map{
		"sessions": responses,
		"count":    len(responses),
	})
}

func (h *APIHandlers) GetMessages(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Session ID is required")
	}

	messages, err := h.console.Messages(id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"messages": messages,
		"count":    len(messages),
	})
}

func (h *APIHandlers) PostMessage(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Session ID is required")
	}

	var req PostMessageRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	reply, err := h.console.HandleMessage(c.Context(), id, req.Text, req.Locale)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(reply)
}

// Executions

func (h *APIHandlers) EnqueueExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Session ID is required")
	}

	var req EnqueueExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.console.Enqueue(id, req.ActionID, req.MessageID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":    "queued",
		"action_id": req.ActionID,
	})
}

func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Session ID is required")
	}

	err := h.console.CancelExecution(id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "cancelling",
	})
}

// Actions

func (h *APIHandlers) GetActions(c fiber.Ctx) error {
	actions := h.catalog.List()

	return c.JSON(fiber.Map{
		"actions": actions,
		"count":   len(actions),
	})
}

func (h *APIHandlers) GetAction(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Action ID is required")
	}

	action, err := h.catalog.Get(id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(action)
}

func (h *APIHandlers) CreateAction(c fiber.Ctx) error {
	var req CreateActionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	action := &models.Action{
		Kind:        models.ActionKind(req.Kind),
		Name:        req.Name,
		Description: req.Description,
		Content:     req.Content,
		Method:      req.Method,
		Tags:        req.Tags,
	}

	created, err := h.catalog.Create(c.Context(), action)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateAction(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Action ID is required")
	}

	var req UpdateActionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	// Get existing action and merge changes; kind is immutable.
	existing, err := h.catalog.Get(id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.Content != nil {
		existing.Content = *req.Content
	}

	if req.Method != nil {
		existing.Method = *req.Method
	}

	if req.Tags != nil {
		existing.Tags = req.Tags
	}

	updated, err := h.catalog.Update(c.Context(), id, existing)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteAction(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Action ID is required")
	}

	err := h.catalog.Delete(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Schedules

func (h *APIHandlers) GetSchedules(c fiber.Ctx) error {
	bindings := h.scheduler.Bindings()

	return c.JSON(fiber.Map{
		"schedules": bindings,
		"count":     len(bindings),
	})
}

func (h *APIHandlers) CreateSchedule(c fiber.Ctx) error {
	var req CreateScheduleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	action, err := h.catalog.Get(req.ActionID)
	if err != nil {
		return handleServiceError(c, err)
	}

	if !action.Executable() {
		return badRequest(c, "env actions cannot be scheduled")
	}

	binding := schedule.Binding{
		ActionID: req.ActionID,
		CronExpr: req.Cron,
		Enabled:  true,
	}
	if req.Enabled != nil {
		binding.Enabled = *req.Enabled
	}

	if err := h.scheduler.Bind(binding); err != nil {
		return badRequest(c, err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(binding)
}

func (h *APIHandlers) DeleteSchedule(c fiber.Ctx) error {
	id := c.Params("actionId")
	if id == "" {
		return badRequest(c, "Action ID is required")
	}

	h.scheduler.Unbind(id)

	return c.SendStatus(fiber.StatusNoContent)
}

// Records

func (h *APIHandlers) GetRecords(c fiber.Ctx) error {
	records, err := h.console.Records(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"records": records,
		"count":   len(records),
	})
}

// Health

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.console.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Opsdeck API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Opsdeck API is healthy"
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
