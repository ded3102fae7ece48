// Package web provides the HTTP handlers of the zipwire read-side API:
// health and trace session replay/export.
package web

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/zipwire/zipwire/pkg/models"
	"github.com/zipwire/zipwire/pkg/persistence"
)

type APIHandlers struct {
	persistence persistence.Persistence
	validator   *validator.Validate
}

func NewAPIHandlers(persistence persistence.Persistence, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		persistence: persistence,
		validator:   validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	err := h.persistence.HealthCheck(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *APIHandlers) ListSessions(c fiber.Ctx) error {
	req, err := h.parseListSessionsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	opts := persistence.ListSessionsOptions{
		WorkflowID: req.WorkflowID,
		Limit:      req.Limit,
		Offset:     req.Offset,
	}

	if req.Status != "" {
		status := models.SessionStatus(req.Status)
		opts.Status = &status
	}

	sessions, err := h.persistence.SessionRepository().ListSessions(c.Context(), opts)
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.JSON(fiber.Map{
		"sessions":    sessions,
		"total_count": len(sessions),
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
	})
}

func (h *APIHandlers) parseListSessionsRequest(c fiber.Ctx) (*ListSessionsRequest, error) {
	req := &ListSessionsRequest{
		WorkflowID: c.Query("workflow_id"),
		Status:     c.Query("status"),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	err := h.validator.Struct(req)
	if err != nil {
		return nil, err
	}

	return req, nil
}

func (h *APIHandlers) GetSession(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Session ID is required")
	}

	session, err := h.persistence.SessionRepository().SessionByID(c.Context(), id)
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.JSON(session)
}

// GetSessionEvents is the replay/export reader: the full append-only event
// log of one trace session together with its session record.
func (h *APIHandlers) GetSessionEvents(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Session ID is required")
	}

	session, err := h.persistence.SessionRepository().SessionByID(c.Context(), id)
	if err != nil {
		return handlePersistenceError(c, err)
	}

	events, err := h.persistence.SessionRepository().EventsBySession(c.Context(), id)
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.JSON(SessionEventsResponse{Session: session, Events: events})
}

// NotFoundHandler handles requests to undefined routes.
func NotFoundHandler(c fiber.Ctx) error {
	return notFound(c, "The requested resource was not found")
}
