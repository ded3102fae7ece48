package web

import "github.com/zipwire/zipwire/pkg/models"

// ListSessionsRequest carries the parsed query parameters of GET /sessions.
type ListSessionsRequest struct {
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"     validate:"omitempty,oneof=running completed failed"`
	Limit      int    `json:"limit"      validate:"omitempty,min=1,max=500"`
	Offset     int    `json:"offset"     validate:"omitempty,min=0"`
}

// SessionEventsResponse is the replay/export body of GET /sessions/:id/events.
type SessionEventsResponse struct {
	Session *models.TraceSession `json:"session"`
	Events  []*models.TraceEvent `json:"events"`
}
