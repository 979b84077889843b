package handlers

import (
	"net/http"
	"strconv"

	"github.com/isdelr/user-api/internal/apperr"
	"github.com/isdelr/user-api/internal/services"
	"github.com/rs/zerolog/log"
)

const defaultEventsLimit = 20

// EventHandler handles HTTP requests related to system events.
type EventHandler struct {
	service services.EventServiceProvider
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(service services.EventServiceProvider) *EventHandler {
	return &EventHandler{service: service}
}

// GetRecent handles the request to get recent activity/events.
func (h *EventHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultEventsLimit
	}
	if limit > services.MaxEventsLimit {
		limit = services.MaxEventsLimit
	}

	events, err := h.service.GetRecentEvents(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to retrieve events")
		writeError(w, apperr.Internal("Failed to retrieve events", err))
		return
	}
	writeList(w, "Events retrieved successfully", events, len(events))
}
