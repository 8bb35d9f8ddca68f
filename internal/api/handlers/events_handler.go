package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"hookline/internal/pkg/errors"
	"hookline/internal/platform/models"
	"hookline/internal/platform/repositories"
)

type EventReader interface {
	GetByID(ctx context.Context, id string) (*models.WebhookEvent, error)
	List(ctx context.Context, filter repositories.EventFilter) ([]*models.WebhookEvent, error)
}

// EventsHandler exposes the webhook event log to operators.
type EventsHandler struct {
	events EventReader
}

func NewEventsHandler(events EventReader) *EventsHandler {
	return &EventsHandler{events: events}
}

func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := repositories.EventFilter{
		Status: models.ProcessingStatus(q.Get("status")),
		Source: models.Source(q.Get("source")),
	}
	switch filter.Status {
	case "", models.StatusPending, models.StatusSuccess, models.StatusFailed, models.StatusMaxRetriesExceeded:
	default:
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Unknown status filter", nil)
		return
	}
	if filter.Source != "" && !filter.Source.Valid() {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Unknown source filter", nil)
		return
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 50
	}
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}
	filter.Limit, filter.Offset = limit, offset

	events, err := h.events.List(r.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to list webhook events")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list events", nil)
		return
	}
	if events == nil {
		events = []*models.WebhookEvent{}
	}

	errors.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data":   events,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.GetByID(r.Context(), param(r, "id"))
	if err != nil {
		log.Error().Err(err).Msg("failed to load webhook event")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load event", nil)
		return
	}
	if event == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Event not found", nil)
		return
	}
	errors.WriteJSON(w, http.StatusOK, event)
}
