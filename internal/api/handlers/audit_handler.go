package handlers

import (
	"context"
	"net/http"
	"strconv"

	"hookline/internal/pkg/errors"
	"hookline/internal/platform/audit"
)

type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]audit.Event, error)
}

type AuditHandler struct {
	reader AuditReader
}

func NewAuditHandler(reader AuditReader) *AuditHandler {
	return &AuditHandler{reader: reader}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 500 {
		limit = 100
	}

	events, err := h.reader.Recent(r.Context(), limit)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, err.Error(), nil)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	errors.WriteJSON(w, http.StatusOK, events)
}
