package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"hookline/internal/platform/models"
)

type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[models.ProcessingStatus]int, error)
}

// MetricsHandler writes the Prometheus text exposition format.
type MetricsHandler struct {
	events StatusCounter
}

func NewMetricsHandler(events StatusCounter) *MetricsHandler {
	return &MetricsHandler{events: events}
}

func (h *MetricsHandler) Export(w http.ResponseWriter, r *http.Request) {
	counts, err := h.events.CountByStatus(r.Context())

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP hookline_up Is the server up\n")
	fmt.Fprintf(w, "# TYPE hookline_up gauge\n")
	fmt.Fprintf(w, "hookline_up 1\n")

	if err != nil {
		fmt.Fprintf(w, "# HELP hookline_store_up Whether the event store answered\n")
		fmt.Fprintf(w, "# TYPE hookline_store_up gauge\n")
		fmt.Fprintf(w, "hookline_store_up 0\n")
		return
	}

	all := []models.ProcessingStatus{models.StatusPending, models.StatusSuccess, models.StatusFailed, models.StatusMaxRetriesExceeded}
	for status := range counts {
		if !contains(all, status) {
			all = append(all, status)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })

	fmt.Fprintf(w, "# HELP hookline_webhook_events Webhook events by processing status\n")
	fmt.Fprintf(w, "# TYPE hookline_webhook_events gauge\n")
	for _, status := range all {
		fmt.Fprintf(w, "hookline_webhook_events{status=%q} %d\n", status, counts[status])
	}
}

func contains(list []models.ProcessingStatus, s models.ProcessingStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
