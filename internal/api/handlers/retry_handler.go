package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"hookline/internal/pkg/errors"
	"hookline/internal/workers"
)

type RetryRunner interface {
	Run(ctx context.Context, limit int) (workers.RetryStats, error)
}

// RetryHandler lets an external scheduler trigger a retry pass.
type RetryHandler struct {
	worker RetryRunner
}

func NewRetryHandler(worker RetryRunner) *RetryHandler {
	return &RetryHandler{worker: worker}
}

type retryResponse struct {
	OK bool `json:"ok"`
	workers.RetryStats
}

func (h *RetryHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Limit int `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	stats, err := h.worker.Run(r.Context(), req.Limit)
	if err != nil {
		log.Error().Err(err).Msg("webhook retry run failed")
		errors.WriteJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"ok":    false,
			"error": err.Error(),
		})
		return
	}

	errors.WriteJSON(w, http.StatusOK, retryResponse{OK: true, RetryStats: stats})
}
