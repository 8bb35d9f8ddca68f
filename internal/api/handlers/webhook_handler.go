package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"hookline/internal/engine/inbound"
	"hookline/internal/engine/webhooks"
	"hookline/internal/pkg/errors"
	"hookline/internal/platform/models"
)

const maxWebhookBody = 1 << 20

type EventWriter interface {
	Create(ctx context.Context, event *models.WebhookEvent) error
}

type Attempter interface {
	Attempt(ctx context.Context, event *models.WebhookEvent) (webhooks.Outcome, error)
}

// WebhookHandler receives provider callbacks. Every valid delivery is stored
// before anything else happens, then processed once synchronously.
type WebhookHandler struct {
	events    EventWriter
	processor Attempter
	verifier  webhooks.SignatureVerifier
}

func NewWebhookHandler(events EventWriter, processor Attempter, verifier webhooks.SignatureVerifier) *WebhookHandler {
	return &WebhookHandler{events: events, processor: processor, verifier: verifier}
}

func (h *WebhookHandler) ElevenLabs(w http.ResponseWriter, r *http.Request) {
	h.receive(w, r, models.SourceElevenLabs)
}

func (h *WebhookHandler) SignWell(w http.ResponseWriter, r *http.Request) {
	h.receive(w, r, models.SourceSignWell)
}

func (h *WebhookHandler) Daily(w http.ResponseWriter, r *http.Request) {
	h.receive(w, r, models.SourceDaily)
}

func (h *WebhookHandler) receive(w http.ResponseWriter, r *http.Request, source models.Source) {
	logger := log.With().Str("source", string(source)).Logger()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeReceiverError(w, http.StatusBadRequest, "unable to read request body")
		return
	}
	if !json.Valid(body) {
		writeReceiverError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	if err := h.verifier.Verify(source, r.Header, body); err != nil {
		logger.Warn().Err(err).Msg("rejected webhook with bad signature")
		writeReceiverError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	kind, correlationID, envErr := inbound.Envelope(source, body)
	event := &models.WebhookEvent{
		Source:        source,
		EventType:     kind,
		CorrelationID: correlationID,
		RawPayload:    body,
	}
	if err := h.events.Create(r.Context(), event); err != nil {
		logger.Error().Err(err).Msg("failed to store webhook event")
		writeReceiverError(w, http.StatusInternalServerError, "failed to store webhook event")
		return
	}
	logger = logger.With().Str("event_id", event.ID).Str("kind", kind).Logger()

	if envErr != nil {
		if stderrors.Is(envErr, inbound.ErrMissingCorrelation) {
			logger.Warn().Msg("webhook stored without correlation id, skipping processing")
		} else {
			logger.Warn().Err(envErr).Msg("webhook stored with unreadable envelope, skipping processing")
		}
		writeReceived(w)
		return
	}

	if _, err := h.processor.Attempt(r.Context(), event); err != nil {
		logger.Error().Err(err).Msg("failed to record processing outcome")
		// ElevenLabs retries aggressively on non-2xx, so its events are left
		// for the retry worker instead.
		if source != models.SourceElevenLabs {
			writeReceiverError(w, http.StatusInternalServerError, "failed to process webhook event")
			return
		}
	}

	writeReceived(w)
}

func writeReceived(w http.ResponseWriter) {
	errors.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func writeReceiverError(w http.ResponseWriter, status int, msg string) {
	errors.WriteJSON(w, status, map[string]string{"error": msg})
}
