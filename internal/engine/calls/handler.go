// Package calls records voice agent conversations reported by ElevenLabs.
package calls

import (
	"context"
	"fmt"

	"hookline/internal/engine/inbound"
	"hookline/internal/engine/webhooks"
	"hookline/internal/platform/models"
)

type CallLogStore interface {
	Upsert(ctx context.Context, call *models.CallLog) (string, error)
}

type Handler struct {
	store CallLogStore
}

func NewHandler(store CallLogStore) *Handler {
	return &Handler{store: store}
}

// Handle upserts the call log keyed by conversation id; the call log id
// becomes the event's linked resource.
func (h *Handler) Handle(ctx context.Context, _ models.WebhookEvent, payload inbound.Payload) (webhooks.Result, error) {
	call, ok := payload.(*inbound.ElevenLabsCall)
	if !ok {
		return webhooks.Result{}, fmt.Errorf("calls: unexpected payload %T", payload)
	}

	status := call.Data.Status
	if status == "" {
		status = "done"
	}

	id, err := h.store.Upsert(ctx, &models.CallLog{
		ConversationID: call.Data.ConversationID,
		AgentID:        call.Data.AgentID,
		Status:         status,
		Summary:        call.Data.Analysis.TranscriptSummary,
		Transcript:     call.Data.Transcript,
		DurationSecs:   call.Data.Metadata.CallDurationSecs,
	})
	if err != nil {
		return webhooks.Result{}, fmt.Errorf("upsert call log %s: %w", call.Data.ConversationID, err)
	}

	return webhooks.Result{
		LinkedResourceID: id,
		Attributes: map[string]interface{}{
			"conversation_id": call.Data.ConversationID,
			"agent_id":        call.Data.AgentID,
			"duration_secs":   call.Data.Metadata.CallDurationSecs,
			"call_successful": call.Data.Analysis.CallSuccessful,
		},
	}, nil
}
