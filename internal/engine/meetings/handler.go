// Package meetings tracks video rooms and their recordings from Daily events.
package meetings

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"hookline/internal/engine/inbound"
	"hookline/internal/engine/webhooks"
	"hookline/internal/platform/models"
	"hookline/internal/platform/repositories"
)

type MeetingStore interface {
	Upsert(ctx context.Context, u repositories.MeetingUpdate) (string, error)
}

type Handler struct {
	store MeetingStore
}

func NewHandler(store MeetingStore) *Handler {
	return &Handler{store: store}
}

func (h *Handler) Handle(ctx context.Context, event models.WebhookEvent, payload inbound.Payload) (webhooks.Result, error) {
	evt, ok := payload.(*inbound.DailyEvent)
	if !ok {
		return webhooks.Result{}, fmt.Errorf("meetings: unexpected payload %T", payload)
	}

	u := repositories.MeetingUpdate{RoomName: evt.CorrelationID()}
	attrs := map[string]interface{}{"room_name": u.RoomName}

	switch evt.Kind() {
	case inbound.DailyMeetingStarted:
		status, started := models.MeetingStarted, evt.StartedAt()
		u.Status, u.StartedAt = &status, &started
	case inbound.DailyMeetingEnded:
		status, ended := models.MeetingEnded, evt.EndedAt()
		u.Status, u.EndedAt = &status, &ended
	case inbound.DailyRecordingReady:
		recID, url, duration := evt.Payload.RecordingID, evt.Payload.DownloadLink, evt.DurationSecs()
		u.RecordingID, u.RecordingURL, u.RecordingDurationSecs = &recID, &url, &duration
		attrs["recording_id"] = recID
		attrs["recording_url"] = url
	default:
		// Other room events are stored for audit only.
		log.Debug().Str("event_id", event.ID).Str("kind", evt.Kind()).Msg("ignoring daily event")
		return webhooks.Result{Attributes: attrs}, nil
	}

	id, err := h.store.Upsert(ctx, u)
	if err != nil {
		return webhooks.Result{}, fmt.Errorf("upsert meeting %s: %w", u.RoomName, err)
	}
	return webhooks.Result{LinkedResourceID: id, Attributes: attrs}, nil
}
