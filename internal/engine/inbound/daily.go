package inbound

import (
	"math"
	"time"

	"hookline/internal/platform/models"
)

const (
	DailyMeetingStarted = "meeting.started"
	DailyMeetingEnded   = "meeting.ended"
	DailyRecordingReady = "recording.ready-to-download"
)

// DailyEvent is a video room notification. Timestamps are unix seconds.
type DailyEvent struct {
	Type    string       `json:"type" validate:"required"`
	ID      string       `json:"id"`
	EventTS float64      `json:"event_ts"`
	Payload DailyPayload `json:"payload"`
}

type DailyPayload struct {
	RoomName     string  `json:"room_name"`
	Room         string  `json:"room"`
	MeetingID    string  `json:"meeting_id"`
	RecordingID  string  `json:"recording_id"`
	DownloadLink string  `json:"download_link" validate:"omitempty,url"`
	Duration     float64 `json:"duration" validate:"gte=0"`
	StartTS      float64 `json:"start_ts"`
	EndTS        float64 `json:"end_ts"`
}

func (e *DailyEvent) Source() models.Source { return models.SourceDaily }
func (e *DailyEvent) Kind() string          { return e.Type }
func (e *DailyEvent) sealed()               {}

func (e *DailyEvent) CorrelationID() string {
	if e.Payload.RoomName != "" {
		return e.Payload.RoomName
	}
	return e.Payload.Room
}

// StartedAt falls back to the event timestamp when the payload has no start.
func (e *DailyEvent) StartedAt() time.Time {
	if e.Payload.StartTS > 0 {
		return unixSeconds(e.Payload.StartTS)
	}
	return unixSeconds(e.EventTS)
}

func (e *DailyEvent) EndedAt() time.Time {
	if e.Payload.EndTS > 0 {
		return unixSeconds(e.Payload.EndTS)
	}
	return unixSeconds(e.EventTS)
}

func (e *DailyEvent) DurationSecs() int {
	return int(math.Round(e.Payload.Duration))
}

func unixSeconds(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}
