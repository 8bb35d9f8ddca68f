package models

import (
	"encoding/json"
	"time"
)

type CallLog struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	AgentID        string          `json:"agent_id,omitempty"`
	Status         string          `json:"status"`
	Summary        string          `json:"summary,omitempty"`
	Transcript     json.RawMessage `json:"transcript,omitempty"`
	DurationSecs   int             `json:"duration_secs"`
	WebhookStatus  string          `json:"webhook_status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

const (
	CallWebhookReceived  = "received"
	CallWebhookProcessed = "processed"
)

type Meeting struct {
	ID                    string     `json:"id"`
	RoomName              string     `json:"room_name"`
	Status                string     `json:"status"`
	StartedAt             *time.Time `json:"started_at,omitempty"`
	EndedAt               *time.Time `json:"ended_at,omitempty"`
	RecordingID           string     `json:"recording_id,omitempty"`
	RecordingURL          string     `json:"recording_url,omitempty"`
	RecordingDurationSecs int        `json:"recording_duration_secs"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

const (
	MeetingScheduled = "scheduled"
	MeetingStarted   = "started"
	MeetingEnded     = "ended"
)
