package models

import (
	"encoding/json"
	"time"
)

type Source string

const (
	SourceElevenLabs Source = "elevenlabs"
	SourceSignWell   Source = "signwell"
	SourceDaily      Source = "daily"
)

func (s Source) Valid() bool {
	switch s {
	case SourceElevenLabs, SourceSignWell, SourceDaily:
		return true
	}
	return false
}

type ProcessingStatus string

const (
	StatusPending            ProcessingStatus = "pending"
	StatusSuccess            ProcessingStatus = "success"
	StatusFailed             ProcessingStatus = "failed"
	StatusMaxRetriesExceeded ProcessingStatus = "max_retries_exceeded"
)

// Terminal reports whether the retry worker must ignore events in this status.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusMaxRetriesExceeded
}

// WebhookEvent is one inbound provider delivery. Rows are never deleted.
type WebhookEvent struct {
	ID                 string           `json:"id"`
	Source             Source           `json:"source"`
	EventType          string           `json:"event_type,omitempty"`
	CorrelationID      string           `json:"correlation_id,omitempty"`
	RawPayload         json.RawMessage  `json:"raw_payload"`
	ProcessingStatus   ProcessingStatus `json:"processing_status"`
	ProcessingAttempts int              `json:"processing_attempts"`
	LastAttemptAt      *time.Time       `json:"last_attempt_at,omitempty"`
	LastError          *string          `json:"last_error,omitempty"`
	ReceivedAt         time.Time        `json:"received_at"`
	ProcessedAt        *time.Time       `json:"processed_at,omitempty"`
	LinkedResourceID   *string          `json:"linked_resource_id,omitempty"`
}

type WebhookDispatch struct {
	DispatchKey      string    `json:"dispatch_key"`
	EventID          string    `json:"event_id"`
	LinkedResourceID string    `json:"linked_resource_id,omitempty"`
	DispatchedAt     time.Time `json:"dispatched_at"`
}
