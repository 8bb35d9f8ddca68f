package inbound

import (
	"encoding/json"

	"hookline/internal/platform/models"
)

const ElevenLabsPostCallTranscription = "post_call_transcription"

// ElevenLabsCall is a post-call notification from the voice agent platform.
type ElevenLabsCall struct {
	Type           string             `json:"type" validate:"required"`
	EventTimestamp int64              `json:"event_timestamp"`
	Data           ElevenLabsCallData `json:"data"`
}

type ElevenLabsCallData struct {
	ConversationID string          `json:"conversation_id" validate:"required"`
	AgentID        string          `json:"agent_id"`
	Status         string          `json:"status"`
	Transcript     json.RawMessage `json:"transcript,omitempty"`
	Metadata       struct {
		CallDurationSecs int `json:"call_duration_secs" validate:"gte=0"`
	} `json:"metadata"`
	Analysis struct {
		TranscriptSummary string `json:"transcript_summary"`
		CallSuccessful    string `json:"call_successful"`
	} `json:"analysis"`
}

func (e *ElevenLabsCall) Source() models.Source { return models.SourceElevenLabs }
func (e *ElevenLabsCall) Kind() string          { return e.Type }
func (e *ElevenLabsCall) CorrelationID() string { return e.Data.ConversationID }
func (e *ElevenLabsCall) sealed()               {}
