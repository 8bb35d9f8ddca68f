package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"hookline/internal/platform/models"
)

type CallLogRepository struct {
	db *sql.DB
}

func NewCallLogRepository(db *sql.DB) *CallLogRepository {
	return &CallLogRepository{db: db}
}

// Upsert inserts or refreshes the call log keyed by conversation id and
// returns the stable row id. Re-running it for the same conversation never
// creates a second row.
func (r *CallLogRepository) Upsert(ctx context.Context, call *models.CallLog) (string, error) {
	now := time.Now().UTC()
	if call.ID == "" {
		call.ID = "call_" + uuid.New().String()
	}
	if call.WebhookStatus == "" {
		call.WebhookStatus = models.CallWebhookReceived
	}

	var transcript sql.NullString
	if len(call.Transcript) > 0 {
		transcript = sql.NullString{String: string(call.Transcript), Valid: true}
	}

	query := `
		INSERT INTO call_logs (id, conversation_id, agent_id, status, summary, transcript, duration_secs, webhook_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			agent_id = COALESCE(excluded.agent_id, call_logs.agent_id),
			status = excluded.status,
			summary = COALESCE(excluded.summary, call_logs.summary),
			transcript = COALESCE(excluded.transcript, call_logs.transcript),
			duration_secs = excluded.duration_secs,
			updated_at = excluded.updated_at
		RETURNING id
	`
	var id string
	err := r.db.QueryRowContext(ctx, query,
		call.ID,
		call.ConversationID,
		nullString(call.AgentID),
		call.Status,
		nullString(call.Summary),
		transcript,
		call.DurationSecs,
		call.WebhookStatus,
		toMillis(now),
		toMillis(now),
	).Scan(&id)
	if err != nil {
		return "", err
	}
	call.ID = id
	return id, nil
}

func (r *CallLogRepository) UpdateWebhookStatus(ctx context.Context, id, status string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE call_logs SET webhook_status = ?, updated_at = ? WHERE id = ?`, status, toMillis(time.Now()), id)
	return err
}

func (r *CallLogRepository) GetByConversationID(ctx context.Context, conversationID string) (*models.CallLog, error) {
	var c models.CallLog
	var agentID, summary, transcript sql.NullString
	var createdAt, updatedAt int64

	err := r.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, agent_id, status, summary, transcript, duration_secs, webhook_status, created_at, updated_at
		FROM call_logs WHERE conversation_id = ?
	`, conversationID).Scan(&c.ID, &c.ConversationID, &agentID, &c.Status, &summary, &transcript, &c.DurationSecs, &c.WebhookStatus, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	c.AgentID = agentID.String
	c.Summary = summary.String
	if transcript.Valid {
		c.Transcript = []byte(transcript.String)
	}
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return &c, nil
}
