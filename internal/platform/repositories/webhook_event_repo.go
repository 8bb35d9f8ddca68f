package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"hookline/internal/platform/models"
)

const webhookEventColumns = `id, source, event_type, correlation_id, raw_payload, processing_status,
	processing_attempts, last_attempt_at, last_error, received_at, processed_at, linked_resource_id`

// WebhookEventRepository is the event store. Every mutation is a single-row
// update keyed by event id.
type WebhookEventRepository struct {
	db *sql.DB
}

func NewWebhookEventRepository(db *sql.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

func (r *WebhookEventRepository) Create(ctx context.Context, event *models.WebhookEvent) error {
	if event.ID == "" {
		event.ID = "evt_" + uuid.New().String()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}
	event.ProcessingStatus = models.StatusPending
	event.ProcessingAttempts = 0
	event.LastAttemptAt = nil
	event.LastError = nil
	event.ProcessedAt = nil
	event.LinkedResourceID = nil

	query := `
		INSERT INTO webhook_events (id, source, event_type, correlation_id, raw_payload, processing_status, processing_attempts, received_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		string(event.Source),
		nullString(event.EventType),
		nullString(event.CorrelationID),
		string(event.RawPayload),
		string(event.ProcessingStatus),
		toMillis(event.ReceivedAt),
	)
	if err != nil {
		return fmt.Errorf("insert webhook event: %w", err)
	}
	return nil
}

// GetByID returns nil, nil when the event does not exist.
func (r *WebhookEventRepository) GetByID(ctx context.Context, id string) (*models.WebhookEvent, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+webhookEventColumns+` FROM webhook_events WHERE id = ?`, id)
	event, err := scanWebhookEvent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return event, nil
}

type EventFilter struct {
	Status models.ProcessingStatus
	Source models.Source
	Limit  int
	Offset int
}

func (r *WebhookEventRepository) List(ctx context.Context, filter EventFilter) ([]*models.WebhookEvent, error) {
	var where []string
	var args []interface{}
	if filter.Status != "" {
		where = append(where, "processing_status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Source != "" {
		where = append(where, "source = ?")
		args = append(args, string(filter.Source))
	}

	query := `SELECT ` + webhookEventColumns + ` FROM webhook_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY received_at DESC, id LIMIT ? OFFSET ?"

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)

	return r.query(ctx, query, args...)
}

// ListRetryable returns up to limit events that are still pending or failed
// and below maxRetries attempts, oldest received first. Backoff windows are
// not applied here.
func (r *WebhookEventRepository) ListRetryable(ctx context.Context, maxRetries, limit int) ([]*models.WebhookEvent, error) {
	query := `
		SELECT ` + webhookEventColumns + `
		FROM webhook_events
		WHERE processing_status IN (?, ?) AND processing_attempts < ?
		ORDER BY received_at ASC, id ASC
		LIMIT ?
	`
	return r.query(ctx, query, string(models.StatusPending), string(models.StatusFailed), maxRetries, limit)
}

func (r *WebhookEventRepository) MarkSucceeded(ctx context.Context, id string, attempts int, at time.Time, linkedResourceID string) error {
	query := `
		UPDATE webhook_events
		SET processing_status = ?, processing_attempts = ?, last_attempt_at = ?, processed_at = ?,
		    linked_resource_id = COALESCE(?, linked_resource_id)
		WHERE id = ?
	`
	ms := toMillis(at)
	res, err := r.db.ExecContext(ctx, query, string(models.StatusSuccess), attempts, ms, ms, nullString(linkedResourceID), id)
	return checkUpdated(res, err, id)
}

// MarkFailed records a failed attempt. status must be failed or
// max_retries_exceeded; processed_at is left untouched.
func (r *WebhookEventRepository) MarkFailed(ctx context.Context, id string, attempts int, at time.Time, status models.ProcessingStatus, lastError string) error {
	if status != models.StatusFailed && status != models.StatusMaxRetriesExceeded {
		return fmt.Errorf("mark failed: invalid status %q", status)
	}
	query := `
		UPDATE webhook_events
		SET processing_status = ?, processing_attempts = ?, last_attempt_at = ?, last_error = ?
		WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, query, string(status), attempts, toMillis(at), lastError, id)
	return checkUpdated(res, err, id)
}

func (r *WebhookEventRepository) CountByStatus(ctx context.Context) (map[models.ProcessingStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT processing_status, COUNT(*) FROM webhook_events GROUP BY processing_status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[models.ProcessingStatus]int{
		models.StatusPending:            0,
		models.StatusSuccess:            0,
		models.StatusFailed:             0,
		models.StatusMaxRetriesExceeded: 0,
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[models.ProcessingStatus(status)] = n
	}
	return counts, rows.Err()
}

func (r *WebhookEventRepository) query(ctx context.Context, query string, args ...interface{}) ([]*models.WebhookEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.WebhookEvent
	for rows.Next() {
		event, err := scanWebhookEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func scanWebhookEvent(s scanner) (*models.WebhookEvent, error) {
	var e models.WebhookEvent
	var source, status, payload string
	var eventType, correlationID, lastError, linked sql.NullString
	var lastAttemptAt, processedAt sql.NullInt64
	var receivedAt int64

	err := s.Scan(
		&e.ID,
		&source,
		&eventType,
		&correlationID,
		&payload,
		&status,
		&e.ProcessingAttempts,
		&lastAttemptAt,
		&lastError,
		&receivedAt,
		&processedAt,
		&linked,
	)
	if err != nil {
		return nil, err
	}

	e.Source = models.Source(source)
	e.EventType = eventType.String
	e.CorrelationID = correlationID.String
	e.RawPayload = []byte(payload)
	e.ProcessingStatus = models.ProcessingStatus(status)
	e.LastAttemptAt = timePtr(lastAttemptAt)
	e.LastError = stringPtr(lastError)
	e.ReceivedAt = fromMillis(receivedAt)
	e.ProcessedAt = timePtr(processedAt)
	e.LinkedResourceID = stringPtr(linked)

	return &e, nil
}

func checkUpdated(res sql.Result, err error, id string) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("webhook event %s: %w", id, sql.ErrNoRows)
	}
	return nil
}
