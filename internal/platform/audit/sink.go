package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one entry in the append-only operational event log.
type Event struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// Sink receives events. Implementations are owned and injected by the caller.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

func normalize(event *Event) {
	if event.ID == "" {
		event.ID = "audit_" + uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
}

// DBSink writes events to the audit_events table.
type DBSink struct {
	db *sql.DB
}

func NewDBSink(db *sql.DB) *DBSink {
	return &DBSink{db: db}
}

func (s *DBSink) Append(ctx context.Context, event Event) error {
	normalize(&event)

	attrs, err := json.Marshal(event.Attributes)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, name, attributes, created_at)
		VALUES (?, ?, ?, ?)
	`, event.ID, event.Name, string(attrs), event.CreatedAt.UnixMilli())
	return err
}

// Recent returns the newest events first.
func (s *DBSink) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, attributes, created_at FROM audit_events ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var attrs sql.NullString
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Name, &attrs, &createdAt); err != nil {
			return nil, err
		}
		if attrs.Valid {
			json.Unmarshal([]byte(attrs.String), &e.Attributes)
		}
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

// MemorySink keeps events in memory; used in tests and when no database is wired.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Append(_ context.Context, event Event) error {
	normalize(&event)
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return nil
}

func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Names returns the event names in append order.
func (s *MemorySink) Names() []string {
	events := s.Events()
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.Name
	}
	return names
}
