package audit

import (
	"context"
	"testing"

	"hookline/internal/platform/database"
)

func TestDBSink_AppendAndRecent(t *testing.T) {
	db, err := database.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	defer db.Close()

	sink := NewDBSink(db)
	ctx := context.Background()

	if err := sink.Append(ctx, Event{Name: "webhook.dispatched", Attributes: map[string]interface{}{"event_id": "evt_1"}}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	events, err := sink.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Name != "webhook.dispatched" || events[0].Attributes["event_id"] != "evt_1" {
		t.Errorf("unexpected event: %+v", events[0])
	}
	if events[0].ID == "" || events[0].CreatedAt.IsZero() {
		t.Errorf("event not normalized: %+v", events[0])
	}
}

func TestMemorySink(t *testing.T) {
	sink := NewMemorySink()
	sink.Append(context.Background(), Event{Name: "a"})
	sink.Append(context.Background(), Event{Name: "b"})

	names := sink.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("Names() = %v", names)
	}
}
