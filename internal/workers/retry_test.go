package workers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hookline/internal/engine/calls"
	"hookline/internal/engine/dispatch"
	"hookline/internal/engine/inbound"
	"hookline/internal/engine/webhooks"
	"hookline/internal/platform/audit"
	"hookline/internal/platform/config"
	"hookline/internal/platform/database"
	"hookline/internal/platform/models"
	"hookline/internal/platform/repositories"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testConfig() config.WebhooksConfig {
	return config.WebhooksConfig{
		MaxRetries:     5,
		BackoffMinutes: []int{1, 5, 15, 60, 240},
		BatchSize:      50,
		MaxBatchSize:   100,
	}
}

type harness struct {
	db        *sql.DB
	events    *repositories.WebhookEventRepository
	processor *webhooks.Processor
	worker    *RetryWorker
}

func newHarness(t *testing.T, handlers webhooks.Registry, dispatcher webhooks.Dispatcher) *harness {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	events := repositories.NewWebhookEventRepository(db)
	processor := webhooks.NewProcessor(events, handlers, dispatcher, 5)
	processor.Now = func() time.Time { return testNow }

	worker := NewRetryWorker(events, processor, testConfig())
	worker.Now = func() time.Time { return testNow }

	return &harness{db: db, events: events, processor: processor, worker: worker}
}

// seed stores an event and rewinds it to the given retry state.
func (h *harness) seed(t *testing.T, received time.Time, conversationID string, status models.ProcessingStatus, attempts int, lastAttempt time.Time) *models.WebhookEvent {
	t.Helper()
	ctx := context.Background()
	evt := &models.WebhookEvent{
		Source:     models.SourceElevenLabs,
		ReceivedAt: received,
		RawPayload: json.RawMessage(fmt.Sprintf(`{"type":"post_call_transcription","data":{"conversation_id":%q}}`, conversationID)),
	}
	require.NoError(t, h.events.Create(ctx, evt))
	if status == models.StatusFailed {
		require.NoError(t, h.events.MarkFailed(ctx, evt.ID, attempts, lastAttempt, status, "previous failure"))
	}
	return evt
}

func (h *harness) get(t *testing.T, id string) *models.WebhookEvent {
	t.Helper()
	evt, err := h.events.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, evt)
	return evt
}

func okHandler() webhooks.Handler {
	return webhooks.HandlerFunc(func(_ context.Context, _ models.WebhookEvent, p inbound.Payload) (webhooks.Result, error) {
		return webhooks.Result{LinkedResourceID: "call_" + p.CorrelationID()}, nil
	})
}

func TestRetryWorker_RetryRecovery(t *testing.T) {
	h := newHarness(t, webhooks.Registry{models.SourceElevenLabs: okHandler()}, nil)
	evt := h.seed(t, testNow.Add(-time.Hour), "conv_1", models.StatusFailed, 1, testNow.Add(-10*time.Minute))

	stats, err := h.worker.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, RetryStats{Processed: 1, Succeeded: 1, Failed: 0, TotalPending: 1}, stats)

	got := h.get(t, evt.ID)
	assert.Equal(t, models.StatusSuccess, got.ProcessingStatus)
	assert.Equal(t, 2, got.ProcessingAttempts)
	require.NotNil(t, got.ProcessedAt)
	assert.True(t, testNow.Equal(*got.ProcessedAt))
	require.NotNil(t, got.LinkedResourceID)
	assert.Equal(t, "call_conv_1", *got.LinkedResourceID)
}

func TestRetryWorker_SkipsInsideBackoffWindow(t *testing.T) {
	h := newHarness(t, webhooks.Registry{models.SourceElevenLabs: okHandler()}, nil)
	evt := h.seed(t, testNow.Add(-time.Hour), "conv_1", models.StatusFailed, 1, testNow.Add(-2*time.Minute))

	stats, err := h.worker.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, RetryStats{TotalPending: 1}, stats)

	got := h.get(t, evt.ID)
	assert.Equal(t, models.StatusFailed, got.ProcessingStatus)
	assert.Equal(t, 1, got.ProcessingAttempts)
}

func TestRetryWorker_BatchIsolation(t *testing.T) {
	handler := webhooks.HandlerFunc(func(_ context.Context, _ models.WebhookEvent, p inbound.Payload) (webhooks.Result, error) {
		if p.CorrelationID() == "conv_2" {
			panic("unexpected transcript shape")
		}
		return webhooks.Result{LinkedResourceID: "call_" + p.CorrelationID()}, nil
	})
	h := newHarness(t, webhooks.Registry{models.SourceElevenLabs: handler}, nil)

	e1 := h.seed(t, testNow.Add(-3*time.Minute), "conv_1", models.StatusPending, 0, time.Time{})
	e2 := h.seed(t, testNow.Add(-2*time.Minute), "conv_2", models.StatusPending, 0, time.Time{})
	e3 := h.seed(t, testNow.Add(-1*time.Minute), "conv_3", models.StatusPending, 0, time.Time{})

	stats, err := h.worker.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, RetryStats{Processed: 3, Succeeded: 2, Failed: 1, TotalPending: 3}, stats)

	assert.Equal(t, models.StatusSuccess, h.get(t, e1.ID).ProcessingStatus)
	assert.Equal(t, models.StatusSuccess, h.get(t, e3.ID).ProcessingStatus)

	failed := h.get(t, e2.ID)
	assert.Equal(t, models.StatusFailed, failed.ProcessingStatus)
	assert.Equal(t, 1, failed.ProcessingAttempts)
	require.NotNil(t, failed.LastError)
	assert.Contains(t, *failed.LastError, "unexpected transcript shape")
}

func TestRetryWorker_MaxRetryTermination(t *testing.T) {
	handler := webhooks.HandlerFunc(func(context.Context, models.WebhookEvent, inbound.Payload) (webhooks.Result, error) {
		return webhooks.Result{}, errors.New("vendor returned 429")
	})
	h := newHarness(t, webhooks.Registry{models.SourceElevenLabs: handler}, nil)
	evt := h.seed(t, testNow.Add(-24*time.Hour), "conv_1", models.StatusFailed, 4, testNow.Add(-5*time.Hour))

	stats, err := h.worker.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)

	got := h.get(t, evt.ID)
	assert.Equal(t, models.StatusMaxRetriesExceeded, got.ProcessingStatus)
	assert.Equal(t, 5, got.ProcessingAttempts)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "vendor returned 429", *got.LastError)

	h.worker.Now = func() time.Time { return testNow.Add(48 * time.Hour) }
	stats, err = h.worker.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, RetryStats{}, stats)
	assert.Equal(t, 5, h.get(t, evt.ID).ProcessingAttempts)
}

func TestRetryWorker_DuplicateRunsAreIdempotent(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	callRepo := repositories.NewCallLogRepository(db)
	sink := audit.NewMemorySink()
	dispatcher := dispatch.NewDispatcher(repositories.NewDispatchRepository(db), callRepo, dispatch.LogNotifier{}, sink)

	events := repositories.NewWebhookEventRepository(db)
	processor := webhooks.NewProcessor(events, webhooks.Registry{models.SourceElevenLabs: calls.NewHandler(callRepo)}, dispatcher, 5)
	h := &harness{db: db, events: events, processor: processor, worker: NewRetryWorker(events, processor, testConfig())}

	// The provider delivered the same conversation twice.
	e1 := h.seed(t, testNow.Add(-2*time.Minute), "conv_dup", models.StatusPending, 0, time.Time{})
	e2 := h.seed(t, testNow.Add(-1*time.Minute), "conv_dup", models.StatusPending, 0, time.Time{})

	// Two overlapping runs see the same candidates.
	candidates, err := events.ListRetryable(context.Background(), 5, 50)
	require.NoError(t, err)
	for _, evt := range candidates {
		copyEvt := *evt
		_, err := processor.Attempt(context.Background(), &copyEvt)
		require.NoError(t, err)
	}
	stats, err := h.worker.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalPending)

	var callLogs, dispatches int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM call_logs`).Scan(&callLogs))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM webhook_dispatches`).Scan(&dispatches))
	assert.Equal(t, 1, callLogs)
	assert.Equal(t, 1, dispatches)
	assert.Equal(t, []string{"webhook.dispatched"}, sink.Names())

	first, second := h.get(t, e1.ID), h.get(t, e2.ID)
	assert.Equal(t, *first.LinkedResourceID, *second.LinkedResourceID)
}

func TestRetryWorker_Limit(t *testing.T) {
	w := NewRetryWorker(nil, nil, testConfig())
	assert.Equal(t, 50, w.Limit(0))
	assert.Equal(t, 50, w.Limit(-3))
	assert.Equal(t, 10, w.Limit(10))
	assert.Equal(t, 100, w.Limit(500))
}

func TestRetryWorker_LimitIsApplied(t *testing.T) {
	h := newHarness(t, webhooks.Registry{models.SourceElevenLabs: okHandler()}, nil)
	for i := 0; i < 4; i++ {
		h.seed(t, testNow.Add(-time.Duration(10-i)*time.Minute), fmt.Sprintf("conv_%d", i), models.StatusPending, 0, time.Time{})
	}

	stats, err := h.worker.Run(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalPending)
	assert.Equal(t, 3, stats.Succeeded)
}

func TestRetryWorker_CandidateQueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM webhook_events").WillReturnError(errors.New("disk I/O error"))

	events := repositories.NewWebhookEventRepository(db)
	w := NewRetryWorker(events, webhooks.NewProcessor(events, nil, nil, 5), testConfig())

	_, err = w.Run(context.Background(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetryWorker_RecordFailureIsJoined(t *testing.T) {
	h := newHarness(t, webhooks.Registry{models.SourceElevenLabs: okHandler()}, nil)
	h.seed(t, testNow.Add(-time.Minute), "conv_1", models.StatusPending, 0, time.Time{})

	candidates, err := h.events.ListRetryable(context.Background(), 5, 50)
	require.NoError(t, err)

	w := NewRetryWorker(staticCandidates(candidates), failingAttempter{}, testConfig())
	stats, err := w.Run(context.Background(), 0)
	require.Error(t, err)
	assert.Equal(t, RetryStats{Processed: 1, Failed: 1, TotalPending: 1}, stats)
}

type staticCandidates []*models.WebhookEvent

func (s staticCandidates) ListRetryable(context.Context, int, int) ([]*models.WebhookEvent, error) {
	return s, nil
}

type failingAttempter struct{}

func (failingAttempter) Attempt(context.Context, *models.WebhookEvent) (webhooks.Outcome, error) {
	return webhooks.Outcome{}, errors.New("database is locked")
}

type perEventAttempter map[string]error

func (a perEventAttempter) Attempt(_ context.Context, event *models.WebhookEvent) (webhooks.Outcome, error) {
	return webhooks.Outcome{}, a[event.ID]
}

func TestRetryWorker_AllRecordFailuresAreJoined(t *testing.T) {
	errFirst := errors.New("database is locked")
	errSecond := errors.New("disk I/O error")
	candidates := staticCandidates{
		{ID: "evt_1", Source: models.SourceElevenLabs, ProcessingStatus: models.StatusPending},
		{ID: "evt_2", Source: models.SourceElevenLabs, ProcessingStatus: models.StatusPending},
	}

	w := NewRetryWorker(candidates, perEventAttempter{"evt_1": errFirst, "evt_2": errSecond}, testConfig())
	stats, err := w.Run(context.Background(), 0)

	require.Error(t, err)
	assert.ErrorIs(t, err, errFirst)
	assert.ErrorIs(t, err, errSecond)
	assert.Equal(t, RetryStats{Processed: 2, Failed: 2, TotalPending: 2}, stats)
}
