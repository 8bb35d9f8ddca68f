package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"hookline/internal/engine/webhooks"
	"hookline/internal/platform/config"
	"hookline/internal/platform/models"
)

type RetryStats struct {
	Processed    int `json:"processed"`
	Succeeded    int `json:"succeeded"`
	Failed       int `json:"failed"`
	TotalPending int `json:"total_pending"`
}

// CandidateSource lists events that may still be retried.
type CandidateSource interface {
	ListRetryable(ctx context.Context, maxRetries, limit int) ([]*models.WebhookEvent, error)
}

// Attempter is the processing routine shared with the receivers.
type Attempter interface {
	Attempt(ctx context.Context, event *models.WebhookEvent) (webhooks.Outcome, error)
}

// RetryWorker re-attempts pending and failed webhook events whose backoff
// window has elapsed. Concurrent runs are not excluded; duplicate attempts
// rely on idempotent handlers.
type RetryWorker struct {
	events     CandidateSource
	processor  Attempter
	backoff    webhooks.Backoff
	maxRetries int
	batchSize  int
	maxBatch   int
	delay      time.Duration
	Now        func() time.Time
}

func NewRetryWorker(events CandidateSource, processor Attempter, cfg config.WebhooksConfig) *RetryWorker {
	backoff := webhooks.Backoff(cfg.Backoff())
	if len(backoff) == 0 {
		backoff = webhooks.DefaultBackoff
	}
	w := &RetryWorker{
		events:     events,
		processor:  processor,
		backoff:    backoff,
		maxRetries: cfg.MaxRetries,
		batchSize:  cfg.BatchSize,
		maxBatch:   cfg.MaxBatchSize,
		delay:      cfg.InterEventDelay,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
	if w.maxRetries <= 0 {
		w.maxRetries = 5
	}
	if w.batchSize <= 0 {
		w.batchSize = 50
	}
	if w.maxBatch <= 0 {
		w.maxBatch = 100
	}
	return w
}

// Limit normalises a requested batch size.
func (w *RetryWorker) Limit(requested int) int {
	if requested <= 0 {
		return w.batchSize
	}
	if requested > w.maxBatch {
		return w.maxBatch
	}
	return requested
}

// Run performs one retry pass over at most limit candidates. A failure to
// list candidates aborts the run; a failure to record one event's outcome
// is counted against that event and joined into the returned error.
func (w *RetryWorker) Run(ctx context.Context, limit int) (RetryStats, error) {
	candidates, err := w.events.ListRetryable(ctx, w.maxRetries, w.Limit(limit))
	if err != nil {
		return RetryStats{}, fmt.Errorf("list retryable events: %w", err)
	}

	stats := RetryStats{TotalPending: len(candidates)}
	now := w.now()
	var runErr error

	for _, event := range candidates {
		if !w.backoff.Eligible(event, now, w.maxRetries) {
			continue
		}

		if stats.Processed > 0 && w.delay > 0 {
			select {
			case <-ctx.Done():
				log.Warn().Err(ctx.Err()).Int("processed", stats.Processed).Msg("retry run interrupted")
				return stats, errors.Join(runErr, ctx.Err())
			case <-time.After(w.delay):
			}
		}

		stats.Processed++
		outcome, err := w.processor.Attempt(ctx, event)
		if err != nil {
			log.Error().Err(err).Str("event_id", event.ID).Msg("failed to record retry outcome")
			stats.Failed++
			runErr = errors.Join(runErr, err)
			continue
		}
		if outcome.Skipped {
			stats.Processed--
			continue
		}
		if outcome.Succeeded() {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
	}

	log.Info().
		Int("processed", stats.Processed).
		Int("succeeded", stats.Succeeded).
		Int("failed", stats.Failed).
		Int("total_pending", stats.TotalPending).
		Msg("webhook retry run finished")

	return stats, runErr
}

// RunEvery calls Run on every tick until ctx is cancelled.
func (w *RetryWorker) RunEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Run(ctx, 0); err != nil {
				log.Error().Err(err).Msg("webhook retry run failed")
			}
		}
	}
}

func (w *RetryWorker) now() time.Time {
	if w.Now != nil {
		return w.Now().UTC()
	}
	return time.Now().UTC()
}
