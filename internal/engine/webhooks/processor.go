package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"hookline/internal/engine/inbound"
	"hookline/internal/platform/models"
)

var ErrNoHandler = errors.New("no handler registered for source")

// Result is what a handler produced for a successfully processed event.
type Result struct {
	LinkedResourceID string
	Attributes       map[string]interface{}
	// Discriminator separates business events that share a kind and
	// correlation id, e.g. one document_signed per signer.
	Discriminator string
}

type Handler interface {
	Handle(ctx context.Context, event models.WebhookEvent, payload inbound.Payload) (Result, error)
}

type HandlerFunc func(ctx context.Context, event models.WebhookEvent, payload inbound.Payload) (Result, error)

func (f HandlerFunc) Handle(ctx context.Context, event models.WebhookEvent, payload inbound.Payload) (Result, error) {
	return f(ctx, event, payload)
}

// Registry maps a provider to the handler for its events.
type Registry map[models.Source]Handler

// Dispatcher performs the dependent writes for a successfully processed event.
type Dispatcher interface {
	Dispatch(ctx context.Context, event models.WebhookEvent, payload inbound.Payload, result Result) error
}

// EventStore is the subset of the event repository the processor writes to.
type EventStore interface {
	MarkSucceeded(ctx context.Context, id string, attempts int, at time.Time, linkedResourceID string) error
	MarkFailed(ctx context.Context, id string, attempts int, at time.Time, status models.ProcessingStatus, lastError string) error
}

// Outcome describes one processing attempt.
type Outcome struct {
	Status           models.ProcessingStatus
	Attempts         int
	LinkedResourceID string
	// Err is the processing failure recorded as the event's last error.
	Err     error
	Skipped bool
}

func (o Outcome) Succeeded() bool { return o.Status == models.StatusSuccess && !o.Skipped }

// Processor is the shared processing routine used by the receivers and the
// retry worker.
type Processor struct {
	Store      EventStore
	Handlers   Registry
	Dispatcher Dispatcher
	MaxRetries int
	Now        func() time.Time
}

func NewProcessor(store EventStore, handlers Registry, dispatcher Dispatcher, maxRetries int) *Processor {
	return &Processor{
		Store:      store,
		Handlers:   handlers,
		Dispatcher: dispatcher,
		MaxRetries: maxRetries,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Attempt processes event once and records the outcome. The returned error
// is reserved for event store failures; processing failures are recorded on
// the event and reported through Outcome.Err. On success event is updated
// in place.
func (p *Processor) Attempt(ctx context.Context, event *models.WebhookEvent) (Outcome, error) {
	if event.ProcessingStatus.Terminal() || event.ProcessingAttempts >= p.maxRetries() {
		return Outcome{Status: event.ProcessingStatus, Attempts: event.ProcessingAttempts, Skipped: true}, nil
	}

	now := p.now()
	attempts := event.ProcessingAttempts + 1
	logger := log.With().Str("event_id", event.ID).Str("source", string(event.Source)).Int("attempt", attempts).Logger()

	payload, result, procErr := p.run(ctx, *event)
	if procErr == nil {
		if err := p.Store.MarkSucceeded(ctx, event.ID, attempts, now, result.LinkedResourceID); err != nil {
			return Outcome{}, fmt.Errorf("record success for %s: %w", event.ID, err)
		}

		event.ProcessingStatus = models.StatusSuccess
		event.ProcessingAttempts = attempts
		event.LastAttemptAt = &now
		event.ProcessedAt = &now
		event.LastError = nil
		if result.LinkedResourceID != "" {
			linked := result.LinkedResourceID
			event.LinkedResourceID = &linked
		}
		logger.Info().Str("linked_resource_id", result.LinkedResourceID).Msg("webhook event processed")

		if p.Dispatcher != nil {
			if err := p.Dispatcher.Dispatch(ctx, *event, payload, result); err != nil {
				logger.Warn().Err(err).Msg("downstream dispatch failed")
			}
		}

		return Outcome{Status: models.StatusSuccess, Attempts: attempts, LinkedResourceID: result.LinkedResourceID}, nil
	}

	status := models.StatusFailed
	if attempts >= p.maxRetries() {
		status = models.StatusMaxRetriesExceeded
	}
	if err := p.Store.MarkFailed(ctx, event.ID, attempts, now, status, procErr.Error()); err != nil {
		return Outcome{}, fmt.Errorf("record failure for %s: %w", event.ID, err)
	}

	msg := procErr.Error()
	event.ProcessingStatus = status
	event.ProcessingAttempts = attempts
	event.LastAttemptAt = &now
	event.LastError = &msg
	logger.Warn().Err(procErr).Str("status", string(status)).Msg("webhook event processing failed")

	return Outcome{Status: status, Attempts: attempts, Err: procErr}, nil
}

func (p *Processor) run(ctx context.Context, event models.WebhookEvent) (payload inbound.Payload, result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	handler, ok := p.Handlers[event.Source]
	if !ok {
		return nil, Result{}, fmt.Errorf("%w: %s", ErrNoHandler, event.Source)
	}

	payload, err = inbound.Parse(event.Source, event.RawPayload)
	if err != nil {
		return nil, Result{}, err
	}

	result, err = handler.Handle(ctx, event, payload)
	return payload, result, err
}

func (p *Processor) maxRetries() int {
	if p.MaxRetries <= 0 {
		return 5
	}
	return p.MaxRetries
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}
