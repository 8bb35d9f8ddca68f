// Package dispatch performs the dependent writes that follow a successfully
// processed webhook event, at most once per business event.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"hookline/internal/engine/inbound"
	"hookline/internal/engine/webhooks"
	"hookline/internal/platform/audit"
	"hookline/internal/platform/models"
)

type ClaimStore interface {
	Claim(ctx context.Context, d *models.WebhookDispatch) (bool, error)
}

type CallStatusStore interface {
	UpdateWebhookStatus(ctx context.Context, id, status string) error
}

type Dispatcher struct {
	claims   ClaimStore
	calls    CallStatusStore
	notifier Notifier
	sink     audit.Sink
	Now      func() time.Time
}

func NewDispatcher(claims ClaimStore, calls CallStatusStore, notifier Notifier, sink audit.Sink) *Dispatcher {
	return &Dispatcher{
		claims:   claims,
		calls:    calls,
		notifier: notifier,
		sink:     sink,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Key identifies a business event across duplicate deliveries.
func Key(source models.Source, kind, correlationID string, discriminator ...string) string {
	key := fmt.Sprintf("%s:%s:%s", source, kind, correlationID)
	for _, d := range discriminator {
		if d != "" {
			key += ":" + d
		}
	}
	return key
}

// Dispatch claims the event's dispatch key and, if this is the first claim,
// runs the side effects. Side-effect failures are joined into the returned
// error; the claim is kept either way.
func (d *Dispatcher) Dispatch(ctx context.Context, event models.WebhookEvent, payload inbound.Payload, result webhooks.Result) error {
	key := Key(event.Source, payload.Kind(), payload.CorrelationID(), result.Discriminator)
	logger := log.With().Str("event_id", event.ID).Str("dispatch_key", key).Logger()

	claimed, err := d.claims.Claim(ctx, &models.WebhookDispatch{
		DispatchKey:      key,
		EventID:          event.ID,
		LinkedResourceID: result.LinkedResourceID,
		DispatchedAt:     d.now(),
	})
	if err != nil {
		return fmt.Errorf("claim dispatch %s: %w", key, err)
	}
	if !claimed {
		logger.Debug().Msg("already dispatched")
		return nil
	}

	var dispatchErr error

	if event.Source == models.SourceElevenLabs && result.LinkedResourceID != "" && d.calls != nil {
		if err := d.calls.UpdateWebhookStatus(ctx, result.LinkedResourceID, models.CallWebhookProcessed); err != nil {
			dispatchErr = errors.Join(dispatchErr, fmt.Errorf("update call log: %w", err))
		}
	}

	if d.notifier != nil {
		err := d.notifier.Notify(ctx, Notification{
			ID:      event.ID,
			Type:    fmt.Sprintf("com.hookline.%s.%s", event.Source, payload.Kind()),
			Subject: result.LinkedResourceID,
			Time:    d.now(),
			Data:    notificationData(event, payload, result),
		})
		if err != nil {
			dispatchErr = errors.Join(dispatchErr, err)
		}
	}

	if d.sink != nil {
		err := d.sink.Append(ctx, audit.Event{
			Name: "webhook.dispatched",
			Attributes: map[string]interface{}{
				"event_id":           event.ID,
				"source":             string(event.Source),
				"kind":               payload.Kind(),
				"linked_resource_id": result.LinkedResourceID,
			},
		})
		if err != nil {
			dispatchErr = errors.Join(dispatchErr, fmt.Errorf("append audit event: %w", err))
		}
	}

	if dispatchErr != nil {
		logger.Warn().Err(dispatchErr).Msg("dispatch completed with errors")
	} else {
		logger.Info().Str("linked_resource_id", result.LinkedResourceID).Msg("dispatched")
	}
	return dispatchErr
}

func notificationData(event models.WebhookEvent, payload inbound.Payload, result webhooks.Result) map[string]interface{} {
	data := make(map[string]interface{}, len(result.Attributes)+3)
	for k, v := range result.Attributes {
		data[k] = v
	}
	data["event_id"] = event.ID
	data["correlation_id"] = payload.CorrelationID()
	if result.LinkedResourceID != "" {
		data["linked_resource_id"] = result.LinkedResourceID
	}
	return data
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}
