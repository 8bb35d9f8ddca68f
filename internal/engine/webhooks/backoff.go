package webhooks

import (
	"time"

	"hookline/internal/platform/models"
)

// Backoff is a staircase schedule indexed by attempt count. Attempts past
// the end reuse the last step.
type Backoff []time.Duration

var DefaultBackoff = Backoff{
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	60 * time.Minute,
	240 * time.Minute,
}

func (b Backoff) Delay(attempts int) time.Duration {
	if len(b) == 0 {
		return 0
	}
	if attempts < 0 {
		attempts = 0
	}
	if attempts > len(b)-1 {
		attempts = len(b) - 1
	}
	return b[attempts]
}

// Deadline is the earliest time the event may be attempted again. An event
// that was never attempted has no deadline.
func (b Backoff) Deadline(event *models.WebhookEvent) (time.Time, bool) {
	if event.LastAttemptAt == nil {
		return time.Time{}, false
	}
	return event.LastAttemptAt.Add(b.Delay(event.ProcessingAttempts)), true
}

func (b Backoff) Eligible(event *models.WebhookEvent, now time.Time, maxRetries int) bool {
	if event.ProcessingStatus != models.StatusPending && event.ProcessingStatus != models.StatusFailed {
		return false
	}
	if event.ProcessingAttempts >= maxRetries {
		return false
	}
	deadline, ok := b.Deadline(event)
	if !ok {
		return true
	}
	return !now.Before(deadline)
}
