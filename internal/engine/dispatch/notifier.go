package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	cebinding "github.com/cloudevents/sdk-go/v2/binding"
	ceevent "github.com/cloudevents/sdk-go/v2/event"
	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"
	"github.com/rs/zerolog/log"

	"hookline/internal/engine/webhooks"
	"hookline/internal/platform/config"
)

const HeaderNotificationSignature = "X-Hookline-Signature"

// Notification is the downstream announcement of a processed event.
type Notification struct {
	ID      string
	Type    string
	Subject string
	Time    time.Time
	Data    map[string]interface{}
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// HTTPNotifier posts notifications as binary-mode CloudEvents.
type HTTPNotifier struct {
	targetURL string
	secret    string
	source    string
	client    *http.Client
}

func NewHTTPNotifier(cfg config.NotificationsConfig) *HTTPNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	source := cfg.Source
	if source == "" {
		source = "/hookline"
	}
	return &HTTPNotifier{
		targetURL: strings.TrimSpace(cfg.TargetURL),
		secret:    cfg.Secret,
		source:    source,
		client:    &http.Client{Timeout: timeout},
	}
}

func (n *HTTPNotifier) Notify(ctx context.Context, note Notification) error {
	e := ceevent.New()
	e.SetID(note.ID)
	e.SetSource(n.source)
	e.SetType(note.Type)
	e.SetTime(note.Time)
	if note.Subject != "" {
		e.SetSubject(note.Subject)
	}
	if err := e.SetData(ceevent.ApplicationJSON, note.Data); err != nil {
		return fmt.Errorf("encode notification data: %w", err)
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.targetURL, nil)
	if err != nil {
		return err
	}
	if err := cehttp.WriteRequest(ctx, cebinding.ToMessage(&e), req); err != nil {
		return fmt.Errorf("write cloudevent: %w", err)
	}

	if n.secret != "" {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return err
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.ContentLength = int64(len(body))
		req.Header.Set(HeaderNotificationSignature, webhooks.Sign(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("deliver notification: HTTP %d", resp.StatusCode)
	}
	return nil
}

// LogNotifier is used when no target URL is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, note Notification) error {
	log.Info().Str("notification_id", note.ID).Str("type", note.Type).Str("subject", note.Subject).Msg("notification (no target configured)")
	return nil
}

// NewNotifier picks the HTTP notifier when a target is configured.
func NewNotifier(cfg config.NotificationsConfig) Notifier {
	if strings.TrimSpace(cfg.TargetURL) == "" {
		return LogNotifier{}
	}
	return NewHTTPNotifier(cfg)
}
