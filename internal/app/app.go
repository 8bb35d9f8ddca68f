// Package app wires repositories, engines and HTTP handlers together for the
// server and worker entrypoints.
package app

import (
	"database/sql"
	"net/http"

	"hookline/internal/api"
	"hookline/internal/api/handlers"
	"hookline/internal/api/middleware"
	"hookline/internal/engine/calls"
	"hookline/internal/engine/dispatch"
	"hookline/internal/engine/meetings"
	"hookline/internal/engine/signing"
	"hookline/internal/engine/webhooks"
	"hookline/internal/platform/audit"
	"hookline/internal/platform/auth"
	"hookline/internal/platform/config"
	"hookline/internal/platform/models"
	"hookline/internal/platform/repositories"
	"hookline/internal/workers"
)

type App struct {
	Config      *config.Config
	DB          *sql.DB
	Events      *repositories.WebhookEventRepository
	Audit       *audit.DBSink
	Processor   *webhooks.Processor
	RetryWorker *workers.RetryWorker
	Signing     *signing.Service
	Tokens      *auth.TokenService
}

func New(cfg *config.Config, db *sql.DB) *App {
	events := repositories.NewWebhookEventRepository(db)
	callLogs := repositories.NewCallLogRepository(db)
	sink := audit.NewDBSink(db)

	signingSvc := signing.NewService(repositories.NewDocumentRepository(db), sink, cfg.Signing.TokenTTL)
	signingSvc.LinkBaseURL = cfg.Signing.LinkBaseURL

	dispatcher := dispatch.NewDispatcher(
		repositories.NewDispatchRepository(db),
		callLogs,
		dispatch.NewNotifier(cfg.Notifications),
		sink,
	)

	processor := webhooks.NewProcessor(events, webhooks.Registry{
		models.SourceElevenLabs: calls.NewHandler(callLogs),
		models.SourceSignWell:   signing.NewProviderHandler(signingSvc),
		models.SourceDaily:      meetings.NewHandler(repositories.NewMeetingRepository(db)),
	}, dispatcher, cfg.Webhooks.MaxRetries)

	return &App{
		Config:      cfg,
		DB:          db,
		Events:      events,
		Audit:       sink,
		Processor:   processor,
		RetryWorker: workers.NewRetryWorker(events, processor, cfg.Webhooks),
		Signing:     signingSvc,
		Tokens:      auth.NewTokenService(cfg.JWT),
	}
}

// Handler builds the HTTP surface. The returned limiter must be closed on
// shutdown.
func (a *App) Handler() (http.Handler, *middleware.RateLimiter) {
	verifier := webhooks.SignatureVerifier{
		Secrets: map[models.Source]string{
			models.SourceElevenLabs: a.Config.Providers.ElevenLabsSecret,
			models.SourceSignWell:   a.Config.Providers.SignWellSecret,
			models.SourceDaily:      a.Config.Providers.DailySecret,
		},
	}
	limiter := middleware.NewRateLimiter(a.Config.RateLimit.PublicPerMinute)

	deps := &api.Dependencies{
		WebhookHandler: handlers.NewWebhookHandler(a.Events, a.Processor, verifier),
		RetryHandler:   handlers.NewRetryHandler(a.RetryWorker),
		EventsHandler:  handlers.NewEventsHandler(a.Events),
		SigningHandler: handlers.NewSigningHandler(a.Signing),
		AuditHandler:   handlers.NewAuditHandler(a.Audit),
		HealthHandler:  handlers.NewHealthHandler(a.DB),
		MetricsHandler: handlers.NewMetricsHandler(a.Events),
		AuthMiddleware: middleware.NewAuthMiddleware(a.Tokens),
		RateLimiter:    limiter,
	}
	return api.NewRouter(deps), limiter
}
