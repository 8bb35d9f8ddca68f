package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "hookline/internal/api/context"
	"hookline/internal/api/handlers"
	"hookline/internal/api/middleware"
	"hookline/internal/platform/auth"
)

type Dependencies struct {
	WebhookHandler *handlers.WebhookHandler
	RetryHandler   *handlers.RetryHandler
	EventsHandler  *handlers.EventsHandler
	SigningHandler *handlers.SigningHandler
	AuditHandler   *handlers.AuditHandler
	HealthHandler  *handlers.HealthHandler
	MetricsHandler *handlers.MetricsHandler
	AuthMiddleware *middleware.AuthMiddleware
	RateLimiter    *middleware.RateLimiter
}

func NewRouter(deps *Dependencies) http.Handler {
	router := httprouter.New()

	authMid := deps.AuthMiddleware
	limit := deps.RateLimiter.Handle

	// Provider callbacks
	router.POST("/webhooks/elevenlabs", chain(deps.WebhookHandler.ElevenLabs, limit))
	router.POST("/webhooks/signwell", chain(deps.WebhookHandler.SignWell, limit))
	router.POST("/webhooks/daily", chain(deps.WebhookHandler.Daily, limit))

	// Retry trigger for the external scheduler
	router.POST("/api/v1/webhooks/retry",
		chain(deps.RetryHandler.Run, authMid.Handle, middleware.RequireScope(auth.ScopeWebhooksRetry)))

	// Event log
	router.GET("/api/v1/webhooks/events",
		chain(deps.EventsHandler.List, authMid.Handle, middleware.RequireScope(auth.ScopeWebhooksRead)))
	router.GET("/api/v1/webhooks/events/:id",
		chain(deps.EventsHandler.Get, authMid.Handle, middleware.RequireScope(auth.ScopeWebhooksRead)))
	router.GET("/api/v1/audit",
		chain(deps.AuditHandler.List, authMid.Handle, middleware.RequireScope(auth.ScopeWebhooksRead)))

	// Signing links, authenticated by the signer's access token
	router.GET("/api/v1/signing/:signer_id", chain(deps.SigningHandler.GetContext, limit))
	router.GET("/api/v1/signing/:signer_id/qr", chain(deps.SigningHandler.QRCode, limit))
	router.POST("/api/v1/signing/:signer_id/decline", chain(deps.SigningHandler.Decline, limit))

	// Document management
	router.POST("/api/v1/documents",
		chain(deps.SigningHandler.CreateDocument, authMid.Handle, middleware.RequireScope(auth.ScopeDocumentsWrite)))
	router.GET("/api/v1/documents/:id",
		chain(deps.SigningHandler.GetDocument, authMid.Handle, middleware.RequireScope(auth.ScopeDocumentsRead)))

	router.GET("/health", wrap(deps.HealthHandler.Check))
	router.GET("/metrics", wrap(deps.MetricsHandler.Export))

	return middleware.RequestLogger(router)
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
