package chi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/restaurant-platform/webhook-gateway/webhook"
)

// Options tunes the HTTP surface
type Options struct {
	// FastAck acknowledges queued deliveries with 200 instead of 503,
	// for platforms that disable their webhooks after repeated errors
	FastAck bool
	// DeadLetterLimit caps GET /api/webhooks/deadletter (default 100)
	DeadLetterLimit int
}

// Handlers sets up the gateway API routes
func Handlers(ctx context.Context, webhookService webhook.UseCase, opts Options) *chi.Mux {
	if opts.DeadLetterLimit <= 0 {
		opts.DeadLetterLimit = 100
	}

	logger := httplog.NewLogger("webhook-gateway", httplog.Options{
		JSON: true,
	})

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/webhooks", func(r chi.Router) {
		// Liveness probe, bypasses the ingestion pipeline entirely
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"status":    "healthy",
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
		})

		r.Get("/logs/{id}", getLog(webhookService).ServeHTTP)
		r.Get("/deadletter", getDeadLetters(webhookService, opts.DeadLetterLimit).ServeHTTP)
		r.Post("/deadletter/{id}/requeue", postRequeue(webhookService).ServeHTTP)
		r.Post("/{provider}", postWebhook(webhookService, opts.FastAck).ServeHTTP)
	})

	return r
}
