package ops

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/kevin07696/settlement-recon/internal/handlers/cron"
	"github.com/kevin07696/settlement-recon/pkg/middleware"
	"github.com/kevin07696/settlement-recon/pkg/observability"
)

// RouterConfig wires handlers and middleware into one HTTP router
type RouterConfig struct {
	Ops         *Handler
	Webhooks    *WebhookHandler
	Cron        *cron.ReconHandler
	RateLimiter *middleware.RateLimiter
	CORSOrigins []string
}

// NewRouter builds the HTTP API. Cron endpoints sit outside the rate limiter.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(observability.HTTPMetrics(routePattern))

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Retry-After"},
			AllowCredentials: false,
			MaxAge:           int((12 * time.Hour).Seconds()),
		}))
	}

	if cfg.Cron != nil {
		r.Route("/cron", cfg.Cron.Routes)
	}

	r.Group(func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Middleware)
		}

		if cfg.Ops != nil {
			r.Route("/api/v1", func(r chi.Router) {
				r.Get("/pipeline", cfg.Ops.Pipeline)

				r.Get("/exceptions", cfg.Ops.ListExceptions)
				r.Post("/exceptions/bulk", cfg.Ops.BulkAction)
				r.Get("/exceptions/{id}", cfg.Ops.GetException)
				r.Post("/exceptions/{id}/actions", cfg.Ops.ApplyAction)

				r.Get("/batches/{id}", cfg.Ops.GetBatch)
				r.Post("/batches/{id}/transition", cfg.Ops.TransitionBatch)
			})
		}

		if cfg.Webhooks != nil {
			r.Post("/webhooks/{gateway}/bank-credits", cfg.Webhooks.BankCredit)
		}
	})

	return r
}

// routePattern labels metrics by the matched chi pattern, so path ids do not
// blow up label cardinality
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
