package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/config"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/metrics"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/transport/http/handlers"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/transport/http/middleware"
)

func New(
	h *handlers.OrdersHandler,
	z *handlers.HealthHandler,
	cfg *config.Config,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.AccessLog)
	r.Use(middleware.Metrics)

	if cfg.RLEnabled {
		r.Use(httprate.LimitByIP(cfg.RLLimit, cfg.RLWindow))
	}

	r.Get("/healthz", z.Healthz)
	r.Get("/readyz", z.Readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Post("/new/", h.Create)
		r.Get("/{order_id}/status", h.GetStatus)
	})

	return r
}
