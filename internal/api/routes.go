package api

import (
	"net/http"
	"time"

	"cash-buying-power/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates and configures a Chi router with all routes
func NewRouter(h *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second))
	r.Use(CORSMiddleware(cfg.HTTP.CORSAllowedOrigins))
	r.Use(MetricsMiddleware)

	// Metrics endpoint for Prometheus
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(LoggingMiddleware)

		r.Get("/health", h.HandleHealth)

		// Buying power queries
		r.Route("/securities/{symbol}", func(r chi.Router) {
			r.Get("/leverage", h.HandleGetLeverage)
			r.Put("/leverage", h.HandleSetLeverage)
			r.Get("/buying-power", h.HandleGetBuyingPower)
			r.Get("/reserved-buying-power", h.HandleGetReservedBuyingPower)
			r.Put("/price", h.HandleSetPrice)
		})
		r.Post("/sizing/max-quantity", h.HandleMaxQuantity)

		// Orders
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.HandleGetOrders)
			r.Post("/", h.HandleCreateOrder)
			r.Post("/affordability", h.HandleCanAfford)
			r.Delete("/{id}", h.HandleCancelOrder)
			r.Post("/{id}/fill", h.HandleFillOrder)
		})

		// Cash book
		r.Get("/cash", h.HandleGetCash)
		r.Put("/cash/{currency}", h.HandleSetCash)

		// Audit trail
		r.Get("/evaluations", h.HandleGetEvaluations)
	})

	return r
}

// CORSMiddleware returns CORS middleware with the specified allowed origins
func CORSMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
