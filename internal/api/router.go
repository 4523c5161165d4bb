package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hackgods/healing-scheduler/internal/metrics"
	"github.com/hackgods/healing-scheduler/internal/scheduling"
)

type RouterConfig struct {
	Engine   *scheduling.Engine
	Bookings *scheduling.BookingService
	Rules    *scheduling.RuleService
	Logger   *zap.Logger

	// Metrics is optional; nil disables the middleware and the scrape endpoint.
	Metrics     *metrics.Metrics
	MetricsPath string

	RateLimitPerMinute int
	RateLimitBurst     int

	Dependencies []Dependency
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := cfg.Engine.Location()

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(logger))
	if cfg.Metrics != nil {
		r.Use(MetricsMiddleware(cfg.Metrics))
	}
	r.Use(middleware.Timeout(30 * time.Second))

	// Health endpoints
	health := NewHealthHandler(cfg.Dependencies, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, cfg.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(cfg.RateLimitPerMinute, cfg.RateLimitBurst, logger))

		// Availability endpoints
		r.Route("/staff/{staffID}", func(r chi.Router) {
			r.Get("/slots", getSlotsHandler(cfg.Engine, cfg.Metrics))
			r.Get("/slots/range", getSlotRangeHandler(cfg.Engine, cfg.Metrics))
			r.Get("/availability", checkAvailabilityHandler(cfg.Engine))
			r.Get("/rules", listRulesHandler(cfg.Rules))
			r.Put("/rules", upsertRuleHandler(cfg.Rules, loc))
		})
		r.Delete("/rules/{id}", deleteRuleHandler(cfg.Rules))

		// Booking endpoints
		r.Post("/bookings", createBookingHandler(cfg.Bookings, loc, cfg.Metrics))
		r.Post("/bookings/validate", validateBookingHandler(cfg.Engine, logger))
		r.Get("/bookings/{id}", getBookingHandler(cfg.Bookings))
		r.Patch("/bookings/{id}/schedule", rescheduleBookingHandler(cfg.Bookings, loc, cfg.Metrics))
		r.Patch("/bookings/{id}/status", updateBookingStatusHandler(cfg.Bookings, cfg.Metrics))
		r.Delete("/bookings/{id}", deleteBookingHandler(cfg.Bookings))
	})

	return r
}
