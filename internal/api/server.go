package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/edvin/bookwell/internal/api/handler"
	mw "github.com/edvin/bookwell/internal/api/middleware"
	"github.com/edvin/bookwell/internal/config"
	"github.com/edvin/bookwell/internal/core"
)

type Server struct {
	router      chi.Router
	logger      zerolog.Logger
	services    *core.Services
	pool        *pgxpool.Pool
	plans       *config.PlanCatalog
	cfg         *config.Config
	auditLogger *mw.AuditLogger
}

func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, services *core.Services, plans *config.PlanCatalog, cfg *config.Config) *Server {
	auditLogger := mw.NewAuditLogger(pool, logger)

	s := &Server{
		router:      chi.NewRouter(),
		logger:      logger,
		services:    services,
		pool:        pool,
		plans:       plans,
		cfg:         cfg,
		auditLogger: auditLogger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.Auth(s.pool))
		r.Use(s.auditLogger.Middleware)

		// Billing
		billing := handler.NewBilling(s.services.Billing)
		r.Get("/billing/stats", billing.Stats)
		r.Get("/billing/events", billing.Events)
		r.With(mw.RequireOwner()).Post("/billing/run-daily", billing.RunDaily)

		// Subscriptions
		subscription := handler.NewSubscription(s.services.Subscription, s.plans)
		r.Get("/plans", subscription.ListPlans)
		r.Get("/subscriptions/{id}", subscription.Get)
		r.Get("/organizations/{orgID}/subscription", subscription.GetByOrganization)
		r.With(mw.RequireOwner()).Post("/subscriptions", subscription.Create)
		r.With(mw.RequireOwner()).Post("/subscriptions/{id}/cancel", subscription.Cancel)
		r.With(mw.RequireOwner()).Put("/subscriptions/{id}/payment-token", subscription.RegisterPaymentToken)

		// API keys
		apiKey := handler.NewAPIKey(s.services.APIKey)
		r.With(mw.RequireOwner()).Get("/api-keys", apiKey.List)
		r.With(mw.RequireOwner()).Post("/api-keys", apiKey.Create)
		r.With(mw.RequireOwner()).Get("/api-keys/{id}", apiKey.Get)
		r.With(mw.RequireOwner()).Delete("/api-keys/{id}", apiKey.Revoke)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.pool.Ping(ctx); err != nil {
		checks["db"] = err.Error()
		healthy = false
	} else {
		checks["db"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close flushes the async audit writer.
func (s *Server) Close() {
	s.auditLogger.Close()
}
