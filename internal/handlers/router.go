package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"taskapi/internal/correlationid"
	"taskapi/internal/metrics"
	"taskapi/internal/models"
)

type RouterConfig struct {
	AllowedOrigins []string
	// Metrics, when set, instruments every route and serves /metrics.
	Metrics *metrics.Metrics
}

// NewRouter wires the resource routes, health and metrics endpoints behind
// the common middleware.
func NewRouter(h *Handlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cfg.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", correlationid.RequestIDHeader},
		ExposedHeaders: []string{correlationid.RequestIDHeader},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", h.Health)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.NewPromHandler())
	}

	r.Mount("/api/users", newResource[models.User](h.stores.Users).Routes())
	r.Mount("/api/tasks", newResource[models.Task](h.stores.Tasks).Routes())
	r.Mount("/api/priorities", newResource[models.Priority](h.stores.Priorities).Routes())
	r.Mount("/api/tags", newResource[models.Tag](h.stores.Tags).Routes())

	return r
}
