// Blogstream - High-Throughput Blog Ingest and Batch Persistence
// Copyright 2026 The Blogstream Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/blogstream/blogstream

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig tunes the middleware stack.
type RouterConfig struct {
	// RateLimitRequests per RateLimitWindow per client IP. Zero disables
	// rate limiting.
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// DefaultRouterConfig allows a generous per-IP budget; the ingest path is
// designed for sustained high rates.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		RateLimitRequests: 5000,
		RateLimitWindow:   time.Minute,
	}
}

// NewRouter assembles the chi router. CORS is wide open: the API serves a
// separate frontend origin.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.HealthLive)
	r.Get("/readyz", h.HealthReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(prometheusMetrics)
		if cfg.RateLimitRequests > 0 {
			r.Use(httprate.Limit(cfg.RateLimitRequests, cfg.RateLimitWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP)))
		}

		r.Post("/blogs", h.CreateBlog)
		r.Get("/blogs", h.ListBlogs)
		r.Get("/blogs/{id}", h.GetBlog)
		r.Put("/blogs/{id}", h.UpdateBlog)
		r.Delete("/blogs/{id}", h.DeleteBlog)
		r.Post("/blogs/bulk-delete", h.BulkDelete)
		r.Post("/blogs/bulk-update", h.BulkUpdate)
	})

	return r
}
