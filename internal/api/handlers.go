// Blogstream - High-Throughput Blog Ingest and Batch Persistence
// Copyright 2026 The Blogstream Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/blogstream/blogstream

// Package api exposes the HTTP surface: the create endpoints, the
// query/mutation facade over the record store, and health endpoints.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/blogstream/blogstream/internal/database"
	"github.com/blogstream/blogstream/internal/ingest"
	"github.com/blogstream/blogstream/internal/models"
	"github.com/blogstream/blogstream/internal/validation"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// IngestService is the write-path service behind POST /blogs.
type IngestService interface {
	Enqueue(ctx context.Context, req *models.BlogCreateRequest) (*models.EnqueueResponse, error)
	CreateSync(ctx context.Context, req *models.BlogCreateRequest) (*models.CreateResponse, error)
}

// Store is the record store behind the query/mutation facade.
type Store interface {
	GetBlog(ctx context.Context, id uint64) (*models.Blog, error)
	ListBlogs(ctx context.Context, filter database.ListFilter) ([]models.Blog, error)
	UpdateBlogContent(ctx context.Context, id uint64, content string, updatedAt time.Time) error
	DeleteBlog(ctx context.Context, id uint64) error
	BulkDeleteBlogs(ctx context.Context, ids []uint64) (int64, error)
	BulkUpdateBlogs(ctx context.Context, ids []uint64, genre, location, content string) (int64, error)
}

// Pinger reports reachability of a backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the HTTP handlers and their dependencies.
type Handler struct {
	service IngestService
	store   Store
	db      Pinger
	bus     Pinger
}

// NewHandler constructs the handler set.
func NewHandler(service IngestService, store Store, db, bus Pinger) *Handler {
	return &Handler{service: service, store: store, db: db, bus: bus}
}

// CreateBlog handles POST /blogs. The sync query parameter selects the
// synchronous path; the default is asynchronous enqueue.
func (h *Handler) CreateBlog(w http.ResponseWriter, r *http.Request) {
	var req models.BlogCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", verr.Error(), nil)
		return
	}

	sync, _ := strconv.ParseBool(r.URL.Query().Get("sync"))
	if sync {
		resp, err := h.service.CreateSync(r.Context(), &req)
		if err != nil {
			h.respondServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, resp)
		return
	}

	resp, err := h.service.Enqueue(r.Context(), &req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetBlog handles GET /blogs/{id}.
func (h *Handler) GetBlog(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	blog, err := h.store.GetBlog(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, blog.Out())
}

// ListBlogs handles GET /blogs. The limit is clamped to [1, 500]; a negative
// offset is rejected.
func (h *Handler) ListBlogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := defaultListLimit
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be an integer", nil)
			return
		}
		limit = parsed
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	offset := 0
	if raw := q.Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "offset must be a non-negative integer", nil)
			return
		}
		offset = parsed
	}

	blogs, err := h.store.ListBlogs(r.Context(), database.ListFilter{
		Author:   q.Get("author"),
		Genre:    q.Get("genre"),
		Location: q.Get("location"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.respondStoreError(w, err)
		return
	}

	out := make([]models.BlogOut, len(blogs))
	for i := range blogs {
		out[i] = blogs[i].Out()
	}
	respondJSON(w, http.StatusOK, out)
}

// UpdateBlog handles PUT /blogs/{id}.
func (h *Handler) UpdateBlog(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req models.BlogUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", verr.Error(), nil)
		return
	}

	updatedAt := time.Now().UTC()
	if req.UpdatedAtISO != "" {
		parsed, err := models.ParseISOTime(req.UpdatedAtISO)
		if err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "updated_at_iso is not a valid timestamp", nil)
			return
		}
		updatedAt = parsed
	}

	if err := h.store.UpdateBlogContent(r.Context(), id, req.Content, updatedAt); err != nil {
		h.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, &models.StatusResponse{Status: "updated", ID: id})
}

// DeleteBlog handles DELETE /blogs/{id}.
func (h *Handler) DeleteBlog(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteBlog(r.Context(), id); err != nil {
		h.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, &models.StatusResponse{Status: "deleted", ID: id})
}

// BulkDelete handles POST /blogs/bulk-delete.
func (h *Handler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req models.BulkDeleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", verr.Error(), nil)
		return
	}

	deleted, err := h.store.BulkDeleteBlogs(r.Context(), req.IDs)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, &models.BulkDeleteResponse{Deleted: deleted})
}

// BulkUpdate handles POST /blogs/bulk-update. At least one field of set must
// be present; absent fields leave the column unchanged.
func (h *Handler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req models.BulkUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", verr.Error(), nil)
		return
	}
	if req.Set.Empty() {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "no fields to update", nil)
		return
	}

	var genre, location, content string
	if req.Set.Genre != nil {
		genre = *req.Set.Genre
	}
	if req.Set.Location != nil {
		location = *req.Set.Location
	}
	if req.Set.Content != nil {
		content = *req.Set.Content
	}

	updated, err := h.store.BulkUpdateBlogs(r.Context(), req.IDs, genre, location, content)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, &models.BulkUpdateResponse{Updated: updated})
}

// HealthLive handles GET /healthz: process liveness only.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// HealthReady handles GET /readyz: checks the record store and stream bus.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"mysql": "ok", "redis": "ok"}
	status := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		checks["mysql"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := h.bus.Ping(ctx); err != nil {
		checks["redis"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, checks)
}

func parseID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "id must be a positive integer", nil)
		return 0, false
	}
	return id, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, ingest.ErrInvalidArgument) {
		respondError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error(), nil)
		return
	}
	respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error", err)
}

func (h *Handler) respondStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error", err)
}
