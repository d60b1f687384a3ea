// Blogstream - High-Throughput Blog Ingest and Batch Persistence
// Copyright 2026 The Blogstream Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/blogstream/blogstream

package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/blogstream/blogstream/internal/database"
	"github.com/blogstream/blogstream/internal/ingest"
	"github.com/blogstream/blogstream/internal/models"
)

type mockService struct {
	enqueueResp *models.EnqueueResponse
	createResp  *models.CreateResponse
	err         error
	lastSync    bool
}

func (m *mockService) Enqueue(_ context.Context, _ *models.BlogCreateRequest) (*models.EnqueueResponse, error) {
	m.lastSync = false
	return m.enqueueResp, m.err
}

func (m *mockService) CreateSync(_ context.Context, _ *models.BlogCreateRequest) (*models.CreateResponse, error) {
	m.lastSync = true
	return m.createResp, m.err
}

type mockStoreAPI struct {
	blogs       map[uint64]*models.Blog
	listResult  []models.Blog
	lastFilter  database.ListFilter
	deleted     []uint64
	bulkCount   int64
	bulkUpdates int
	err         error
}

func (m *mockStoreAPI) GetBlog(_ context.Context, id uint64) (*models.Blog, error) {
	if m.err != nil {
		return nil, m.err
	}
	b, ok := m.blogs[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return b, nil
}

func (m *mockStoreAPI) ListBlogs(_ context.Context, filter database.ListFilter) ([]models.Blog, error) {
	m.lastFilter = filter
	return m.listResult, m.err
}

func (m *mockStoreAPI) UpdateBlogContent(_ context.Context, id uint64, _ string, _ time.Time) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.blogs[id]; !ok {
		return database.ErrNotFound
	}
	return nil
}

func (m *mockStoreAPI) DeleteBlog(_ context.Context, id uint64) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.blogs[id]; !ok {
		return database.ErrNotFound
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockStoreAPI) BulkDeleteBlogs(_ context.Context, ids []uint64) (int64, error) {
	return m.bulkCount, m.err
}

func (m *mockStoreAPI) BulkUpdateBlogs(_ context.Context, _ []uint64, _, _, _ string) (int64, error) {
	m.bulkUpdates++
	return m.bulkCount, m.err
}

type mockPinger struct{ err error }

func (m *mockPinger) Ping(context.Context) error { return m.err }

func newTestRouter(service IngestService, store Store, db, bus Pinger) http.Handler {
	h := NewHandler(service, store, db, bus)
	return NewRouter(h, RouterConfig{})
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateBlogAsync(t *testing.T) {
	svc := &mockService{enqueueResp: &models.EnqueueResponse{
		Status: "enqueued", Stream: "blogs:genre:tech", MessageID: "1-0",
	}}
	router := newTestRouter(svc, &mockStoreAPI{}, &mockPinger{}, &mockPinger{})

	body := `{"author":"ada","content":"hello","genre":"tech","location":"london"}`
	rec := doRequest(t, router, http.MethodPost, "/blogs", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if svc.lastSync {
		t.Error("default path must be async")
	}
	var resp models.EnqueueResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if resp.Status != "enqueued" || resp.Stream != "blogs:genre:tech" || resp.MessageID != "1-0" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestCreateBlogSyncParam(t *testing.T) {
	svc := &mockService{createResp: &models.CreateResponse{Status: "created", ID: 7}}
	router := newTestRouter(svc, &mockStoreAPI{}, &mockPinger{}, &mockPinger{})

	body := `{"author":"ada","content":"hello","genre":"tech","location":"london"}`
	rec := doRequest(t, router, http.MethodPost, "/blogs?sync=true", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !svc.lastSync {
		t.Error("sync=true must take the synchronous path")
	}
	if !strings.Contains(rec.Body.String(), `"id":7`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestCreateBlogValidation(t *testing.T) {
	router := newTestRouter(&mockService{}, &mockStoreAPI{}, &mockPinger{}, &mockPinger{})

	rec := doRequest(t, router, http.MethodPost, "/blogs", `{"author":"ada"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body models.ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad error body: %v", err)
	}
	if body.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %q", body.Error.Code)
	}
}

func TestCreateBlogInvalidArgument(t *testing.T) {
	svc := &mockService{err: fmt.Errorf("%w: author, content, genre, location are required", ingest.ErrInvalidArgument)}
	router := newTestRouter(svc, &mockStoreAPI{}, &mockPinger{}, &mockPinger{})

	body := `{"author":"  ","content":"x","genre":"tech","location":"london"}`
	rec := doRequest(t, router, http.MethodPost, "/blogs", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetBlog(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	store := &mockStoreAPI{blogs: map[uint64]*models.Blog{
		7: {ID: 7, Author: "ada", Genre: "tech", Location: "london", Content: "x", CreatedAt: created, UpdatedAt: created},
	}}
	router := newTestRouter(&mockService{}, store, &mockPinger{}, &mockPinger{})

	rec := doRequest(t, router, http.MethodGet, "/blogs/7", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out models.BlogOut
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if out.ID != 7 || out.Author != "ada" {
		t.Errorf("out = %+v", out)
	}
	if out.ClientMsgID != nil {
		t.Error("client_msg_id must be null when absent")
	}
	if out.CreatedAtISO != "2026-03-14T09:26:53Z" {
		t.Errorf("created_at_iso = %q", out.CreatedAtISO)
	}
}

func TestGetBlogNotFound(t *testing.T) {
	router := newTestRouter(&mockService{}, &mockStoreAPI{blogs: map[uint64]*models.Blog{}}, &mockPinger{}, &mockPinger{})

	rec := doRequest(t, router, http.MethodGet, "/blogs/99", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetBlogBadID(t *testing.T) {
	router := newTestRouter(&mockService{}, &mockStoreAPI{}, &mockPinger{}, &mockPinger{})
	rec := doRequest(t, router, http.MethodGet, "/blogs/abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListBlogsClampsLimit(t *testing.T) {
	store := &mockStoreAPI{}
	router := newTestRouter(&mockService{}, store, &mockPinger{}, &mockPinger{})

	rec := doRequest(t, router, http.MethodGet, "/blogs?limit=9999&genre=tech", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if store.lastFilter.Limit != maxListLimit {
		t.Errorf("limit = %d, want clamped to %d", store.lastFilter.Limit, maxListLimit)
	}
	if store.lastFilter.Genre != "tech" {
		t.Errorf("genre filter = %q", store.lastFilter.Genre)
	}

	rec = doRequest(t, router, http.MethodGet, "/blogs?limit=0", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if store.lastFilter.Limit != 1 {
		t.Errorf("limit = %d, want clamped to 1", store.lastFilter.Limit)
	}
}

func TestListBlogsRejectsNegativeOffset(t *testing.T) {
	router := newTestRouter(&mockService{}, &mockStoreAPI{}, &mockPinger{}, &mockPinger{})
	rec := doRequest(t, router, http.MethodGet, "/blogs?offset=-1", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListBlogsDefaultsAndEmptyResult(t *testing.T) {
	store := &mockStoreAPI{}
	router := newTestRouter(&mockService{}, store, &mockPinger{}, &mockPinger{})

	rec := doRequest(t, router, http.MethodGet, "/blogs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if store.lastFilter.Limit != defaultListLimit || store.lastFilter.Offset != 0 {
		t.Errorf("filter = %+v", store.lastFilter)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty list must serialize as [], got %s", rec.Body.String())
	}
}

func TestUpdateBlog(t *testing.T) {
	store := &mockStoreAPI{blogs: map[uint64]*models.Blog{7: {ID: 7}}}
	router := newTestRouter(&mockService{}, store, &mockPinger{}, &mockPinger{})

	rec := doRequest(t, router, http.MethodPut, "/blogs/7", `{"content":"new text"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"status":"updated"`) {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodPut, "/blogs/99", `{"content":"new text"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPut, "/blogs/7", `{"content":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty content: status = %d, want 400", rec.Code)
	}
}

func TestDeleteBlog(t *testing.T) {
	store := &mockStoreAPI{blogs: map[uint64]*models.Blog{7: {ID: 7}}}
	router := newTestRouter(&mockService{}, store, &mockPinger{}, &mockPinger{})

	rec := doRequest(t, router, http.MethodDelete, "/blogs/7", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(store.deleted) != 1 || store.deleted[0] != 7 {
		t.Errorf("deleted = %v", store.deleted)
	}

	rec = doRequest(t, router, http.MethodDelete, "/blogs/99", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestBulkDelete(t *testing.T) {
	store := &mockStoreAPI{bulkCount: 3}
	router := newTestRouter(&mockService{}, store, &mockPinger{}, &mockPinger{})

	rec := doRequest(t, router, http.MethodPost, "/blogs/bulk-delete", `{"ids":[1,2,3,4]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if strings.TrimSpace(rec.Body.String()) != `{"deleted":3}` {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodPost, "/blogs/bulk-delete", `{"ids":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty ids: status = %d, want 400", rec.Code)
	}
}

func TestBulkUpdate(t *testing.T) {
	store := &mockStoreAPI{bulkCount: 2}
	router := newTestRouter(&mockService{}, store, &mockPinger{}, &mockPinger{})

	rec := doRequest(t, router, http.MethodPost, "/blogs/bulk-update", `{"ids":[1,2],"set":{"genre":"life"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if strings.TrimSpace(rec.Body.String()) != `{"updated":2}` {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodPost, "/blogs/bulk-update", `{"ids":[1,2],"set":{}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty set: status = %d, want 400", rec.Code)
	}
}

func TestBulkUpdateAllEmptyStringsRejected(t *testing.T) {
	// Empty strings mean leave-unchanged; a set of only empty strings would
	// be a silent no-op that still reports a count, so it must be rejected
	// before it reaches the store.
	store := &mockStoreAPI{bulkCount: 2}
	router := newTestRouter(&mockService{}, store, &mockPinger{}, &mockPinger{})

	rec := doRequest(t, router, http.MethodPost, "/blogs/bulk-update",
		`{"ids":[1,2],"set":{"genre":"","location":"","content":""}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "no fields to update") {
		t.Errorf("body = %s", rec.Body.String())
	}
	if store.bulkUpdates != 0 {
		t.Errorf("bulkUpdates = %d, store must not be called", store.bulkUpdates)
	}
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(&mockService{}, &mockStoreAPI{}, &mockPinger{}, &mockPinger{})

	rec := doRequest(t, router, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("healthz body = %s", rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status = %d", rec.Code)
	}
}

func TestReadyzFailsWhenStoreDown(t *testing.T) {
	router := newTestRouter(&mockService{}, &mockStoreAPI{}, &mockPinger{err: errors.New("dial tcp: refused")}, &mockPinger{})

	rec := doRequest(t, router, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d, want 503", rec.Code)
	}
}

func TestStoreErrorMapsTo500(t *testing.T) {
	store := &mockStoreAPI{err: errors.New("mysql gone away")}
	router := newTestRouter(&mockService{}, store, &mockPinger{}, &mockPinger{})

	rec := doRequest(t, router, http.MethodGet, "/blogs", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	// Internal detail must not leak to the caller.
	if strings.Contains(rec.Body.String(), "mysql") {
		t.Errorf("body leaks internals: %s", rec.Body.String())
	}
}
