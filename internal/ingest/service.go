// Blogstream - High-Throughput Blog Ingest and Batch Persistence
// Copyright 2026 The Blogstream Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/blogstream/blogstream

// Package ingest implements the write paths: the asynchronous enqueue onto
// the stream bus and the synchronous create against the record store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/blogstream/blogstream/internal/logging"
	"github.com/blogstream/blogstream/internal/metrics"
	"github.com/blogstream/blogstream/internal/models"
	"github.com/blogstream/blogstream/internal/streambus"
)

// ErrInvalidArgument marks a request the caller must fix. Wrapped errors
// carry the field detail.
var ErrInvalidArgument = errors.New("invalid argument")

// Bus is the stream transport the async path publishes to.
type Bus interface {
	RegisterGenre(ctx context.Context, genre string) error
	Append(ctx context.Context, genre string, fields map[string]string) (string, error)
}

// Store is the record store the sync path writes to.
type Store interface {
	CreateBlogSync(ctx context.Context, blog *models.Blog) (uint64, error)
}

// Service implements both create paths.
type Service struct {
	bus   Bus
	store Store
}

// New constructs the ingest service.
func New(bus Bus, store Store) *Service {
	return &Service{bus: bus, store: store}
}

// normalize trims author, genre, and location, fills the idempotency key and
// creation timestamp defaults, and rejects empty required fields. Content is
// required but not trimmed; whitespace-only content is legitimate prose.
func normalize(req *models.BlogCreateRequest) (*models.Blog, error) {
	author := strings.TrimSpace(req.Author)
	genre := strings.TrimSpace(req.Genre)
	location := strings.TrimSpace(req.Location)

	if author == "" || req.Content == "" || genre == "" || location == "" {
		return nil, fmt.Errorf("%w: author, content, genre, location are required", ErrInvalidArgument)
	}

	clientMsgID := req.ClientMsgID
	if clientMsgID == "" {
		clientMsgID = uuid.NewString()
	}

	createdAt := time.Now().UTC()
	if req.CreatedAtISO != "" {
		parsed, err := models.ParseISOTime(req.CreatedAtISO)
		if err != nil {
			return nil, fmt.Errorf("%w: created_at_iso is not a valid timestamp", ErrInvalidArgument)
		}
		createdAt = parsed
	}

	return &models.Blog{
		ClientMsgID: clientMsgID,
		Author:      author,
		Content:     req.Content,
		Genre:       genre,
		Location:    location,
		CreatedAt:   createdAt,
	}, nil
}

// Enqueue validates the request and appends it to the genre's stream,
// registering the genre first. Registering before the append is deliberate:
// if the append fails after the genre is advertised, the consumer harmlessly
// creates a group on an empty stream.
func (s *Service) Enqueue(ctx context.Context, req *models.BlogCreateRequest) (*models.EnqueueResponse, error) {
	blog, err := normalize(req)
	if err != nil {
		metrics.IngestErrors.WithLabelValues("validation").Inc()
		return nil, err
	}

	if err := s.bus.RegisterGenre(ctx, blog.Genre); err != nil {
		metrics.IngestErrors.WithLabelValues("stream").Inc()
		return nil, err
	}

	messageID, err := s.bus.Append(ctx, blog.Genre, blog.StreamFields())
	if err != nil {
		metrics.IngestErrors.WithLabelValues("stream").Inc()
		return nil, err
	}

	stream := streambus.StreamForGenre(blog.Genre)
	metrics.RecordEnqueue(blog.Genre)
	logging.Debug().
		Str("stream", stream).
		Str("message_id", messageID).
		Msg("Enqueued blog")

	return &models.EnqueueResponse{
		Status:    "enqueued",
		Stream:    stream,
		MessageID: messageID,
	}, nil
}

// CreateSync validates the request and inserts the record directly, for
// callers needing read-after-write. Does not publish to the stream bus.
func (s *Service) CreateSync(ctx context.Context, req *models.BlogCreateRequest) (*models.CreateResponse, error) {
	blog, err := normalize(req)
	if err != nil {
		metrics.IngestErrors.WithLabelValues("validation").Inc()
		return nil, err
	}
	blog.UpdatedAt = blog.CreatedAt

	id, err := s.store.CreateBlogSync(ctx, blog)
	if err != nil {
		metrics.IngestErrors.WithLabelValues("store").Inc()
		return nil, err
	}

	metrics.IngestSyncCreates.Inc()
	return &models.CreateResponse{Status: "created", ID: id}, nil
}
