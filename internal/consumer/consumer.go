// Blogstream - High-Throughput Blog Ingest and Batch Persistence
// Copyright 2026 The Blogstream Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/blogstream/blogstream

// Package consumer implements the batch consumer: a single long-running loop
// that discovers genre streams, reads entries through a consumer group, and
// batches them into the record store by (genre, location) key.
//
// Delivery is at-least-once. Entries are acknowledged only after the store
// transaction commits; a failed flush keeps the buffer intact so the same
// items are retried on the next iteration. Redelivered entries are absorbed
// by the store's client_msg_id uniqueness.
package consumer

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/blogstream/blogstream/internal/config"
	"github.com/blogstream/blogstream/internal/logging"
	"github.com/blogstream/blogstream/internal/metrics"
	"github.com/blogstream/blogstream/internal/models"
	"github.com/blogstream/blogstream/internal/streambus"
)

const (
	// emptyRegistrySleep is the pause when no genres are registered yet.
	emptyRegistrySleep = 500 * time.Millisecond

	// loopErrorSleep is the pause after an iteration-level failure.
	loopErrorSleep = 1000 * time.Millisecond

	// readBlockMS is how long a group read blocks waiting for entries.
	readBlockMS = 1000

	// perItemOverheadBytes approximates per-row overhead beyond the text
	// fields when accumulating buffer byte cost.
	perItemOverheadBytes = 64
)

// Bus is the stream transport the consumer reads from.
type Bus interface {
	Genres(ctx context.Context) ([]string, error)
	EnsureGroup(ctx context.Context, stream, group string) error
	ReadGroup(ctx context.Context, group, consumer string, streams []string, count int64, blockMS int64) ([]streambus.StreamEntries, error)
	Ack(ctx context.Context, stream, group string, ids ...string) error
	Delete(ctx context.Context, stream string, ids ...string) error
}

// Store is the record store flushes commit to.
type Store interface {
	BulkInsertBlogs(ctx context.Context, rows []models.Blog) error
}

// bufferKey partitions buffered items. Distinct keys flush independently so
// an active genre cannot starve a quiet one.
type bufferKey struct {
	Genre    string
	Location string
}

// bufferedItem ties a parsed row to its source stream entry for ack after
// commit.
type bufferedItem struct {
	Row       models.Blog
	Stream    string
	MessageID string
}

// buffer accumulates items for one key between flushes.
type buffer struct {
	items   []bufferedItem
	firstAt time.Time
	bytes   int64
}

// Stats is a snapshot of consumer counters.
type Stats struct {
	MessagesRead   int64
	RecordsFlushed int64
	FlushCount     int64
	FlushErrors    int64
	BufferedItems  int
}

// Consumer is the batch consumer. It implements suture.Service.
//
// The loop goroutine is the single writer over the buffer map; parallel
// flushes of distinct keys run only while the loop waits on them.
type Consumer struct {
	bus   Bus
	store Store

	group         string
	name          string
	batchMaxCount int
	batchMaxAge   time.Duration
	batchMaxBytes int64

	buffers map[bufferKey]*buffer

	// now is swappable in tests.
	now func() time.Time

	messagesRead   atomic.Int64
	recordsFlushed atomic.Int64
	flushCount     atomic.Int64
	flushErrors    atomic.Int64
}

// New constructs the consumer. An empty consumer name defaults to
// "<hostname>-<pid>", stable for the life of the process.
func New(bus Bus, store Store, cfg *config.ConsumerConfig) (*Consumer, error) {
	if bus == nil {
		return nil, fmt.Errorf("bus required")
	}
	if store == nil {
		return nil, fmt.Errorf("store required")
	}

	name := cfg.Name
	if name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "consumer"
		}
		name = fmt.Sprintf("%s-%d", hostname, os.Getpid())
	}

	return &Consumer{
		bus:           bus,
		store:         store,
		group:         cfg.Group,
		name:          name,
		batchMaxCount: cfg.BatchMaxCount,
		batchMaxAge:   cfg.BatchMaxAge(),
		batchMaxBytes: int64(cfg.BatchMaxBytes),
		buffers:       make(map[bufferKey]*buffer),
		now:           time.Now,
	}, nil
}

// Name returns the consumer's name within the group.
func (c *Consumer) Name() string {
	return c.name
}

// Stats returns a snapshot of the consumer's counters.
func (c *Consumer) Stats() Stats {
	buffered := 0
	for _, buf := range c.buffers {
		buffered += len(buf.items)
	}
	return Stats{
		MessagesRead:   c.messagesRead.Load(),
		RecordsFlushed: c.recordsFlushed.Load(),
		FlushCount:     c.flushCount.Load(),
		FlushErrors:    c.flushErrors.Load(),
		BufferedItems:  buffered,
	}
}

// Serve implements suture.Service. It runs the batch loop until the context
// is canceled. Iteration-level failures are logged and followed by a pause;
// they never terminate the loop.
func (c *Consumer) Serve(ctx context.Context) error {
	logging.Info().
		Str("consumer", c.name).
		Str("group", c.group).
		Msg("Batch consumer started")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.iterate(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logging.Error().Err(err).Msg("Consumer loop error")
			if !sleepCtx(ctx, loopErrorSleep) {
				return ctx.Err()
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (c *Consumer) String() string {
	return "batch-consumer"
}

// iterate runs one cycle: discover, ensure groups, read, buffer, flush.
func (c *Consumer) iterate(ctx context.Context) error {
	genres, err := c.bus.Genres(ctx)
	if err != nil {
		return fmt.Errorf("genre discovery failed: %w", err)
	}
	if len(genres) == 0 {
		sleepCtx(ctx, emptyRegistrySleep)
		return nil
	}

	streams := make([]string, len(genres))
	for i, g := range genres {
		streams[i] = streambus.StreamForGenre(g)
	}

	for _, stream := range streams {
		if err := c.bus.EnsureGroup(ctx, stream, c.group); err != nil {
			logging.Warn().Err(err).Str("stream", stream).Msg("Failed to ensure consumer group")
		}
	}

	res, err := c.bus.ReadGroup(ctx, c.group, c.name, streams, int64(c.batchMaxCount), readBlockMS)
	if err != nil {
		return fmt.Errorf("group read failed: %w", err)
	}

	for _, stream := range res {
		for _, entry := range stream.Entries {
			c.addToBuffer(stream.Stream, entry.ID, entry.Fields)
		}
	}

	// Eligibility is evaluated over all keys every cycle, whether or not
	// this read delivered anything; that is what enforces the age bound.
	c.flushEligible(ctx)
	c.updateBufferGauges()
	return nil
}

// addToBuffer parses one stream entry into a row and appends it to its key's
// buffer. Unparseable timestamps fall back to now; missing fields buffer as
// empty strings since validation belongs to the ingest endpoint.
func (c *Consumer) addToBuffer(stream, messageID string, fields map[string]string) {
	now := c.now().UTC()

	createdAt, err := models.ParseISOTime(fields[models.FieldCreatedAtISO])
	if err != nil {
		metrics.ConsumerParseFailures.Inc()
		createdAt = now
	}

	row := models.Blog{
		ClientMsgID: fields[models.FieldClientMsgID],
		Author:      fields[models.FieldAuthor],
		Content:     fields[models.FieldContent],
		Genre:       fields[models.FieldGenre],
		Location:    fields[models.FieldLocation],
		CreatedAt:   createdAt,
		UpdatedAt:   now,
	}

	key := bufferKey{Genre: row.Genre, Location: row.Location}
	buf := c.buffers[key]
	if buf == nil {
		buf = &buffer{}
		c.buffers[key] = buf
	}
	if len(buf.items) == 0 {
		buf.firstAt = now
	}
	buf.items = append(buf.items, bufferedItem{Row: row, Stream: stream, MessageID: messageID})
	buf.bytes += int64(len(row.Content) + len(row.Author) + len(row.Location) + len(row.Genre) + perItemOverheadBytes)

	c.messagesRead.Add(1)
	metrics.ConsumerMessagesRead.Inc()
}

// flushReason reports why the key's buffer must flush, or "" if it need not.
func (c *Consumer) flushReason(key bufferKey) string {
	buf := c.buffers[key]
	if buf == nil || len(buf.items) == 0 {
		return ""
	}
	if len(buf.items) >= c.batchMaxCount {
		return "count"
	}
	if c.now().UTC().Sub(buf.firstAt) >= c.batchMaxAge {
		return "age"
	}
	if buf.bytes >= c.batchMaxBytes {
		return "bytes"
	}
	return ""
}

// flushEligible flushes every key currently over a threshold. Distinct keys
// flush in parallel; each key's flush owns that key's buffer exclusively.
// Flush errors are logged and the buffer retained for retry.
func (c *Consumer) flushEligible(ctx context.Context) {
	type eligible struct {
		key    bufferKey
		reason string
	}
	var keys []eligible
	for key := range c.buffers {
		if reason := c.flushReason(key); reason != "" {
			keys = append(keys, eligible{key: key, reason: reason})
		}
	}
	if len(keys) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, e := range keys {
		e := e
		g.Go(func() error {
			if err := c.flushKey(gctx, e.key, e.reason); err != nil {
				logging.Error().Err(err).
					Str("genre", e.key.Genre).
					Str("location", e.key.Location).
					Msg("Flush failed, buffer retained for retry")
			}
			return nil
		})
	}
	_ = g.Wait()
}

// flushKey commits one key's buffer to the store, then acks and deletes the
// source entries. The buffer is cleared only after a successful commit.
func (c *Consumer) flushKey(ctx context.Context, key bufferKey, reason string) error {
	buf := c.buffers[key]
	if buf == nil || len(buf.items) == 0 {
		return nil
	}

	rows := make([]models.Blog, len(buf.items))
	for i, item := range buf.items {
		rows[i] = item.Row
	}

	start := c.now()
	if err := c.store.BulkInsertBlogs(ctx, rows); err != nil {
		c.flushErrors.Add(1)
		metrics.RecordFlush(reason, len(rows), time.Since(start), err)
		return err
	}
	metrics.RecordFlush(reason, len(rows), time.Since(start), nil)

	// Ack after commit. Failures here are logged only; the insert already
	// committed and a redelivery is absorbed by client_msg_id uniqueness.
	streamIDs := make(map[string][]string)
	for _, item := range buf.items {
		streamIDs[item.Stream] = append(streamIDs[item.Stream], item.MessageID)
	}
	for stream, ids := range streamIDs {
		if err := c.bus.Ack(ctx, stream, c.group, ids...); err != nil {
			logging.Warn().Err(err).Str("stream", stream).Msg("Failed to ack entries")
			continue
		}
		metrics.ConsumerMessagesAcked.Add(float64(len(ids)))
		if err := c.bus.Delete(ctx, stream, ids...); err != nil {
			logging.Warn().Err(err).Str("stream", stream).Msg("Failed to delete acked entries")
		}
	}

	c.recordsFlushed.Add(int64(len(rows)))
	c.flushCount.Add(1)
	for _, row := range rows {
		metrics.FlushedRecords.WithLabelValues(row.Genre).Inc()
	}

	logging.Debug().
		Str("genre", key.Genre).
		Str("location", key.Location).
		Str("reason", reason).
		Int("rows", len(rows)).
		Msg("Flushed batch")

	buf.items = buf.items[:0]
	buf.firstAt = time.Time{}
	buf.bytes = 0
	return nil
}

func (c *Consumer) updateBufferGauges() {
	records := 0
	var bytes int64
	for _, buf := range c.buffers {
		records += len(buf.items)
		bytes += buf.bytes
	}
	metrics.UpdateBufferGauges(records, bytes)
}

// sleepCtx sleeps for d or until the context is canceled. Reports whether
// the full duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
