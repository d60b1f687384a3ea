// Blogstream - High-Throughput Blog Ingest and Batch Persistence
// Copyright 2026 The Blogstream Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/blogstream/blogstream

// Package streambus wraps Redis Streams as the durable transport between
// the ingest endpoint and the batch consumer. Each genre owns one stream
// (blogs:genre:<genre>) and a shared registry set (blogs:genres) advertises
// the known genres to consumers.
package streambus

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/blogstream/blogstream/internal/logging"
)

const (
	// GenreSet is the registry set holding every genre ever enqueued.
	GenreSet = "blogs:genres"

	streamPrefix = "blogs:genre:"
)

// StreamForGenre maps a genre to its stream name.
func StreamForGenre(genre string) string {
	return streamPrefix + genre
}

// Entry is one stream entry as delivered to a consumer.
type Entry struct {
	ID     string
	Fields map[string]string
}

// StreamEntries groups the entries delivered from one stream in a read.
type StreamEntries struct {
	Stream  string
	Entries []Entry
}

// Bus is the stream transport. All methods are safe for concurrent use;
// go-redis pools connections internally.
type Bus struct {
	client *redis.Client
	maxLen int64
}

// New connects to Redis using a redis:// URL and verifies the connection.
func New(ctx context.Context, url string, maxLen int64) (*Bus, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Bus{client: client, maxLen: maxLen}, nil
}

// RegisterGenre adds the genre to the registry set. Idempotent.
func (b *Bus) RegisterGenre(ctx context.Context, genre string) error {
	if err := b.client.SAdd(ctx, GenreSet, genre).Err(); err != nil {
		return fmt.Errorf("failed to register genre %q: %w", genre, err)
	}
	return nil
}

// Genres returns the registered genres sorted for deterministic iteration.
func (b *Bus) Genres(ctx context.Context) ([]string, error) {
	genres, err := b.client.SMembers(ctx, GenreSet).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read genre registry: %w", err)
	}
	sort.Strings(genres)
	return genres, nil
}

// Append adds an entry to the genre's stream with an approximate length cap
// and returns the assigned entry id.
func (b *Bus) Append(ctx context.Context, genre string, fields map[string]string) (string, error) {
	stream := StreamForGenre(genre)

	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}

	id, err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: b.maxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to append to %s: %w", stream, err)
	}
	return id, nil
}

// EnsureGroup creates the consumer group on the stream, starting at the
// beginning so entries published before group creation are not lost. The
// stream is created if absent. Already-exists is not an error.
func (b *Bus) EnsureGroup(ctx context.Context, stream, group string) error {
	err := b.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err == nil {
		logging.Info().Str("stream", stream).Str("group", group).Msg("Created consumer group")
		return nil
	}
	if strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return fmt.Errorf("failed to create group %s on %s: %w", group, stream, err)
}

// ReadGroup performs one blocking group read across the given streams using
// the new-entries sentinel, requesting up to count entries per stream.
// Returns nil when the block times out with no entries.
func (b *Bus) ReadGroup(ctx context.Context, group, consumer string, streams []string, count int64, blockMS int64) ([]StreamEntries, error) {
	// XREADGROUP wants the stream names followed by one ">" per stream.
	args := make([]string, 0, len(streams)*2)
	args = append(args, streams...)
	for range streams {
		args = append(args, ">")
	}

	res, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  args,
		Count:    count,
		Block:    time.Duration(blockMS) * time.Millisecond,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("group read failed: %w", err)
	}

	out := make([]StreamEntries, 0, len(res))
	for _, stream := range res {
		entries := make([]Entry, 0, len(stream.Messages))
		for _, msg := range stream.Messages {
			fields := make(map[string]string, len(msg.Values))
			for k, v := range msg.Values {
				if s, ok := v.(string); ok {
					fields[k] = s
				} else {
					fields[k] = fmt.Sprint(v)
				}
			}
			entries = append(entries, Entry{ID: msg.ID, Fields: fields})
		}
		out = append(out, StreamEntries{Stream: stream.Stream, Entries: entries})
	}
	return out, nil
}

// Ack acknowledges the entry ids on the stream for the group.
func (b *Bus) Ack(ctx context.Context, stream, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := b.client.XAck(ctx, stream, group, ids...).Err(); err != nil {
		return fmt.Errorf("failed to ack on %s: %w", stream, err)
	}
	return nil
}

// Delete removes the entry ids from the stream. Acked entries are deleted
// eagerly to trim memory ahead of the approximate length cap.
func (b *Bus) Delete(ctx context.Context, stream string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := b.client.XDel(ctx, stream, ids...).Err(); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", stream, err)
	}
	return nil
}

// Ping reports whether the bus is reachable.
func (b *Bus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (b *Bus) Close() error {
	return b.client.Close()
}
