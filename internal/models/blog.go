// Blogstream - High-Throughput Blog Ingest and Batch Persistence
// Copyright 2026 The Blogstream Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/blogstream/blogstream

// Package models holds the blog record model, the stream entry field names,
// and the HTTP request/response shapes shared across packages.
package models

import (
	"time"
)

// Stream entry field names. Every entry appended to a genre stream is a
// string map with exactly these keys.
const (
	FieldClientMsgID  = "client_msg_id"
	FieldAuthor       = "author"
	FieldContent      = "content"
	FieldGenre        = "genre"
	FieldLocation     = "location"
	FieldCreatedAtISO = "created_at_iso"
)

// Blog is the canonical record: the unit of ingest, buffering, and storage.
//
// ID is assigned by the record store on insert. ClientMsgID is the
// caller-supplied idempotency key; the empty string represents NULL.
type Blog struct {
	ID          uint64
	ClientMsgID string
	Author      string
	Content     string
	Genre       string
	Location    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StreamFields returns the record serialized as stream entry fields.
// UpdatedAt is intentionally absent: it is assigned by the consumer at
// buffering time, not carried on the wire.
func (b *Blog) StreamFields() map[string]string {
	return map[string]string{
		FieldClientMsgID:  b.ClientMsgID,
		FieldAuthor:       b.Author,
		FieldContent:      b.Content,
		FieldGenre:        b.Genre,
		FieldLocation:     b.Location,
		FieldCreatedAtISO: b.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// Out converts the record to its API representation.
func (b *Blog) Out() BlogOut {
	var clientMsgID *string
	if b.ClientMsgID != "" {
		id := b.ClientMsgID
		clientMsgID = &id
	}
	return BlogOut{
		ID:           b.ID,
		ClientMsgID:  clientMsgID,
		Author:       b.Author,
		CreatedAtISO: b.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAtISO: b.UpdatedAt.UTC().Format(time.RFC3339Nano),
		Genre:        b.Genre,
		Location:     b.Location,
		Content:      b.Content,
	}
}

// ParseISOTime parses an RFC3339 timestamp, accepting fractional seconds.
// The result is normalized to UTC; a timestamp without a zone is taken as UTC.
func ParseISOTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		// Zone-less timestamps occur when callers pass datetime strings
		// produced without timezone info.
		t, err = time.Parse("2006-01-02T15:04:05.999999999", s)
		if err != nil {
			return time.Time{}, err
		}
	}
	return t.UTC(), nil
}
