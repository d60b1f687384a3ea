// Blogstream - High-Throughput Blog Ingest and Batch Persistence
// Copyright 2026 The Blogstream Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/blogstream/blogstream

package database

import (
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/blogstream/blogstream/internal/models"
)

func TestFormatTimestamp(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	tests := []struct {
		input time.Time
		want  string
	}{
		{time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC), "2026-03-14 09:26:53.589793"},
		{time.Date(2026, 3, 14, 10, 26, 53, 0, loc), "2026-03-14 09:26:53.000000"},
		{time.Date(2026, 1, 2, 0, 0, 0, 1000, time.UTC), "2026-01-02 00:00:00.000001"},
	}
	for _, tt := range tests {
		if got := FormatTimestamp(tt.input); got != tt.want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestEncodeBulkRows(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 26, 53, 500000000, time.UTC)
	updated := created.Add(time.Second)
	rows := []models.Blog{
		{
			ClientMsgID: "6c84fb90-12c4-11e1-840d-7b25c5ee775a",
			Author:      "ada",
			Content:     "hello",
			Genre:       "tech",
			Location:    "london",
			CreatedAt:   created,
			UpdatedAt:   updated,
		},
		{Author: "bob", Content: "x", Genre: "life", Location: "paris", CreatedAt: created, UpdatedAt: updated},
	}

	data, err := encodeBulkRows(rows)
	if err != nil {
		t.Fatalf("encodeBulkRows() error: %v", err)
	}

	var decoded []map[string]string
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("payload is not a JSON array of objects: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("got %d elements, want 2", len(decoded))
	}
	if decoded[0]["created_at"] != "2026-03-14 09:26:53.500000" {
		t.Errorf("created_at = %q", decoded[0]["created_at"])
	}
	if decoded[1]["client_msg_id"] != "" {
		t.Errorf("missing idempotency key must encode as empty string, got %q", decoded[1]["client_msg_id"])
	}
	for _, key := range []string{"client_msg_id", "author", "created_at", "updated_at", "genre", "location", "content"} {
		if _, ok := decoded[0][key]; !ok {
			t.Errorf("payload missing key %q", key)
		}
	}
}

func TestBuildListQuery(t *testing.T) {
	query, args := buildListQuery(ListFilter{Author: "ada", Genre: "tech", Limit: 50, Offset: 10})
	if !strings.Contains(query, "WHERE author = ? AND genre = ?") {
		t.Errorf("query = %q", query)
	}
	if !strings.Contains(query, "ORDER BY created_at DESC LIMIT ? OFFSET ?") {
		t.Errorf("query = %q", query)
	}
	if len(args) != 4 || args[0] != "ada" || args[1] != "tech" || args[2] != 50 || args[3] != 10 {
		t.Errorf("args = %v", args)
	}

	query, args = buildListQuery(ListFilter{Limit: 50})
	if strings.Contains(query, "WHERE") {
		t.Errorf("unfiltered query should have no WHERE clause: %q", query)
	}
	if len(args) != 2 {
		t.Errorf("args = %v", args)
	}
}

func TestCreateTableSQLShape(t *testing.T) {
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS blogs",
		"UNIQUE KEY uq_client_msg_id (client_msg_id)",
		"DATETIME(6)",
		"MEDIUMTEXT",
	} {
		if !strings.Contains(createTableSQL, want) {
			t.Errorf("schema missing %q", want)
		}
	}
}
