// Blogstream - High-Throughput Blog Ingest and Batch Persistence
// Copyright 2026 The Blogstream Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/blogstream/blogstream

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/blogstream/blogstream/internal/logging"
	"github.com/blogstream/blogstream/internal/metrics"
	"github.com/blogstream/blogstream/internal/models"
)

// datetimeFormat is the MySQL DATETIME(6) literal layout. All timestamps are
// stored in UTC.
const datetimeFormat = "2006-01-02 15:04:05.000000"

// FormatTimestamp renders t as a MySQL DATETIME(6) literal in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(datetimeFormat)
}

// bulkRow is the JSON shape sp_bulk_insert_blogs expects per element.
// client_msg_id is the empty string for rows without an idempotency key;
// the procedure maps it to NULL.
type bulkRow struct {
	ClientMsgID string `json:"client_msg_id"`
	Author      string `json:"author"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	Genre       string `json:"genre"`
	Location    string `json:"location"`
	Content     string `json:"content"`
}

func encodeBulkRows(rows []models.Blog) ([]byte, error) {
	payload := make([]bulkRow, len(rows))
	for i, r := range rows {
		payload[i] = bulkRow{
			ClientMsgID: r.ClientMsgID,
			Author:      r.Author,
			CreatedAt:   FormatTimestamp(r.CreatedAt),
			UpdatedAt:   FormatTimestamp(r.UpdatedAt),
			Genre:       r.Genre,
			Location:    r.Location,
			Content:     r.Content,
		}
	}
	return json.Marshal(payload)
}

// BulkInsertBlogs inserts rows in a single transaction via
// sp_bulk_insert_blogs. A client_msg_id collision updates the existing row's
// updated_at instead of failing, so redelivered entries commit cleanly.
func (db *DB) BulkInsertBlogs(ctx context.Context, rows []models.Blog) error {
	if len(rows) == 0 {
		return nil
	}

	start := time.Now()
	rowsJSON, err := encodeBulkRows(rows)
	if err != nil {
		return fmt.Errorf("failed to encode bulk insert payload: %w", err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		metrics.RecordStoreQuery("bulk_insert", time.Since(start), err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "CALL sp_bulk_insert_blogs(?)", rowsJSON); err != nil {
		_ = tx.Rollback()
		metrics.RecordStoreQuery("bulk_insert", time.Since(start), err)
		return fmt.Errorf("sp_bulk_insert_blogs failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		metrics.RecordStoreQuery("bulk_insert", time.Since(start), err)
		return fmt.Errorf("failed to commit bulk insert: %w", err)
	}

	metrics.RecordStoreQuery("bulk_insert", time.Since(start), nil)
	logging.Debug().Int("rows", len(rows)).Msg("Bulk insert committed")
	return nil
}

// CreateBlogSync inserts a single row through the bulk-insert path inside one
// transaction and returns the assigned id. The row's client_msg_id must be
// set; it is how the id is read back after the procedure call.
func (db *DB) CreateBlogSync(ctx context.Context, blog *models.Blog) (uint64, error) {
	if blog.ClientMsgID == "" {
		return 0, errors.New("client_msg_id is required for synchronous create")
	}

	start := time.Now()
	rowsJSON, err := encodeBulkRows([]models.Blog{*blog})
	if err != nil {
		return 0, fmt.Errorf("failed to encode insert payload: %w", err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		metrics.RecordStoreQuery("create_sync", time.Since(start), err)
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "CALL sp_bulk_insert_blogs(?)", rowsJSON); err != nil {
		_ = tx.Rollback()
		metrics.RecordStoreQuery("create_sync", time.Since(start), err)
		return 0, fmt.Errorf("sp_bulk_insert_blogs failed: %w", err)
	}

	var id uint64
	err = tx.QueryRowContext(ctx, "SELECT id FROM blogs WHERE client_msg_id = ?", blog.ClientMsgID).Scan(&id)
	if err != nil {
		_ = tx.Rollback()
		metrics.RecordStoreQuery("create_sync", time.Since(start), err)
		return 0, fmt.Errorf("failed to read back inserted id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		metrics.RecordStoreQuery("create_sync", time.Since(start), err)
		return 0, fmt.Errorf("failed to commit insert: %w", err)
	}

	metrics.RecordStoreQuery("create_sync", time.Since(start), nil)
	return id, nil
}

const selectColumns = "id, client_msg_id, author, created_at, updated_at, genre, location, content"

func scanBlog(row *sql.Row) (*models.Blog, error) {
	var b models.Blog
	var clientMsgID sql.NullString
	err := row.Scan(&b.ID, &clientMsgID, &b.Author, &b.CreatedAt, &b.UpdatedAt, &b.Genre, &b.Location, &b.Content)
	if err != nil {
		return nil, err
	}
	b.ClientMsgID = clientMsgID.String
	return &b, nil
}

// GetBlog fetches a single row by id. Returns ErrNotFound when absent.
func (db *DB) GetBlog(ctx context.Context, id uint64) (*models.Blog, error) {
	start := time.Now()
	query := "SELECT " + selectColumns + " FROM blogs WHERE id = ?"
	b, err := scanBlog(db.conn.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordStoreQuery("get", time.Since(start), nil)
		return nil, ErrNotFound
	}
	if err != nil {
		metrics.RecordStoreQuery("get", time.Since(start), err)
		return nil, fmt.Errorf("failed to fetch blog %d: %w", id, err)
	}
	metrics.RecordStoreQuery("get", time.Since(start), nil)
	return b, nil
}

// ListFilter narrows ListBlogs results. Empty fields are ignored.
type ListFilter struct {
	Author   string
	Genre    string
	Location string
	Limit    int
	Offset   int
}

// buildListQuery assembles the list query and its arguments from the filter.
func buildListQuery(filter ListFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	if filter.Author != "" {
		conditions = append(conditions, "author = ?")
		args = append(args, filter.Author)
	}
	if filter.Genre != "" {
		conditions = append(conditions, "genre = ?")
		args = append(args, filter.Genre)
	}
	if filter.Location != "" {
		conditions = append(conditions, "location = ?")
		args = append(args, filter.Location)
	}

	query := "SELECT " + selectColumns + " FROM blogs"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)
	return query, args
}

// ListBlogs returns rows ordered by created_at descending. Filters combine
// with AND; unset filters are ignored.
func (db *DB) ListBlogs(ctx context.Context, filter ListFilter) ([]models.Blog, error) {
	start := time.Now()
	query, args := buildListQuery(filter)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		metrics.RecordStoreQuery("list", time.Since(start), err)
		return nil, fmt.Errorf("failed to list blogs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	blogs := make([]models.Blog, 0)
	for rows.Next() {
		var b models.Blog
		var clientMsgID sql.NullString
		if err := rows.Scan(&b.ID, &clientMsgID, &b.Author, &b.CreatedAt, &b.UpdatedAt, &b.Genre, &b.Location, &b.Content); err != nil {
			metrics.RecordStoreQuery("list", time.Since(start), err)
			return nil, fmt.Errorf("failed to scan blog row: %w", err)
		}
		b.ClientMsgID = clientMsgID.String
		blogs = append(blogs, b)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordStoreQuery("list", time.Since(start), err)
		return nil, fmt.Errorf("failed to iterate blog rows: %w", err)
	}

	metrics.RecordStoreQuery("list", time.Since(start), nil)
	return blogs, nil
}

// callForCount executes a stored procedure whose result set is a single
// count column and returns that count.
func (db *DB) callForCount(ctx context.Context, operation, query string, args ...interface{}) (int64, error) {
	start := time.Now()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		metrics.RecordStoreQuery(operation, time.Since(start), err)
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	var count int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		_ = tx.Rollback()
		metrics.RecordStoreQuery(operation, time.Since(start), err)
		return 0, fmt.Errorf("%s failed: %w", operation, err)
	}

	if err := tx.Commit(); err != nil {
		metrics.RecordStoreQuery(operation, time.Since(start), err)
		return 0, fmt.Errorf("failed to commit %s: %w", operation, err)
	}

	metrics.RecordStoreQuery(operation, time.Since(start), nil)
	return count, nil
}

// UpdateBlogContent sets a row's content and updated_at via
// sp_update_blog_content. Returns ErrNotFound when the id matches no row.
func (db *DB) UpdateBlogContent(ctx context.Context, id uint64, content string, updatedAt time.Time) error {
	updated, err := db.callForCount(ctx, "update_content",
		"CALL sp_update_blog_content(?, ?, ?)", id, content, FormatTimestamp(updatedAt))
	if err != nil {
		return err
	}
	if updated == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteBlog removes a row via sp_delete_blog. Returns ErrNotFound when the
// id matches no row.
func (db *DB) DeleteBlog(ctx context.Context, id uint64) error {
	deleted, err := db.callForCount(ctx, "delete", "CALL sp_delete_blog(?)", id)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

// BulkDeleteBlogs removes the given ids via sp_bulk_delete_blogs and returns
// the number of rows actually deleted.
func (db *DB) BulkDeleteBlogs(ctx context.Context, ids []uint64) (int64, error) {
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return 0, fmt.Errorf("failed to encode ids: %w", err)
	}
	return db.callForCount(ctx, "bulk_delete", "CALL sp_bulk_delete_blogs(?)", idsJSON)
}

// BulkUpdateBlogs applies the non-empty fields to the given ids via
// sp_bulk_update_blogs and returns the number of rows actually updated.
// Empty-string fields mean "do not change this field".
func (db *DB) BulkUpdateBlogs(ctx context.Context, ids []uint64, genre, location, content string) (int64, error) {
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return 0, fmt.Errorf("failed to encode ids: %w", err)
	}
	return db.callForCount(ctx, "bulk_update",
		"CALL sp_bulk_update_blogs(?, ?, ?, ?)", idsJSON, genre, location, content)
}
