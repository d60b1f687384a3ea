// Blogstream - High-Throughput Blog Ingest and Batch Persistence
// Copyright 2026 The Blogstream Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/blogstream/blogstream

// Package database implements the MySQL record store. Bulk mutations go
// through stored procedures so the batching contract lives in the schema;
// point reads and the list query are plain SQL.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/go-sql-driver/mysql"

	"github.com/blogstream/blogstream/internal/config"
	"github.com/blogstream/blogstream/internal/logging"
)

// ErrNotFound is returned when a point read or single-row mutation matches
// no row.
var ErrNotFound = errors.New("blog not found")

// DB wraps the MySQL connection pool and provides record store operations.
type DB struct {
	conn *sql.DB
	cfg  *config.MySQLConfig
}

// New opens the connection pool and initializes the schema. Schema creation
// retries with exponential backoff so the server can start before MySQL is
// ready to accept connections.
func New(ctx context.Context, cfg *config.MySQLConfig) (*DB, error) {
	conn, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql connection: %w", err)
	}

	// PoolSize is the steady-state pool; MaxOverflow allows short bursts.
	conn.SetMaxOpenConns(cfg.PoolSize + cfg.MaxOverflow)
	conn.SetMaxIdleConns(cfg.PoolSize)
	conn.SetConnMaxLifetime(30 * time.Minute)

	db := &DB{conn: conn, cfg: cfg}

	if err := db.initSchema(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// initSchema creates the blogs table if absent, retrying while MySQL
// starts up.
func (db *DB) initSchema(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 1 * time.Second
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 30 * time.Second

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		if _, err := db.conn.ExecContext(ctx, createTableSQL); err != nil {
			logging.Warn().Err(err).Int("attempt", attempt).Msg("Schema init failed, retrying")
			return err
		}
		return nil
	}, backoff.WithContext(bo, ctx))
}

// Ping reports whether the record store is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// requiredProcedures lists the stored procedures the mutation paths depend on.
var requiredProcedures = []string{
	"sp_bulk_insert_blogs",
	"sp_bulk_delete_blogs",
	"sp_bulk_update_blogs",
	"sp_update_blog_content",
	"sp_delete_blog",
}

// VerifyStoredProcedures returns the names of required stored procedures
// missing from the current schema. Missing procedures are logged but do not
// fail startup; the affected operations will error when first invoked.
func (db *DB) VerifyStoredProcedures(ctx context.Context) ([]string, error) {
	query := `SELECT ROUTINE_NAME
		FROM INFORMATION_SCHEMA.ROUTINES
		WHERE ROUTINE_SCHEMA = ? AND ROUTINE_TYPE = 'PROCEDURE'`

	rows, err := db.conn.QueryContext(ctx, query, db.cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to query stored procedures: %w", err)
	}
	defer func() { _ = rows.Close() }()

	present := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan routine name: %w", err)
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate routines: %w", err)
	}

	var missing []string
	for _, name := range requiredProcedures {
		if !present[name] {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		logging.Error().
			Strs("missing", missing).
			Str("schema", db.cfg.DB).
			Msg("Missing required stored procedures")
	} else {
		logging.Info().Strs("procedures", requiredProcedures).Msg("All required stored procedures present")
	}
	return missing, nil
}
