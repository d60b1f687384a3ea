// Blogstream - High-Throughput Blog Ingest and Batch Persistence
// Copyright 2026 The Blogstream Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/blogstream/blogstream

package database

// createTableSQL creates the blogs table. client_msg_id is nullable and
// unique when present; that uniqueness is what makes redelivered stream
// entries idempotent on bulk insert.
const createTableSQL = `
CREATE TABLE IF NOT EXISTS blogs (
  id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
  client_msg_id CHAR(36) NULL,
  author VARCHAR(128) NOT NULL,
  created_at DATETIME(6) NOT NULL,
  updated_at DATETIME(6) NOT NULL,
  genre VARCHAR(64) NOT NULL,
  location VARCHAR(128) NOT NULL,
  content MEDIUMTEXT NOT NULL,
  PRIMARY KEY (id),
  UNIQUE KEY uq_client_msg_id (client_msg_id),
  KEY idx_author_created_at (author, created_at),
  KEY idx_genre_created_at (genre, created_at),
  KEY idx_created_at (created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_0900_ai_ci
`
