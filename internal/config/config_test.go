// Blogstream - High-Throughput Blog Ingest and Batch Persistence
// Copyright 2026 The Blogstream Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/blogstream/blogstream

package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.MySQL.Host != "localhost" {
		t.Errorf("MySQL.Host = %q, want localhost", cfg.MySQL.Host)
	}
	if cfg.MySQL.Port != 3306 {
		t.Errorf("MySQL.Port = %d, want 3306", cfg.MySQL.Port)
	}
	if cfg.MySQL.PoolSize != 50 || cfg.MySQL.MaxOverflow != 50 {
		t.Errorf("pool = %d/%d, want 50/50", cfg.MySQL.PoolSize, cfg.MySQL.MaxOverflow)
	}
	if cfg.Redis.URL != "redis://localhost:6379/0" {
		t.Errorf("Redis.URL = %q", cfg.Redis.URL)
	}
	if cfg.Stream.MaxLen != 200_000 {
		t.Errorf("Stream.MaxLen = %d, want 200000", cfg.Stream.MaxLen)
	}
	if cfg.Consumer.Group != "blog_group" {
		t.Errorf("Consumer.Group = %q, want blog_group", cfg.Consumer.Group)
	}
	if cfg.Consumer.BatchMaxCount != 1000 {
		t.Errorf("BatchMaxCount = %d, want 1000", cfg.Consumer.BatchMaxCount)
	}
	if cfg.Consumer.BatchMaxAgeMS != 300 {
		t.Errorf("BatchMaxAgeMS = %d, want 300", cfg.Consumer.BatchMaxAgeMS)
	}
	if cfg.Consumer.BatchMaxBytes != 2_097_152 {
		t.Errorf("BatchMaxBytes = %d, want 2097152", cfg.Consumer.BatchMaxBytes)
	}
	if cfg.Server.Timeout != 30*time.Second {
		t.Errorf("Server.Timeout = %v, want 30s", cfg.Server.Timeout)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MYSQL_HOST", "db.internal")
	t.Setenv("MYSQL_POOL_SIZE", "10")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("BATCH_MAX_COUNT", "250")
	t.Setenv("CONSUMER_GROUP", "blog_group_b")
	t.Setenv("STREAM_MAXLEN", "5000")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.MySQL.Host != "db.internal" {
		t.Errorf("MySQL.Host = %q, want db.internal", cfg.MySQL.Host)
	}
	if cfg.MySQL.PoolSize != 10 {
		t.Errorf("MySQL.PoolSize = %d, want 10", cfg.MySQL.PoolSize)
	}
	if cfg.Redis.URL != "redis://cache:6379/1" {
		t.Errorf("Redis.URL = %q", cfg.Redis.URL)
	}
	if cfg.Consumer.BatchMaxCount != 250 {
		t.Errorf("BatchMaxCount = %d, want 250", cfg.Consumer.BatchMaxCount)
	}
	if cfg.Consumer.Group != "blog_group_b" {
		t.Errorf("Consumer.Group = %q, want blog_group_b", cfg.Consumer.Group)
	}
	if cfg.Stream.MaxLen != 5000 {
		t.Errorf("Stream.MaxLen = %d, want 5000", cfg.Stream.MaxLen)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestUnmappedEnvVarsIgnored(t *testing.T) {
	t.Setenv("PATH_INFO", "garbage")
	t.Setenv("MYSQL_SOMETHING_ELSE", "garbage")

	if _, err := Load(); err != nil {
		t.Fatalf("Load() error with unmapped env vars: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		substr string
	}{
		{"empty mysql host", func(c *Config) { c.MySQL.Host = "" }, "mysql.host"},
		{"bad mysql port", func(c *Config) { c.MySQL.Port = 0 }, "mysql.port"},
		{"zero pool size", func(c *Config) { c.MySQL.PoolSize = 0 }, "pool_size"},
		{"negative overflow", func(c *Config) { c.MySQL.MaxOverflow = -1 }, "max_overflow"},
		{"empty redis url", func(c *Config) { c.Redis.URL = "" }, "redis.url"},
		{"bad server port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"zero maxlen", func(c *Config) { c.Stream.MaxLen = 0 }, "maxlen"},
		{"empty group", func(c *Config) { c.Consumer.Group = "" }, "consumer.group"},
		{"zero batch count", func(c *Config) { c.Consumer.BatchMaxCount = 0 }, "batch_max_count"},
		{"zero batch age", func(c *Config) { c.Consumer.BatchMaxAgeMS = 0 }, "batch_max_age_ms"},
		{"zero batch bytes", func(c *Config) { c.Consumer.BatchMaxBytes = 0 }, "batch_max_bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("Validate() error %q does not mention %q", err, tt.substr)
			}
		})
	}
}

func TestMySQLDSN(t *testing.T) {
	cfg := MySQLConfig{
		Host: "db", Port: 3307, DB: "blogs", User: "u", Password: "p",
	}
	dsn := cfg.DSN()
	want := "u:p@tcp(db:3307)/blogs?charset=utf8mb4&parseTime=true&loc=UTC"
	if dsn != want {
		t.Errorf("DSN() = %q, want %q", dsn, want)
	}
}

func TestBatchMaxAge(t *testing.T) {
	c := ConsumerConfig{BatchMaxAgeMS: 300}
	if got := c.BatchMaxAge(); got != 300*time.Millisecond {
		t.Errorf("BatchMaxAge() = %v, want 300ms", got)
	}
}
