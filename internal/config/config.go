// Blogstream - High-Throughput Blog Ingest and Batch Persistence
// Copyright 2026 The Blogstream Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/blogstream/blogstream

// Package config defines the Blogstream configuration model and its Koanf v2
// loader. Settings are layered: built-in defaults, then an optional YAML
// config file, then environment variables (highest priority).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Blogstream server.
type Config struct {
	MySQL    MySQLConfig    `koanf:"mysql"`
	Redis    RedisConfig    `koanf:"redis"`
	Server   ServerConfig   `koanf:"server"`
	Stream   StreamConfig   `koanf:"stream"`
	Consumer ConsumerConfig `koanf:"consumer"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// MySQLConfig holds record store connection settings.
type MySQLConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	DB       string `koanf:"db"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	// PoolSize is the base number of pooled connections; MaxOverflow is the
	// number of additional connections allowed under load. The effective
	// sql.DB max-open limit is PoolSize + MaxOverflow.
	PoolSize    int `koanf:"pool_size"`
	MaxOverflow int `koanf:"max_overflow"`
}

// DSN returns the go-sql-driver/mysql connection string.
// parseTime is required so DATETIME(6) columns scan into time.Time, and all
// timestamps are read and written in UTC.
func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		c.User, c.Password, c.Host, c.Port, c.DB)
}

// RedisConfig holds stream bus connection settings.
type RedisConfig struct {
	// URL is a redis:// connection URL, e.g. redis://localhost:6379/0.
	URL string `koanf:"url"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// StreamConfig holds per-stream settings for the bus.
type StreamConfig struct {
	// MaxLen is the approximate per-stream entry cap applied on every append.
	MaxLen int64 `koanf:"maxlen"`
}

// ConsumerConfig holds batch consumer settings.
type ConsumerConfig struct {
	// Group is the consumer group name shared by all consumer instances.
	Group string `koanf:"group"`

	// Name identifies this consumer within the group. Empty means
	// "<hostname>-<pid>", generated once at startup.
	Name string `koanf:"name"`

	// BatchMaxCount caps both the entries requested per stream read and the
	// per-key buffer size that forces a flush.
	BatchMaxCount int `koanf:"batch_max_count"`

	// BatchMaxAgeMS is the maximum age of a non-empty buffer before it is
	// flushed, in milliseconds.
	BatchMaxAgeMS int `koanf:"batch_max_age_ms"`

	// BatchMaxBytes is the approximate per-key byte accumulator threshold.
	BatchMaxBytes int `koanf:"batch_max_bytes"`
}

// BatchMaxAge returns the age threshold as a duration.
func (c *ConsumerConfig) BatchMaxAge() time.Duration {
	return time.Duration(c.BatchMaxAgeMS) * time.Millisecond
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for values that would misbehave at
// runtime. It is called by Load after all layers are applied.
func (c *Config) Validate() error {
	if c.MySQL.Host == "" {
		return fmt.Errorf("mysql.host is required")
	}
	if c.MySQL.Port <= 0 || c.MySQL.Port > 65535 {
		return fmt.Errorf("mysql.port must be in 1..65535, got %d", c.MySQL.Port)
	}
	if c.MySQL.DB == "" {
		return fmt.Errorf("mysql.db is required")
	}
	if c.MySQL.PoolSize <= 0 {
		return fmt.Errorf("mysql.pool_size must be positive, got %d", c.MySQL.PoolSize)
	}
	if c.MySQL.MaxOverflow < 0 {
		return fmt.Errorf("mysql.max_overflow must be non-negative, got %d", c.MySQL.MaxOverflow)
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("redis.url is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if c.Stream.MaxLen <= 0 {
		return fmt.Errorf("stream.maxlen must be positive, got %d", c.Stream.MaxLen)
	}
	if c.Consumer.Group == "" {
		return fmt.Errorf("consumer.group is required")
	}
	if c.Consumer.BatchMaxCount <= 0 {
		return fmt.Errorf("consumer.batch_max_count must be positive, got %d", c.Consumer.BatchMaxCount)
	}
	if c.Consumer.BatchMaxAgeMS <= 0 {
		return fmt.Errorf("consumer.batch_max_age_ms must be positive, got %d", c.Consumer.BatchMaxAgeMS)
	}
	if c.Consumer.BatchMaxBytes <= 0 {
		return fmt.Errorf("consumer.batch_max_bytes must be positive, got %d", c.Consumer.BatchMaxBytes)
	}
	return nil
}
