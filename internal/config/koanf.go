// Blogstream - High-Throughput Blog Ingest and Batch Persistence
// Copyright 2026 The Blogstream Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/blogstream/blogstream

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/blogstream/config.yaml",
	"/etc/blogstream/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values applied.
func defaultConfig() *Config {
	return &Config{
		MySQL: MySQLConfig{
			Host:        "localhost",
			Port:        3306,
			DB:          "blogs",
			User:        "bloguser",
			Password:    "blogpass",
			PoolSize:    50,
			MaxOverflow: 50,
		},
		Redis: RedisConfig{
			URL: "redis://localhost:6379/0",
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			Timeout: 30 * time.Second,
		},
		Stream: StreamConfig{
			MaxLen: 200_000,
		},
		Consumer: ConsumerConfig{
			Group:         "blog_group",
			Name:          "", // "<hostname>-<pid>" generated at startup
			BatchMaxCount: 1000,
			BatchMaxAgeMS: 300,
			BatchMaxBytes: 2_097_152,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
//
// Environment variables use the flat names of the original deployment
// (MYSQL_HOST, REDIS_URL, BATCH_MAX_COUNT, ...); see envTransformFunc.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the path of the first config file found, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps the flat environment variable names recognized by the
// original deployment onto koanf config paths. Names not listed here are
// ignored so unrelated environment variables cannot pollute the config.
var envMappings = map[string]string{
	"mysql_host":         "mysql.host",
	"mysql_port":         "mysql.port",
	"mysql_db":           "mysql.db",
	"mysql_user":         "mysql.user",
	"mysql_password":     "mysql.password",
	"mysql_pool_size":    "mysql.pool_size",
	"mysql_max_overflow": "mysql.max_overflow",

	"redis_url": "redis.url",

	"http_host":    "server.host",
	"http_port":    "server.port",
	"http_timeout": "server.timeout",

	"stream_maxlen": "stream.maxlen",

	"consumer_group":   "consumer.group",
	"consumer_name":    "consumer.name",
	"batch_max_count":  "consumer.batch_max_count",
	"batch_max_age_ms": "consumer.batch_max_age_ms",
	"batch_max_bytes":  "consumer.batch_max_bytes",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc converts an environment variable name to a koanf path.
// Returning "" drops the variable.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
