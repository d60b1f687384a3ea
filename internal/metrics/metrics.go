// Blogstream - High-Throughput Blog Ingest and Batch Persistence
// Copyright 2026 The Blogstream Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/blogstream/blogstream

// Package metrics registers the Prometheus instrumentation for the ingest
// pipeline: enqueue/append throughput, batch flush latency and sizes,
// buffer occupancy, record store operations, and the API surface.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingest Metrics
	IngestEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_enqueued_total",
			Help: "Total number of records appended to genre streams",
		},
		[]string{"genre"},
	)

	IngestSyncCreates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_sync_creates_total",
			Help: "Total number of records created via the synchronous path",
		},
	)

	IngestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_errors_total",
			Help: "Total number of ingest failures",
		},
		[]string{"error_type"}, // "validation", "stream", "store"
	)

	// Consumer Metrics
	ConsumerMessagesRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "consumer_messages_read_total",
			Help: "Total number of stream entries read by the batch consumer",
		},
	)

	ConsumerMessagesAcked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "consumer_messages_acked_total",
			Help: "Total number of stream entries acknowledged after commit",
		},
	)

	ConsumerParseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "consumer_parse_failures_total",
			Help: "Total number of entries with unparseable timestamps (defaulted to now)",
		},
	)

	ConsumerBufferedRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "consumer_buffered_records",
			Help: "Current number of records held in flush buffers",
		},
	)

	ConsumerBufferedBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "consumer_buffered_bytes",
			Help: "Approximate byte size of records held in flush buffers",
		},
	)

	// Flush Metrics
	FlushDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flush_duration_seconds",
			Help:    "Duration of batch flushes to the record store",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"reason"}, // "count", "age", "bytes"
	)

	FlushBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flush_batch_size",
			Help:    "Number of records per batch flush",
			Buckets: []float64{1, 10, 50, 100, 250, 500, 1000},
		},
	)

	FlushErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flush_errors_total",
			Help: "Total number of failed batch flushes (entries retained for retry)",
		},
	)

	FlushedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flushed_records_total",
			Help: "Total number of records committed to the record store",
		},
		[]string{"genre"},
	)

	// Record Store Metrics
	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_query_duration_seconds",
			Help:    "Duration of record store operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StoreQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_query_errors_total",
			Help: "Total number of record store errors",
		},
		[]string{"operation"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordEnqueue records a successful stream append for a genre.
func RecordEnqueue(genre string) {
	IngestEnqueued.WithLabelValues(genre).Inc()
}

// RecordFlush records one batch flush attempt.
func RecordFlush(reason string, size int, duration time.Duration, err error) {
	if err != nil {
		FlushErrors.Inc()
		return
	}
	FlushDuration.WithLabelValues(reason).Observe(duration.Seconds())
	FlushBatchSize.Observe(float64(size))
}

// RecordStoreQuery records a record store operation and its outcome.
func RecordStoreQuery(operation string, duration time.Duration, err error) {
	StoreQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		StoreQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordAPIRequest records one completed HTTP request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// UpdateBufferGauges sets the current buffer occupancy.
func UpdateBufferGauges(records int, bytes int64) {
	ConsumerBufferedRecords.Set(float64(records))
	ConsumerBufferedBytes.Set(float64(bytes))
}
