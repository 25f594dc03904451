// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the
// inference service.
//
// # Description
//
// This package implements Prometheus metrics for monitoring inference
// traffic. Metrics include:
//   - Query counters (by endpoint, status, error type)
//   - Query latency histograms
//   - Stored network gauge
//
// # Integration
//
// Metrics are exposed via /metrics endpoint. Use with Prometheus + Grafana
// for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for inference metrics
const inferenceSubsystem = "inference"

// QueryMetrics holds all Prometheus metrics for inference operations.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring query traffic.
// Initialize once at startup via InitMetrics().
//
// # Thread Safety
//
// All operations are thread-safe.
type QueryMetrics struct {
	// QueriesTotal counts queries by endpoint and status.
	// Labels: endpoint (map, marginal), status (success, error)
	QueriesTotal *prometheus.CounterVec

	// QueryDurationSeconds measures end-to-end query latency.
	// Labels: endpoint (map, marginal)
	QueryDurationSeconds *prometheus.HistogramVec

	// ErrorsTotal counts errors by type and endpoint.
	// Labels: endpoint, error_code (invalid_query, not_found,
	// scope_overflow, malformed_network, cancelled, internal)
	ErrorsTotal *prometheus.CounterVec

	// StoredNetworks tracks the number of networks in the registry.
	StoredNetworks prometheus.Gauge
}

// DefaultMetrics is the singleton instance of QueryMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *QueryMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once
// at application startup.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *QueryMetrics {
	DefaultMetrics = &QueryMetrics{
		QueriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: inferenceSubsystem,
				Name:      "queries_total",
				Help:      "Total number of inference queries by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),

		QueryDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: inferenceSubsystem,
				Name:      "query_duration_seconds",
				Help:      "End-to-end query latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
			},
			[]string{"endpoint"},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: inferenceSubsystem,
				Name:      "errors_total",
				Help:      "Total query errors by type and endpoint",
			},
			[]string{"endpoint", "error_code"},
		),

		StoredNetworks: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: inferenceSubsystem,
				Name:      "stored_networks",
				Help:      "Number of networks currently in the registry",
			},
		),
	}
	return DefaultMetrics
}

// ErrorCode represents a categorized error type for metrics.
type ErrorCode string

const (
	// ErrorCodeInvalidQuery indicates query validation failure.
	ErrorCodeInvalidQuery ErrorCode = "invalid_query"

	// ErrorCodeNotFound indicates the named network does not exist.
	ErrorCodeNotFound ErrorCode = "not_found"

	// ErrorCodeScopeOverflow indicates the elimination exceeded the table cap.
	ErrorCodeScopeOverflow ErrorCode = "scope_overflow"

	// ErrorCodeMalformedNetwork indicates a rejected network definition.
	ErrorCodeMalformedNetwork ErrorCode = "malformed_network"

	// ErrorCodeCancelled indicates the client abandoned the query.
	ErrorCodeCancelled ErrorCode = "cancelled"

	// ErrorCodeInternal indicates an internal server error.
	ErrorCodeInternal ErrorCode = "internal"
)

// Endpoint represents a query endpoint for metrics labeling.
type Endpoint string

const (
	// EndpointMAP is the MAP query endpoint.
	EndpointMAP Endpoint = "map"

	// EndpointMarginal is the marginal query endpoint.
	EndpointMarginal Endpoint = "marginal"
)

// RecordQuery records a completed query.
func (m *QueryMetrics) RecordQuery(endpoint Endpoint, success bool, seconds float64) {
	status := "success"
	if !success {
		status = "error"
	}
	m.QueriesTotal.WithLabelValues(string(endpoint), status).Inc()
	m.QueryDurationSeconds.WithLabelValues(string(endpoint)).Observe(seconds)
}

// RecordError records a query error.
func (m *QueryMetrics) RecordError(endpoint Endpoint, code ErrorCode) {
	m.ErrorsTotal.WithLabelValues(string(endpoint), string(code)).Inc()
}

// SetStoredNetworks updates the registry size gauge.
func (m *QueryMetrics) SetStoredNetworks(n int) {
	m.StoredNetworks.Set(float64(n))
}
