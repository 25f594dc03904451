// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires the OpenTelemetry meter provider to Prometheus.
//
// The inference engine records its elimination metrics through otel.Meter.
// Without a configured meter provider those instruments no-op; with this
// package they are exported through the default Prometheus registry and
// show up on the service's /metrics endpoint alongside the promauto
// metrics in observability.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// InitMeter installs a Prometheus-backed global MeterProvider.
//
// Description:
//
//	Creates a Prometheus exporter registered with the default prometheus
//	registry and installs it as the global otel meter provider. After it
//	returns, every otel.Meter instrument in the process is scraped via
//	promhttp.Handler().
//
// Outputs:
//
//	shutdown - Function to call on application exit. Must be called.
//	error - Non-nil if the exporter cannot be created.
//
// Thread Safety: Call once at application startup.
func InitMeter(serviceName string) (shutdown func(context.Context) error, err error) {
	exporter, err := promexporter.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", serviceName),
	)
	mp := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(exporter),
	)
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}
