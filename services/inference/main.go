// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianBayes/services/bayes/store"
	"github.com/AleutianAI/AleutianBayes/services/inference/observability"
	"github.com/AleutianAI/AleutianBayes/services/inference/routes"
	"github.com/AleutianAI/AleutianBayes/services/inference/telemetry"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "aleutian-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("inference-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	port := os.Getenv("INFERENCE_PORT")
	if port == "" {
		port = "12310"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	// --- Init the meter ---
	// Routes the engine's otel instruments through the Prometheus registry
	// so they appear on /metrics.
	meterShutdown, err := telemetry.InitMeter("inference-service")
	if err != nil {
		log.Fatalf("failed to setup the meter provider: %v", err)
	}
	defer meterShutdown(context.Background())

	dataDir := os.Getenv("BAYES_DATA_DIR")
	if dataDir == "" {
		dataDir = "/app/data/networks"
	}
	registry, err := store.Open(store.DefaultConfig(dataDir))
	if err != nil {
		log.Fatalf("FATAL: could not open the network store: %v", err)
	}
	defer registry.Close()

	metrics := observability.InitMetrics()

	// Optional hot reload: networks dropped into the model directory are
	// loaded without a restart.
	if modelDir := os.Getenv("BAYES_MODEL_DIR"); modelDir != "" {
		watcher, err := store.NewWatcher(registry, modelDir, nil)
		if err != nil {
			log.Fatalf("FATAL: could not create the model watcher: %v", err)
		}
		if err := watcher.Start(context.Background()); err != nil {
			log.Fatalf("FATAL: could not watch the model directory: %v", err)
		}
		defer watcher.Stop()
		slog.Info("watching model directory", "dir", modelDir)
	}

	if names, err := registry.List(context.Background()); err == nil {
		metrics.SetStoredNetworks(len(names))
		slog.Info("network registry ready", "networks", len(names))
	}

	router := gin.Default()
	router.Use(otelgin.Middleware("inference-service"))

	routes.SetupRoutes(router, registry, metrics)

	log.Println("Starting the inference server on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
