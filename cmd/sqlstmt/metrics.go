package main

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const _exportTimeout = 5 * time.Second

type shutdownFunc func(context.Context) error

// newMeterProvider returns a provider exporting to the OTLP collector at
// endpoint, or a no-op provider when endpoint is empty. The shutdown
// function flushes pending measurements.
func newMeterProvider(ctx context.Context, endpoint string) (metric.MeterProvider, shutdownFunc, error) {
	if endpoint == "" {
		return noop.NewMeterProvider(), func(context.Context) error { return nil }, nil
	}

	exp, err := otlpmetricgrpc.New(
		ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithTimeout(_exportTimeout)),
		),
	)
	return mp, mp.Shutdown, nil
}
