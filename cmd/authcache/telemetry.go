package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	otelexport "github.com/MrEthical07/authcache/metrics/export/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/MrEthical07/authcache"

// startOTelMetrics pushes source through a periodic reader that writes JSON
// to w. The returned stop flushes a final collection.
func startOTelMetrics(source otelexport.MetricsSource, w io.Writer, interval time.Duration) (func(context.Context) error, error) {
	exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("create stdout metric exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))),
	)

	bridge, err := otelexport.NewExporter(provider.Meter(meterName), source)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, err
	}

	// Shutdown runs the final collection, so the callback must still be
	// registered at that point.
	return func(ctx context.Context) error {
		return errors.Join(provider.Shutdown(ctx), bridge.Close())
	}, nil
}
