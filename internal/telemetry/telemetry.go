package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Telemetry holds the metric instruments for the sync pipeline. Metrics are
// exposed in Prometheus format via Handler.
type Telemetry struct {
	meterProvider metric.MeterProvider
	meter         metric.Meter

	jobsTotal        metric.Int64Counter
	jobDuration      metric.Float64Histogram
	downloadsActive  metric.Int64UpDownCounter
	downloadedBytes  metric.Int64Counter
	indexOpsTotal    metric.Int64Counter
	indexOpDuration  metric.Float64Histogram
	fingerprintsDone metric.Int64Counter
}

// Config holds telemetry configuration.
type Config struct {
	Enabled     bool
	ServiceName string
}

// New creates a telemetry instance. With Enabled false all record methods are
// no-ops.
func New(_ context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return &Telemetry{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(meterProvider)

	t := &Telemetry{
		meterProvider: meterProvider,
		meter:         meterProvider.Meter(cfg.ServiceName),
	}

	if err := t.initInstruments(); err != nil {
		return nil, err
	}

	return t, nil
}

func (t *Telemetry) initInstruments() error {
	var err error

	if t.jobsTotal, err = t.meter.Int64Counter("sync_jobs_total",
		metric.WithDescription("Sync jobs processed, labeled by outcome")); err != nil {
		return fmt.Errorf("failed to create jobs counter: %w", err)
	}

	if t.jobDuration, err = t.meter.Float64Histogram("sync_job_duration_seconds",
		metric.WithDescription("Time from claim to terminal state per job")); err != nil {
		return fmt.Errorf("failed to create job duration histogram: %w", err)
	}

	if t.downloadsActive, err = t.meter.Int64UpDownCounter("sync_downloads_active",
		metric.WithDescription("Downloads currently in flight")); err != nil {
		return fmt.Errorf("failed to create active downloads counter: %w", err)
	}

	if t.downloadedBytes, err = t.meter.Int64Counter("sync_downloaded_bytes_total",
		metric.WithDescription("Bytes written to the download directory")); err != nil {
		return fmt.Errorf("failed to create downloaded bytes counter: %w", err)
	}

	if t.indexOpsTotal, err = t.meter.Int64Counter("index_operations_total",
		metric.WithDescription("Fingerprint index operations, labeled by operation and status")); err != nil {
		return fmt.Errorf("failed to create index ops counter: %w", err)
	}

	if t.indexOpDuration, err = t.meter.Float64Histogram("index_operation_duration_seconds",
		metric.WithDescription("Fingerprint index operation latency")); err != nil {
		return fmt.Errorf("failed to create index op histogram: %w", err)
	}

	if t.fingerprintsDone, err = t.meter.Int64Counter("fingerprints_computed_total",
		metric.WithDescription("Fingerprint windows fetched and hashed")); err != nil {
		return fmt.Errorf("failed to create fingerprints counter: %w", err)
	}

	return nil
}

// Handler returns the Prometheus scrape handler.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.Handler()
}

// RecordJob records a finished job with its outcome and duration.
func (t *Telemetry) RecordJob(ctx context.Context, outcome string, duration time.Duration) {
	if t.jobsTotal == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	t.jobsTotal.Add(ctx, 1, attrs)
	t.jobDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordFingerprint counts one computed fingerprint.
func (t *Telemetry) RecordFingerprint(ctx context.Context) {
	if t.fingerprintsDone == nil {
		return
	}

	t.fingerprintsDone.Add(ctx, 1)
}

// DownloadStarted marks a download in flight. The returned func marks it done
// and accounts the written bytes.
func (t *Telemetry) DownloadStarted(ctx context.Context) func(written int64) {
	if t.downloadsActive == nil {
		return func(int64) {}
	}

	t.downloadsActive.Add(ctx, 1)

	return func(written int64) {
		t.downloadsActive.Add(ctx, -1)
		t.downloadedBytes.Add(ctx, written)
	}
}

// InstrumentIndexOp wraps a fingerprint index operation with latency and
// status metrics.
func (t *Telemetry) InstrumentIndexOp(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if t.indexOpsTotal == nil {
		return fn(ctx)
	}

	start := time.Now()
	err := fn(ctx)

	status := "ok"
	if err != nil {
		status = "error"
	}

	attrs := metric.WithAttributes(attribute.String("operation", op), attribute.String("status", status))
	t.indexOpsTotal.Add(ctx, 1, attrs)
	t.indexOpDuration.Record(ctx, time.Since(start).Seconds(), attrs)

	return err
}
