package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes registration-level instruments.
type Metrics struct {
	submissions metric.Int64Counter
	outcomes    metric.Int64Counter
	dropped     metric.Int64Counter
	rateLimited metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the registration metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "flowmarket"
	}
	meter := provider.Meter(name)

	submissions, err := meter.Int64Counter("flowmarket_registration_submissions_total")
	if err != nil {
		return nil, err
	}
	outcomes, err := meter.Int64Counter("flowmarket_registration_outcomes_total")
	if err != nil {
		return nil, err
	}
	dropped, err := meter.Int64Counter("flowmarket_registration_dropped_total")
	if err != nil {
		return nil, err
	}
	rateLimited, err := meter.Int64Counter("flowmarket_registration_rate_limited_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		submissions: submissions,
		outcomes:    outcomes,
		dropped:     dropped,
		rateLimited: rateLimited,
	}, nil
}

// RecordSubmission counts a submission admitted into Submitting.
func (m *Metrics) RecordSubmission(ctx context.Context, path string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("path", strings.TrimSpace(path)))
	m.submissions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOutcome counts a resolved submission by outcome (succeeded or failed).
func (m *Metrics) RecordOutcome(ctx context.Context, path, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("path", strings.TrimSpace(path)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.outcomes.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDropped counts a submission dropped by the re-entrancy guard.
func (m *Metrics) RecordDropped(ctx context.Context, path string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("path", strings.TrimSpace(path)))
	m.dropped.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimited counts submit requests rejected by the rate limiter.
func (m *Metrics) RecordRateLimited(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimited.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"path":        {},
	"outcome":     {},
	"provider":    {},
	"endpoint":    {},
	"status_code": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
