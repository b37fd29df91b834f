package observability

import (
	"github.com/smallbiznis/flowmarket/internal/observability/logger"
	"github.com/smallbiznis/flowmarket/internal/observability/metrics"
	"github.com/smallbiznis/flowmarket/internal/observability/tracing"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		splitConfig,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
		metrics.NewTransitionMetrics,
	),
	// nothing asks for the tracer provider directly; the otel global does
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)

// resourceAttributes identify the registration orchestrator among the
// services reporting to the same collector.
var resourceAttributes = []attribute.KeyValue{
	attribute.String("service.namespace", "flowmarket"),
	attribute.String("flowmarket.component", "registration"),
}

func splitConfig(cfg Config) (logger.Config, tracing.Config, metrics.Config) {
	debug := cfg.Debug()

	logCfg := logger.Config{
		Service: cfg.Service,
		Env:     cfg.Env,
		Release: cfg.Release,
		Level:   cfg.LogLevel,
		Console: cfg.LogConsole,
		Debug:   debug,
	}
	traceCfg := tracing.Config{
		Enabled:          cfg.Export.Enabled,
		ServiceName:      cfg.Service,
		ServiceVersion:   cfg.Release,
		Environment:      cfg.Env,
		ExporterEndpoint: cfg.Export.Endpoint,
		ExporterProtocol: cfg.Export.Protocol,
		SamplingRatio:    cfg.Export.Ratio,
		Resource:         resourceAttributes,
	}
	metricCfg := metrics.Config{
		Enabled:          cfg.Export.Enabled,
		ExporterEndpoint: cfg.Export.Endpoint,
		ExporterProtocol: cfg.Export.Protocol,
		ServiceName:      cfg.Service,
		Environment:      cfg.Env,
	}
	return logCfg, traceCfg, metricCfg
}
