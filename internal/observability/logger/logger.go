package logger

import (
	"context"
	"fmt"
	"strings"

	obscontext "github.com/smallbiznis/flowmarket/internal/observability/context"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configures the process logger.
type Config struct {
	Service string
	Env     string
	Release string
	Level   string
	Console bool
	// Debug switches to zap's development settings: no sampling and stack
	// traces from warn upwards.
	Debug bool
}

// New builds the process logger, installs it as the zap global and flushes
// it when the app stops.
func New(lc fx.Lifecycle, cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.TrimSpace(cfg.Level))
	if strings.TrimSpace(cfg.Level) == "" {
		level, err = zapcore.InfoLevel, nil
	}
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Debug {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.Encoding = "json"
	if cfg.Console {
		zapCfg.Encoding = "console"
	}
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.OutputPaths = []string{"stdout"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}
	zapCfg.InitialFields = map[string]any{
		"service": defaultString(cfg.Service, "flowmarket"),
		"env":     strings.TrimSpace(cfg.Env),
		"release": strings.TrimSpace(cfg.Release),
	}

	log, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(log)

	if lc != nil {
		lc.Append(fx.StopHook(func() {
			_ = log.Sync()
		}))
	}
	return log, nil
}

// WithContext adds the request, visit and trace identifiers found in ctx.
// Identifiers that are absent are left out.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if ctx == nil || base == nil {
		return base
	}

	fields := make([]zap.Field, 0, 4)
	if id := obscontext.RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id := obscontext.VisitIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("visit_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// WithVisit scopes log to one registration visit.
func WithVisit(log *zap.Logger, visitID string) *zap.Logger {
	if log == nil {
		return nil
	}
	return log.With(zap.String("visit_id", strings.TrimSpace(visitID)))
}

func defaultString(value, def string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return def
}
