package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/smallbiznis/flowmarket/internal/config"
)

const defaultSamplingRatio = 0.1

// Config is the telemetry view of the application config. The standard
// OTEL_* variables and LOG_* variables take precedence over it.
type Config struct {
	Service string
	Env     string
	Release string

	LogLevel   string
	LogConsole bool

	Export Export
}

// Export says where spans and registration metrics go.
type Export struct {
	Enabled  bool
	Endpoint string
	Protocol string
	Ratio    float64
}

func LoadConfig(cfg config.Config) Config {
	service := firstNonEmpty(os.Getenv("OTEL_SERVICE_NAME"), cfg.AppName, "flowmarket")

	protocol := firstNonEmpty(
		os.Getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL"),
		os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"),
		"grpc",
	)

	ratio, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv("OTEL_SAMPLING_RATIO")), 64)
	if err != nil || ratio <= 0 || ratio > 1 {
		ratio = defaultSamplingRatio
	}
	enabled, err := strconv.ParseBool(strings.TrimSpace(os.Getenv("OTEL_ENABLED")))
	if err != nil {
		enabled = true
	}

	return Config{
		Service:    service,
		Env:        firstNonEmpty(os.Getenv("DEPLOYMENT_ENV"), cfg.Environment),
		Release:    firstNonEmpty(os.Getenv("SERVICE_VERSION"), cfg.AppVersion),
		LogLevel:   strings.ToLower(firstNonEmpty(os.Getenv("LOG_LEVEL"), "info")),
		LogConsole: strings.EqualFold(strings.TrimSpace(os.Getenv("LOG_FORMAT")), "console"),
		Export: Export{
			Enabled:  enabled,
			Endpoint: firstNonEmpty(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), cfg.OTLPEndpoint),
			Protocol: strings.ToLower(protocol),
			Ratio:    ratio,
		},
	}
}

// Debug is true for debug logging or a non-production environment.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(c.Env) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
