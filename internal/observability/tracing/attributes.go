package tracing

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

var allowedAttributeKeys = map[attribute.Key]struct{}{
	"request_id":              {},
	"registration.visit_id":   {},
	"registration.path":       {},
	"registration.provider":   {},
	"registration.outcome":    {},
	"http.method":             {},
	"http.route":              {},
	"http.status_code":        {},
	"http.server_duration_ms": {},
	"http.url":                {},
}

// SafeAttributes drops attributes that could carry credentials or personal data.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedAttributeKeys[attr.Key]; ok {
			out = append(out, attr)
		}
	}
	return out
}

// SafeError replaces an error with a message-free copy of its class so that
// user input never lands in span events.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	var classified interface{ ErrorType() string }
	if errors.As(err, &classified) {
		return errors.New(classified.ErrorType())
	}
	return errors.New("error")
}

// ExtractContext reads propagation headers into ctx.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
