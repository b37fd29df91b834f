// Package context carries correlation identifiers through request contexts.
package context

import "context"

type requestIDKey struct{}
type visitIDKey struct{}

// WithRequestID stores the inbound request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request id or an empty string.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithVisitID stores the registration visit id.
func WithVisitID(ctx context.Context, visitID string) context.Context {
	if visitID == "" {
		return ctx
	}
	return context.WithValue(ctx, visitIDKey{}, visitID)
}

// VisitIDFromContext returns the registration visit id or an empty string.
func VisitIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(visitIDKey{}).(string); ok {
		return v
	}
	return ""
}
