package tracing

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/flowmarket/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	httpTracerName   = "flowmarket/http"
	unmatchedRoute   = "unmatched"
	attrVisitID      = "registration.visit_id"
	attrRequestID    = "request_id"
	serverErrorLabel = "server error"
)

// GinMiddleware opens a server span per request, named after the matched
// route. The registration visit bound by later handlers is attached once
// they return.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer(httpTracerName)
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}

		parent := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(parent, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(SafeAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", route),
			)...),
		)
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			span.SetAttributes(attribute.String(attrRequestID, requestID))
		}

		started := time.Now()
		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if visitID := obscontext.VisitIDFromContext(c.Request.Context()); visitID != "" {
			span.SetAttributes(attribute.String(attrVisitID, visitID))
		}

		status := c.Writer.Status()
		span.SetAttributes(SafeAttributes(
			attribute.Int("http.status_code", status),
			attribute.Int64("http.server_duration_ms", time.Since(started).Milliseconds()),
		)...)
		if status < http.StatusInternalServerError {
			return
		}
		if last := c.Errors.Last(); last != nil {
			span.RecordError(SafeError(last.Err))
		}
		span.SetStatus(codes.Error, serverErrorLabel)
	}
}
