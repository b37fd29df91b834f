package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/flowmarket/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return recorder
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestGinMiddlewareTagsVisit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := recordSpans(t)

	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/auth/register", func(c *gin.Context) {
		c.Request = c.Request.WithContext(obscontext.WithVisitID(c.Request.Context(), "visit-1"))
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/auth/register", nil))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected one span, got %d", len(spans))
	}
	if got := spans[0].Name(); got != "GET /auth/register" {
		t.Fatalf("unexpected span name %q", got)
	}
	visit, ok := spanAttr(spans[0], attrVisitID)
	if !ok || visit.AsString() != "visit-1" {
		t.Fatalf("expected visit id attribute, got %v", visit)
	}
	if status, _ := spanAttr(spans[0], "http.status_code"); status.AsInt64() != http.StatusOK {
		t.Fatalf("expected status 200, got %v", status)
	}
}

func TestGinMiddlewareMarksServerErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := recordSpans(t)

	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/boom", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected two spans, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Fatalf("expected error status, got %v", spans[0].Status())
	}
	if _, ok := spanAttr(spans[0], attrVisitID); ok {
		t.Fatal("visit id set without a visit")
	}
	if got := spans[1].Name(); got != "GET "+unmatchedRoute {
		t.Fatalf("unexpected span name %q", got)
	}
}
