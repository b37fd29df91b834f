package tracing

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type roundTripper struct {
	base http.RoundTripper
}

// WrapHTTPClient returns a copy of client whose requests run inside a client
// span and carry trace propagation headers.
func WrapHTTPClient(client *http.Client) *http.Client {
	if client == nil {
		client = http.DefaultClient
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *client
	wrapped.Transport = &roundTripper{base: base}
	return &wrapped
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	tracer := otel.Tracer("flowmarket/http-client")
	ctx, span := tracer.Start(req.Context(), "HTTP "+strings.ToUpper(req.Method), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	// Query strings of OAuth calls carry codes and secrets.
	target := req.URL.Scheme + "://" + req.URL.Host + req.URL.Path
	span.SetAttributes(SafeAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.url", target),
	)...)

	req = req.Clone(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := rt.base.RoundTrip(req)
	if err != nil {
		span.RecordError(SafeError(err))
		span.SetStatus(codes.Error, "transport error")
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, "server error")
	}
	return resp, nil
}
