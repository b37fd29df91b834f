package tracing

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

type classifiedErr struct{}

func (classifiedErr) Error() string     { return "user a@b.com already exists" }
func (classifiedErr) ErrorType() string { return "conflict" }

func TestSafeAttributesDropsUnknownKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.method", "GET"),
		attribute.String("email", "a@b.com"),
	)
	if len(attrs) != 1 || attrs[0].Key != "http.method" {
		t.Fatalf("expected only http.method, got %v", attrs)
	}
}

func TestSafeErrorHidesMessage(t *testing.T) {
	if SafeError(nil) != nil {
		t.Fatal("expected nil")
	}
	if got := SafeError(errors.New("password=hunter2")).Error(); got != "error" {
		t.Fatalf("expected generic error, got %q", got)
	}
	if got := SafeError(classifiedErr{}).Error(); got != "conflict" {
		t.Fatalf("expected conflict, got %q", got)
	}
}

func TestWrapHTTPClientPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	client := WrapHTTPClient(srv.Client())
	resp, err := client.Get(srv.URL + "/token?code=secret")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", resp.StatusCode)
	}
}

func TestNewProviderDisabled(t *testing.T) {
	provider, err := NewProvider(nil, Config{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("expected provider, got %v", err)
	}
	if provider == nil {
		t.Fatal("expected non-nil provider")
	}
}
