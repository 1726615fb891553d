package index

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBreakerTransportGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"info":{}}`))
	}))
	defer server.Close()

	bt := NewBreakerTransport(NewFetcher())

	body, err := bt.GetJSON(context.Background(), server.URL+"/pypi/numpy/json")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(body) != `{"info":{}}` {
		t.Errorf("unexpected body %q", string(body))
	}
}

func TestBreakerTransportProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD request, got %s", r.Method)
		}
	}))
	defer server.Close()

	bt := NewBreakerTransport(NewFetcher())
	if err := bt.Probe(context.Background(), server.URL+"/pypi/numpy/json"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestHostOf(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{"pypi", "https://pypi.org/pypi/numpy/json", "pypi.org"},
		{"files", "https://files.pythonhosted.org/packages/source/n/numpy/numpy-2.0.tar.gz", "files.pythonhosted.org"},
		{"invalid URL", "not-a-valid-url", "not-a-valid-url"},
		{"with port", "https://pypi.example.com:8080/simple/", "pypi.example.com:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hostOf(tt.url); got != tt.expected {
				t.Errorf("hostOf(%q) = %q, want %q", tt.url, got, tt.expected)
			}
		})
	}
}

func TestBreakerOpensPerHost(t *testing.T) {
	requests := 0
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{}"))
	}))
	defer healthy.Close()

	bt := NewBreakerTransport(NewFetcher(WithMaxRetries(0), WithBaseDelay(0)))

	var lastErr error
	for range 10 {
		_, lastErr = bt.GetJSON(context.Background(), failing.URL+"/pypi/numpy/json")
	}
	if requests > 5 {
		t.Errorf("expected the breaker to stop requests after 5 failures, got %d", requests)
	}
	if !errors.Is(lastErr, ErrUpstreamDown) || !strings.Contains(lastErr.Error(), "circuit breaker open") {
		t.Errorf("expected ErrUpstreamDown from open breaker, got %v", lastErr)
	}

	if _, err := bt.GetJSON(context.Background(), healthy.URL+"/pypi/numpy/json"); err != nil {
		t.Errorf("other hosts must stay reachable, got %v", err)
	}

	open := bt.OpenHosts()
	if len(open) != 1 || open[0] != hostOf(failing.URL) {
		t.Errorf("OpenHosts() = %v, want [%s]", open, hostOf(failing.URL))
	}
}

func TestBreakerIgnoresNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	bt := NewBreakerTransport(NewFetcher())
	for range 10 {
		if _, err := bt.GetJSON(context.Background(), server.URL+"/pypi/missing/json"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := bt.Probe(context.Background(), server.URL+"/pypi/missing/json"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound from Probe, got %v", err)
		}
	}
	if open := bt.OpenHosts(); len(open) != 0 {
		t.Errorf("missing projects must not open the breaker, got %v", open)
	}
}
