// ABOUTME: Tests for HTTP PCM source implementation
// ABOUTME: Verifies connection handling and error cases
package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPSource_Connect(t *testing.T) {
	// Create test server
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Station") != "f4vqg" {
			t.Errorf("expected custom header to be forwarded")
		}

		w.Header().Set("Content-Type", "audio/L16")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pcm data"))
	}))
	defer server.Close()

	cfg := HTTPConfig{
		URL:            server.URL,
		ConnectTimeout: 5 * time.Second,
		Headers:        map[string]string{"X-Station": "f4vqg"},
	}

	src := NewHTTP(cfg)

	ctx := context.Background()
	reader, err := src.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer reader.Close()

	buf := make([]byte, 8)
	n, _ := reader.Read(buf)

	if string(buf[:n]) != "pcm data" {
		t.Errorf("expected 'pcm data', got %q", buf[:n])
	}
}

func TestHTTPSource_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	src := NewHTTP(HTTPConfig{URL: server.URL})
	if _, err := src.Connect(context.Background()); err == nil {
		t.Error("expected error for non-200 status")
	}
}
