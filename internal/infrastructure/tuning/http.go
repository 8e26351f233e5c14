// ABOUTME: HTTP tuning provider reading frequency and harmonic from a bridge
// ABOUTME: Lets a transmitter run against a remote bridge's settings endpoint
package tuning

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/harper/rpitx-bridge/internal/domain"
)

type HTTPConfig struct {
	URL     string
	Timeout time.Duration
}

type HTTPProvider struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewHTTP(cfg HTTPConfig) *HTTPProvider {
	client := &http.Client{
		Timeout: cfg.Timeout,
	}

	return &HTTPProvider{
		cfg:    cfg,
		client: client,
	}
}

func (h *HTTPProvider) Fetch(ctx context.Context) (domain.Tuning, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", h.cfg.URL, nil)
	if err != nil {
		return domain.Tuning{}, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return domain.Tuning{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Tuning{}, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return domain.Tuning{}, fmt.Errorf("read body: %w", err)
	}

	var t domain.Tuning
	if err := json.Unmarshal(body, &t); err != nil {
		return domain.Tuning{}, fmt.Errorf("parse json: %w", err)
	}
	if t.Harmonic == 0 {
		return domain.Tuning{}, fmt.Errorf("parse json: harmonic missing or zero")
	}

	return t, nil
}
