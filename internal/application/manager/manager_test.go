// ABOUTME: Tests for bridge manager lifecycle
// ABOUTME: Verifies wiring from config and an end-to-end producer to transmitter run
package manager

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/harper/rpitx-bridge/internal/application/config"
	"github.com/harper/rpitx-bridge/internal/domain/endpoint"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeMonoWAV(t *testing.T, samples int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	data := make([]int, samples)
	for i := range data {
		data[i] = (i%64 - 32) * 512
	}
	enc := wav.NewEncoder(f, 48000, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{SampleRate: 48000, NumChannels: 1},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	f.Close()
	return path
}

func TestManager_NewFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.ApplyDefaults()

	mgr, err := NewFromConfig(cfg, discardLogger())
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}

	if mgr.Engine() == nil || mgr.Card() == nil || mgr.Device() == nil || mgr.Settings() == nil {
		t.Fatal("expected engine, card, device and settings to be wired")
	}

	if mgr.Transmitter() != nil {
		t.Error("transmitter should be nil when disabled")
	}

	if got := mgr.Settings().Tuning().Frequency; got != 14000000 {
		t.Errorf("expected default frequency, got %d", got)
	}

	if err := mgr.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if mgr.Session() != nil {
		t.Error("no producer configured, expected no session")
	}
	if err := mgr.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestManager_BadSink(t *testing.T) {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Transmitter.Enabled = true
	cfg.Transmitter.Sink.Kind = "tape"

	if _, err := NewFromConfig(cfg, discardLogger()); err == nil {
		t.Fatal("expected error for unknown sink kind")
	}
}

func TestManager_MissingWAV(t *testing.T) {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Source.Kind = "wav"
	cfg.Source.Path = filepath.Join(t.TempDir(), "missing.wav")

	if _, err := NewFromConfig(cfg, discardLogger()); err == nil {
		t.Fatal("expected error for missing wav file")
	}
}

func TestManager_ProducerToTransmitter(t *testing.T) {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Source.Kind = "wav"
	cfg.Source.Endpoint = "usbdata"
	cfg.Source.Path = writeMonoWAV(t, 4096)
	cfg.Source.Loop = true
	cfg.Transmitter.Enabled = true
	cfg.Transmitter.IdleMs = 1

	mgr, err := NewFromConfig(cfg, discardLogger())
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}

	if err := mgr.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if mgr.Session() == nil {
		t.Fatal("expected producer session after Start")
	}
	if got := mgr.Engine().Active(); got != endpoint.Mono {
		t.Errorf("expected mono endpoint active, got %s", got)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if mgr.Transmitter().Stats().Samples > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if mgr.Transmitter().Stats().Samples == 0 {
		t.Fatal("transmitter never received samples")
	}
	if mgr.Engine().Stats().Periods == 0 {
		t.Error("engine drained no periods")
	}

	if err := mgr.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	if got := mgr.Engine().Active(); got != endpoint.None {
		t.Errorf("expected no endpoint after shutdown, got %s", got)
	}
}
