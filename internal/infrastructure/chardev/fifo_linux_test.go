// ABOUTME: Tests for the Linux named-pipe export
// ABOUTME: Verifies pipe creation and prompt shutdown with a stalled reader

//go:build linux

package chardev

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/harper/rpitx-bridge/internal/domain/drain"
	"github.com/harper/rpitx-bridge/internal/domain/period"
)

func TestMakeFIFO(t *testing.T) {
	path := filepath.Join(t.TempDir(), Name)

	if err := makeFIFO(path); err != nil {
		t.Fatalf("makeFIFO: %v", err)
	}
	// Existing pipes are reused
	if err := makeFIFO(path); err != nil {
		t.Fatalf("makeFIFO again: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode()&os.ModeNamedPipe == 0 {
		t.Errorf("expected a named pipe, got mode %v", info.Mode())
	}
}

func TestExportFIFO_StalledReaderShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), Name)
	dev := New(&stubDrainer{res: drain.Result{Status: drain.Drained, Consumed: period.Bytes, Produced: period.Bytes}})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ExportFIFO(ctx, path, dev, 5*time.Millisecond, logger)
	}()

	// Attach a reader that never reads so the pipe fills up
	var fd int
	deadline := time.Now().Add(2 * time.Second)
	for {
		var err error
		fd, err = unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("open reader: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	defer unix.Close(fd)

	// Give the pump time to fill the pipe buffer
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean exit, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ExportFIFO did not return after cancel with a stalled reader")
	}
}
