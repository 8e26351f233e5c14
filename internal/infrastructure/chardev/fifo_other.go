// ABOUTME: Named-pipe export stub for platforms without mkfifo support
// ABOUTME: Always reports ErrFIFOUnsupported

//go:build !linux

package chardev

import (
	"context"
	"log/slog"
	"time"
)

func ExportFIFO(ctx context.Context, path string, dev *Device, poll time.Duration, logger *slog.Logger) error {
	return ErrFIFOUnsupported
}
