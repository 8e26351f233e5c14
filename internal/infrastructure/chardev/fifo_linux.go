// ABOUTME: Linux named-pipe export of the rpitxin device node
// ABOUTME: Pumps drained periods into the pipe without ever blocking past ctx

//go:build linux

package chardev

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/harper/rpitx-bridge/internal/domain/period"
)

func makeFIFO(path string) error {
	if err := unix.Mkfifo(path, 0o644); err != nil && !errors.Is(err, unix.EEXIST) {
		return fmt.Errorf("mkfifo %s: %w", path, err)
	}
	return nil
}

// ExportFIFO publishes the device as a named pipe at path and pumps
// drained periods into it until ctx ends. Between empty reads, and while
// the reader is not keeping up, it waits up to poll before checking ctx.
func ExportFIFO(ctx context.Context, path string, dev *Device, poll time.Duration, logger *slog.Logger) error {
	if err := makeFIFO(path); err != nil {
		return err
	}
	defer os.Remove(path)

	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("fifo", path)

	for ctx.Err() == nil {
		// A non-blocking open for write fails with ENXIO until a reader shows up
		fd, err := unix.Open(path, unix.O_WRONLY|unix.O_NONBLOCK, 0)
		if err != nil {
			if errors.Is(err, unix.ENXIO) {
				if !sleepCtx(ctx, poll) {
					break
				}
				continue
			}
			return fmt.Errorf("open fifo: %w", err)
		}

		logger.Info("reader attached")
		err = pump(ctx, fd, dev, poll)
		unix.Close(fd)
		if err != nil && !errors.Is(err, unix.EPIPE) {
			return err
		}
		logger.Info("reader detached")
	}
	return nil
}

// pump writes through a non-blocking fd. A full pipe parks on poll(2)
// for at most one poll interval at a time so cancellation is noticed.
func pump(ctx context.Context, fd int, dev *Device, poll time.Duration) error {
	buf := make([]byte, period.IQBytes)
	for {
		if ctx.Err() != nil {
			return nil
		}

		n, _ := dev.Read(buf)
		if n == 0 {
			if !sleepCtx(ctx, poll) {
				return nil
			}
			continue
		}

		for off := 0; off < n; {
			w, err := unix.Write(fd, buf[off:n])
			if err == nil {
				off += w
				continue
			}
			if !errors.Is(err, unix.EAGAIN) && !errors.Is(err, unix.EINTR) {
				return fmt.Errorf("write fifo: %w", err)
			}
			if err := waitWritable(ctx, fd, poll); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func waitWritable(ctx context.Context, fd int, poll time.Duration) error {
	timeout := int(poll / time.Millisecond)
	if timeout < 1 {
		timeout = 1
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
		n, err := unix.Poll(fds, timeout)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("poll fifo: %w", err)
		}
		if n == 0 {
			continue
		}
		if fds[0].Revents&(unix.POLLERR|unix.POLLHUP) != 0 {
			return unix.EPIPE
		}
		if fds[0].Revents&unix.POLLOUT != 0 {
			return nil
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
