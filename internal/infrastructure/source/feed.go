// ABOUTME: Copies a producer stream into an open endpoint session
// ABOUTME: Optionally reconnects the source each time it reaches end of stream
package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/harper/rpitx-bridge/internal/domain"
)

// SessionWriter is the producer side of an open endpoint session.
type SessionWriter interface {
	Write(ctx context.Context, p []byte) (int, error)
}

// ErrEmptySource is returned by a looping Feed when a pass yields no data.
var ErrEmptySource = errors.New("source produced no data")

// Feed copies src into w until the stream ends or ctx is cancelled. When
// loop is set the source is reconnected after a clean end of stream.
func Feed(ctx context.Context, src domain.StreamSource, w SessionWriter, loop bool) error {
	buf := make([]byte, 8192)
	for {
		stream, err := src.Connect(ctx)
		if err != nil {
			return fmt.Errorf("connect source: %w", err)
		}

		copied, err := copyStream(ctx, stream, w, buf)
		stream.Close()
		if err != nil {
			return err
		}
		if !loop || ctx.Err() != nil {
			return ctx.Err()
		}
		if copied == 0 {
			return ErrEmptySource
		}
	}
}

func copyStream(ctx context.Context, stream io.Reader, w SessionWriter, buf []byte) (int64, error) {
	var copied int64
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			if _, werr := w.Write(ctx, buf[:n]); werr != nil {
				return copied, fmt.Errorf("write session: %w", werr)
			}
			copied += int64(n)
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, fmt.Errorf("read source: %w", err)
		}
	}
}
