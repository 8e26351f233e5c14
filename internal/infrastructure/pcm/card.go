// ABOUTME: In-process host audio card exposing the sendiq and usbdata playback substreams
// ABOUTME: Each open produces a Session that a producer writes and the drain engine reads
package pcm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/harper/rpitx-bridge/internal/domain/drain"
	"github.com/harper/rpitx-bridge/internal/domain/endpoint"
	"github.com/harper/rpitx-bridge/internal/domain/period"
	"github.com/harper/rpitx-bridge/internal/infrastructure/ring"
)

const CardName = "rpitx"

// Card owns one preallocated ring per substream.
type Card struct {
	engine *drain.Engine
	logger *slog.Logger
	rings  map[endpoint.Endpoint]*ring.Buffer

	mu       sync.Mutex
	sessions map[endpoint.Endpoint]*Session
}

func NewCard(engine *drain.Engine, logger *slog.Logger) *Card {
	if logger == nil {
		logger = slog.Default()
	}
	return &Card{
		engine: engine,
		logger: logger.With("card", CardName),
		rings: map[endpoint.Endpoint]*ring.Buffer{
			endpoint.Stereo: ring.New(period.BufferBytes),
			endpoint.Mono:   ring.New(period.BufferBytes),
		},
		sessions: make(map[endpoint.Endpoint]*Session),
	}
}

// Open starts a playback session on ep. It fails with endpoint.ErrBusy
// while any endpoint is open.
func (c *Card) Open(ep endpoint.Endpoint) (*Session, error) {
	buf, ok := c.rings[ep]
	if !ok {
		return nil, fmt.Errorf("open %s: no such substream", ep)
	}

	id := uuid.New()
	s := &Session{
		id:       id,
		endpoint: ep,
		params:   ep.Params(),
		buf:      buf,
		card:     c,
		closed:   make(chan struct{}),
		logger:   c.logger.With("endpoint", ep, "session uuid", id),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.engine.Open(ep, s); err != nil {
		return nil, fmt.Errorf("open %s: %w", ep, err)
	}

	// The ring is empty since the last release, so a drain racing this
	// rewind only sees an underrun. Producer data has to land where the
	// engine will read next.
	buf.Rewind(c.engine.Cursor())
	c.sessions[ep] = s

	s.logger.Debug("session opened", "params", s.params)
	return s, nil
}

// Session returns the open session on ep, if any.
func (c *Card) Session(ep endpoint.Endpoint) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[ep]
}

func (c *Card) release(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessions[s.endpoint] != s {
		return
	}
	delete(c.sessions, s.endpoint)
	c.engine.Close(s.endpoint)
	s.buf.Rewind(c.engine.Cursor())
}

// Session is the host-side stream bound to an open endpoint.
type Session struct {
	id       uuid.UUID
	endpoint endpoint.Endpoint
	params   period.HWParams
	buf      *ring.Buffer
	card     *Card
	logger   *slog.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

func (s *Session) ID() string {
	return s.id.String()
}

func (s *Session) Endpoint() endpoint.Endpoint {
	return s.endpoint
}

func (s *Session) Params() period.HWParams {
	return s.params
}

func (s *Session) AvailableUnreadBytes() int {
	return s.buf.Available()
}

func (s *Session) CopyAt(dst []byte, offset int) {
	s.buf.CopyAt(dst, offset)
}

func (s *Session) NotifyPeriodElapsed() {
	s.buf.Release(period.Bytes)
}

// Pointer is the drain position in frames of this session's format.
func (s *Session) Pointer() int {
	return s.card.engine.Cursor() / s.params.FrameBytes()
}

// Write copies all of p into the ring, waiting for drains to free space.
// It returns early when ctx ends or the session is closed.
func (s *Session) Write(ctx context.Context, p []byte) (int, error) {
	var total int
	for {
		select {
		case <-s.closed:
			return total, fmt.Errorf("write %s: session closed", s.endpoint)
		default:
		}

		n := s.buf.Write(p[total:])
		total += n
		if total == len(p) {
			return total, nil
		}

		select {
		case <-s.buf.Space():
		case <-s.closed:
			return total, fmt.Errorf("write %s: session closed", s.endpoint)
		case <-ctx.Done():
			return total, ctx.Err()
		}
	}
}

// Close ends the session and frees the endpoint for the next open.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.card.release(s)
		s.logger.Debug("session closed")
	})
	return nil
}
