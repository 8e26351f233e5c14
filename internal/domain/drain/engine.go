// ABOUTME: Period drain engine pulling one period at a time out of the host ring
// ABOUTME: Routes mono periods through the Hilbert history and never blocks
package drain

import (
	"log/slog"
	"sync"

	"github.com/harper/rpitx-bridge/internal/domain"
	"github.com/harper/rpitx-bridge/internal/domain/endpoint"
	"github.com/harper/rpitx-bridge/internal/domain/hilbert"
	"github.com/harper/rpitx-bridge/internal/domain/period"
)

type Status int

const (
	// Drained means one full period was consumed and written out.
	Drained Status = iota
	// ShortRequest means the destination could not hold a whole output period.
	ShortRequest
	// Idle means no endpoint is open.
	Idle
	// Underrun means less than a period was waiting in the ring.
	Underrun
)

func (s Status) String() string {
	switch s {
	case Drained:
		return "drained"
	case ShortRequest:
		return "short_request"
	case Idle:
		return "idle"
	case Underrun:
		return "underrun"
	}
	return "unknown"
}

// Result of one drain attempt. Consumed counts ring bytes, Produced counts
// bytes written to the destination; they differ on the mono endpoint.
type Result struct {
	Status   Status
	Endpoint endpoint.Endpoint
	Consumed int
	Produced int
}

type Stats struct {
	Periods       uint64 `json:"periods"`
	Underruns     uint64 `json:"underruns"`
	ShortRequests uint64 `json:"short_requests"`
	IdlePolls     uint64 `json:"idle_polls"`
}

// Engine is the per-device drain state: gate, cursor and FIR history.
type Engine struct {
	mu      sync.Mutex
	gate    endpoint.Gate
	cursor  Cursor
	history hilbert.History
	raw     [period.Bytes]byte
	stats   Stats
	logger  *slog.Logger
}

func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger.With("component", "drain")}
}

// Open activates e with the given host session. Opening the mono endpoint
// clears the FIR history so nothing from a previous session leaks in.
func (e *Engine) Open(ep endpoint.Endpoint, session domain.HostSession) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.gate.Open(ep, session); err != nil {
		return err
	}
	if ep == endpoint.Mono {
		e.history.Reset()
	}

	e.logger.Info("endpoint opened", "endpoint", ep, "session", session.ID(), "cursor", e.cursor.Offset())
	return nil
}

func (e *Engine) Close(ep endpoint.Endpoint) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gate.Close(ep)
	e.logger.Info("endpoint closed", "endpoint", ep)
}

// Active reports the endpoint currently open, if any.
func (e *Engine) Active() endpoint.Endpoint {
	ep, _ := e.gate.Active()
	return ep
}

func (e *Engine) Cursor() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor.Offset()
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Drain attempts to move one period from the active session into dst.
// Every failure is a zero Result; the caller polls again.
func (e *Engine) Drain(dst []byte) Result {
	if len(dst) < period.Bytes {
		e.mu.Lock()
		e.stats.ShortRequests++
		e.mu.Unlock()
		return Result{Status: ShortRequest}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ep, session := e.gate.Active()
	if ep == endpoint.None || session == nil {
		e.stats.IdlePolls++
		return Result{Status: Idle}
	}

	want := period.Bytes
	if ep == endpoint.Mono {
		want = period.IQBytes
	}
	if len(dst) < want {
		e.stats.ShortRequests++
		return Result{Status: ShortRequest, Endpoint: ep}
	}

	if session.AvailableUnreadBytes() < period.Bytes {
		e.stats.Underruns++
		return Result{Status: Underrun, Endpoint: ep}
	}

	if ep == endpoint.Stereo {
		session.CopyAt(dst[:period.Bytes], e.cursor.Offset())
	} else {
		session.CopyAt(e.raw[:], e.cursor.Offset())
		e.history.Process(dst, e.raw[:])
	}

	e.cursor.Advance()
	session.NotifyPeriodElapsed()
	e.stats.Periods++

	e.logger.Debug("period drained", "endpoint", ep, "cursor", e.cursor.Offset())
	return Result{Status: Drained, Endpoint: ep, Consumed: period.Bytes, Produced: want}
}
