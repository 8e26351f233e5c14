// ABOUTME: The two mutually exclusive audio sink endpoints and the gate between them
// ABOUTME: Only one endpoint may be open across the device; a second open fails with ErrBusy
package endpoint

import (
	"errors"
	"fmt"
	"sync"

	"github.com/harper/rpitx-bridge/internal/domain"
	"github.com/harper/rpitx-bridge/internal/domain/period"
)

// ErrBusy is returned when an endpoint is already open.
var ErrBusy = errors.New("endpoint busy")

type Endpoint int

const (
	None Endpoint = iota
	Stereo
	Mono
)

func (e Endpoint) String() string {
	switch e {
	case Stereo:
		return "sendiq"
	case Mono:
		return "usbdata"
	default:
		return "none"
	}
}

// Params returns the hardware parameters the endpoint advertises.
func (e Endpoint) Params() period.HWParams {
	if e == Mono {
		return period.MonoParams
	}
	return period.StereoParams
}

// Parse accepts the device names as well as "stereo" and "mono".
func Parse(s string) (Endpoint, error) {
	switch s {
	case "sendiq", "stereo":
		return Stereo, nil
	case "usbdata", "mono":
		return Mono, nil
	}
	return None, fmt.Errorf("unknown endpoint %q", s)
}

type binding struct {
	mu      sync.Mutex
	session domain.HostSession
}

// Gate tracks which endpoint is active. It performs no waiting: an open
// that loses simply fails and the caller decides whether to retry.
type Gate struct {
	mu       sync.Mutex
	stereo   bool
	mono     bool
	bindings [3]binding
}

func (g *Gate) Open(e Endpoint, session domain.HostSession) error {
	if e != Stereo && e != Mono {
		return fmt.Errorf("open %s: not an endpoint", e)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stereo || g.mono {
		return ErrBusy
	}

	b := &g.bindings[e]
	b.mu.Lock()
	b.session = session
	b.mu.Unlock()

	if e == Stereo {
		g.stereo = true
	} else {
		g.mono = true
	}
	return nil
}

// Close clears both activity flags and releases the session bound to e.
// Closing an endpoint that is not open is a no-op.
func (g *Gate) Close(e Endpoint) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stereo = false
	g.mono = false

	if e == Stereo || e == Mono {
		b := &g.bindings[e]
		b.mu.Lock()
		b.session = nil
		b.mu.Unlock()
	}
}

// Active reports the open endpoint and its session, or None.
func (g *Gate) Active() (Endpoint, domain.HostSession) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var e Endpoint
	switch {
	case g.stereo:
		e = Stereo
	case g.mono:
		e = Mono
	default:
		return None, nil
	}

	b := &g.bindings[e]
	b.mu.Lock()
	defer b.mu.Unlock()
	return e, b.session
}
