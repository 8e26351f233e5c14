// ABOUTME: Tests for the endpoint exclusivity gate
// ABOUTME: Verifies busy rejection, idempotent close and session binding
package endpoint

import (
	"errors"
	"testing"
)

type fakeSession struct{ id string }

func (f *fakeSession) ID() string                { return f.id }
func (f *fakeSession) AvailableUnreadBytes() int { return 0 }
func (f *fakeSession) CopyAt(dst []byte, _ int)  {}
func (f *fakeSession) NotifyPeriodElapsed()      {}

func TestGate_OpenTwiceBusy(t *testing.T) {
	for _, first := range []Endpoint{Stereo, Mono} {
		for _, second := range []Endpoint{Stereo, Mono} {
			var g Gate
			if err := g.Open(first, &fakeSession{id: "a"}); err != nil {
				t.Fatalf("open %s: %v", first, err)
			}
			if err := g.Open(second, &fakeSession{id: "b"}); !errors.Is(err, ErrBusy) {
				t.Errorf("open %s after %s: expected ErrBusy, got %v", second, first, err)
			}
		}
	}
}

func TestGate_StereoBlocksMono(t *testing.T) {
	var g Gate
	if err := g.Open(Stereo, &fakeSession{id: "iq"}); err != nil {
		t.Fatalf("open stereo: %v", err)
	}
	if err := g.Open(Mono, &fakeSession{id: "usb"}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	e, s := g.Active()
	if e != Stereo || s.ID() != "iq" {
		t.Errorf("expected stereo/iq to stay active, got %s/%v", e, s)
	}
}

func TestGate_CloseReopen(t *testing.T) {
	var g Gate
	if err := g.Open(Mono, &fakeSession{id: "usb"}); err != nil {
		t.Fatalf("open mono: %v", err)
	}

	// Close clears everything, whichever endpoint it names
	g.Close(Stereo)
	if e, _ := g.Active(); e != None {
		t.Fatalf("expected no active endpoint, got %s", e)
	}
	g.Close(Stereo)

	if err := g.Open(Stereo, &fakeSession{id: "iq"}); err != nil {
		t.Fatalf("reopen after close: %v", err)
	}
	e, s := g.Active()
	if e != Stereo || s.ID() != "iq" {
		t.Errorf("expected stereo/iq, got %s/%v", e, s)
	}
}

func TestGate_OpenNone(t *testing.T) {
	var g Gate
	if err := g.Open(None, &fakeSession{}); err == nil {
		t.Error("expected error opening None")
	}
}

func TestParse(t *testing.T) {
	if e, err := Parse("usbdata"); err != nil || e != Mono {
		t.Errorf("usbdata: got %s, %v", e, err)
	}
	if e, err := Parse("stereo"); err != nil || e != Stereo {
		t.Errorf("stereo: got %s, %v", e, err)
	}
	if _, err := Parse("quad"); err == nil {
		t.Error("expected error for unknown endpoint")
	}
	if Mono.Params().Channels != 1 || Stereo.Params().Channels != 2 {
		t.Error("unexpected channel counts")
	}
}
