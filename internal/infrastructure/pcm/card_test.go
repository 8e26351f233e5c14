// ABOUTME: Tests for the in-process host audio card
// ABOUTME: Verifies open exclusivity, producer back-pressure and frame pointer reporting
package pcm

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harper/rpitx-bridge/internal/domain/drain"
	"github.com/harper/rpitx-bridge/internal/domain/endpoint"
	"github.com/harper/rpitx-bridge/internal/domain/period"
)

func TestCard_OpenBusy(t *testing.T) {
	card := NewCard(drain.New(nil), nil)

	s, err := card.Open(endpoint.Stereo)
	if err != nil {
		t.Fatalf("open stereo: %v", err)
	}

	if _, err := card.Open(endpoint.Mono); !errors.Is(err, endpoint.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	s.Close()
	s.Close()

	m, err := card.Open(endpoint.Mono)
	if err != nil {
		t.Fatalf("open mono after close: %v", err)
	}
	if card.Session(endpoint.Mono) != m {
		t.Error("expected mono session to be registered")
	}
	if m.Params().PeriodBytes != period.Bytes/2 {
		t.Errorf("unexpected mono period size %d", m.Params().PeriodBytes)
	}
}

func TestSession_WriteThenDrain(t *testing.T) {
	engine := drain.New(nil)
	card := NewCard(engine, nil)

	s, err := card.Open(endpoint.Stereo)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	data := bytes.Repeat([]byte{0xAB}, period.Bytes)
	if _, err := s.Write(context.Background(), data); err != nil {
		t.Fatalf("write: %v", err)
	}

	dst := make([]byte, period.Bytes)
	res := engine.Drain(dst)
	if res.Status != drain.Drained {
		t.Fatalf("expected drained, got %s", res.Status)
	}
	if !bytes.Equal(dst, data) {
		t.Error("drained bytes differ from written bytes")
	}
	if s.AvailableUnreadBytes() != 0 {
		t.Errorf("expected empty ring, got %d", s.AvailableUnreadBytes())
	}
	if s.Pointer() != period.Bytes/4 {
		t.Errorf("expected pointer %d frames, got %d", period.Bytes/4, s.Pointer())
	}
}

func TestSession_WriteWaitsForSpace(t *testing.T) {
	engine := drain.New(nil)
	card := NewCard(engine, nil)

	s, err := card.Open(endpoint.Stereo)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := s.Write(ctx, make([]byte, period.BufferBytes+period.Bytes))
		done <- err
	}()

	dst := make([]byte, period.Bytes)
	deadline := time.After(5 * time.Second)
	for {
		if engine.Drain(dst).Status == drain.Drained {
			break
		}
		select {
		case <-deadline:
			t.Fatal("ring never filled")
		case <-time.After(time.Millisecond):
		}
	}

	if err := <-done; err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestSession_WriteAfterClose(t *testing.T) {
	card := NewCard(drain.New(nil), nil)

	s, err := card.Open(endpoint.Mono)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.Close()

	if _, err := s.Write(context.Background(), []byte{1, 2}); err == nil {
		t.Error("expected write on closed session to fail")
	}
}

func TestCard_BusyOpenKeepsActiveData(t *testing.T) {
	engine := drain.New(nil)
	card := NewCard(engine, nil)

	s, err := card.Open(endpoint.Stereo)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	data := bytes.Repeat([]byte{0x5A}, period.Bytes*2)
	if _, err := s.Write(context.Background(), data); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := card.Open(endpoint.Stereo); !errors.Is(err, endpoint.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if _, err := card.Open(endpoint.Mono); !errors.Is(err, endpoint.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	if got := s.AvailableUnreadBytes(); got != period.Bytes*2 {
		t.Fatalf("expected %d unread bytes after busy open, got %d", period.Bytes*2, got)
	}
	if card.Session(endpoint.Stereo) != s {
		t.Error("busy open replaced the active session")
	}

	dst := make([]byte, period.Bytes)
	res := engine.Drain(dst)
	if res.Status != drain.Drained {
		t.Fatalf("expected drained, got %s", res.Status)
	}
	if !bytes.Equal(dst, data[:period.Bytes]) {
		t.Error("drained bytes differ from written bytes")
	}
}

func TestCard_ReopenStartsEmpty(t *testing.T) {
	engine := drain.New(nil)
	card := NewCard(engine, nil)

	s, err := card.Open(endpoint.Stereo)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.Write(context.Background(), make([]byte, period.Bytes)); err != nil {
		t.Fatalf("write: %v", err)
	}
	s.Close()

	s, err = card.Open(endpoint.Stereo)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	if got := s.AvailableUnreadBytes(); got != 0 {
		t.Errorf("expected empty ring after reopen, got %d", got)
	}
	if res := engine.Drain(make([]byte, period.Bytes)); res.Status != drain.Underrun {
		t.Errorf("expected underrun, got %s", res.Status)
	}
}
