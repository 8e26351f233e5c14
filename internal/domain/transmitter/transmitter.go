// ABOUTME: Transmitter daemon reading I/Q periods from the device node into a modulator
// ABOUTME: Re-reads tuning while idle and restarts the modulator when it changes
package transmitter

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harper/rpitx-bridge/internal/domain"
)

// IQBurst is the number of int16 values the daemon asks for per read.
const IQBurst = 4000

// Modulator consumes complex baseband samples at a fixed tuning.
type Modulator interface {
	WriteIQ(samples []complex64) (int, error)
	SampleRate() uint
	Close() error
}

// ModulatorFactory opens a modulator for one tuning.
type ModulatorFactory func(tuning domain.Tuning) (Modulator, error)

type Config struct {
	ReadBytes    int
	IdleInterval time.Duration
	ChunkBusCap  int
}

type Stats struct {
	Reads     uint64        `json:"reads"`
	Bytes     uint64        `json:"bytes"`
	Samples   uint64        `json:"samples"`
	Retunes   uint64        `json:"retunes"`
	IdlePolls uint64        `json:"idle_polls"`
	Tuning    domain.Tuning `json:"tuning"`
	Running   bool          `json:"running"`
}

type Transmitter struct {
	cfg     Config
	reader  io.Reader
	tuning  domain.TuningProvider
	factory ModulatorFactory
	logger  *slog.Logger

	modulator Modulator
	current   atomic.Pointer[domain.Tuning]

	reads     atomic.Uint64
	bytes     atomic.Uint64
	samples   atomic.Uint64
	retunes   atomic.Uint64
	idlePolls atomic.Uint64
	running   atomic.Bool

	clients   map[*Client]struct{}
	clientsMu sync.Mutex

	chunkBus chan []byte

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Client struct {
	ID string
	ch chan []byte
}

func New(cfg Config, reader io.Reader, tuning domain.TuningProvider, factory ModulatorFactory, logger *slog.Logger) *Transmitter {
	if cfg.ReadBytes <= 0 {
		cfg.ReadBytes = IQBurst * 2
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = 10 * time.Millisecond
	}
	if cfg.ChunkBusCap <= 0 {
		cfg.ChunkBusCap = 32
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Transmitter{
		cfg:      cfg,
		reader:   reader,
		tuning:   tuning,
		factory:  factory,
		logger:   logger.With("component", "transmitter"),
		clients:  make(map[*Client]struct{}),
		chunkBus: make(chan []byte, cfg.ChunkBusCap),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (t *Transmitter) Running() bool {
	return t.running.Load()
}

func (t *Transmitter) Tuning() domain.Tuning {
	p := t.current.Load()
	if p == nil {
		return domain.Tuning{}
	}
	return *p
}

func (t *Transmitter) Stats() Stats {
	return Stats{
		Reads:     t.reads.Load(),
		Bytes:     t.bytes.Load(),
		Samples:   t.samples.Load(),
		Retunes:   t.retunes.Load(),
		IdlePolls: t.idlePolls.Load(),
		Tuning:    t.Tuning(),
		Running:   t.Running(),
	}
}

func (t *Transmitter) AddClient(c *Client) {
	t.clientsMu.Lock()
	t.clients[c] = struct{}{}
	t.clientsMu.Unlock()
}

func (t *Transmitter) RemoveClient(c *Client) {
	t.clientsMu.Lock()
	delete(t.clients, c)
	t.clientsMu.Unlock()
}

func (t *Transmitter) ClientCount() int {
	t.clientsMu.Lock()
	defer t.clientsMu.Unlock()
	return len(t.clients)
}

// Subscribe returns a channel receiving a copy of every non-empty read.
func (t *Transmitter) Subscribe(c *Client) <-chan []byte {
	c.ch = make(chan []byte, 64)
	t.AddClient(c)
	return c.ch
}

func (t *Transmitter) Unsubscribe(c *Client) {
	t.RemoveClient(c)
	if c.ch != nil {
		close(c.ch)
		c.ch = nil
	}
}

// Start fetches the initial tuning, opens the first modulator and launches
// the reader and fan-out goroutines.
func (t *Transmitter) Start() error {
	tuning, err := t.tuning.Fetch(t.ctx)
	if err != nil {
		return fmt.Errorf("fetch tuning: %w", err)
	}

	mod, err := t.factory(tuning)
	if err != nil {
		return fmt.Errorf("open modulator: %w", err)
	}
	t.modulator = mod
	t.current.Store(&tuning)
	t.running.Store(true)

	t.logger.Info("transmitter started", "frequency", tuning.Frequency, "harmonic", tuning.Harmonic, "sampleRate", mod.SampleRate())

	t.wg.Add(2)
	go t.runReader()
	go t.runFanOut()

	return nil
}

func (t *Transmitter) Shutdown() error {
	t.cancel()
	t.wg.Wait()
	t.running.Store(false)

	if t.modulator == nil {
		return nil
	}
	err := t.modulator.Close()
	t.modulator = nil
	return err
}

func (t *Transmitter) runReader() {
	defer t.wg.Done()
	defer t.running.Store(false)

	buf := make([]byte, t.cfg.ReadBytes)
	iq := make([]complex64, t.cfg.ReadBytes/4)

	for {
		select {
		case <-t.ctx.Done():
			return
		default:
		}

		n, err := t.reader.Read(buf)
		if n > 0 {
			t.reads.Add(1)
			t.bytes.Add(uint64(n))

			count := ToComplex(iq, buf[:n])
			if _, err := t.modulator.WriteIQ(iq[:count]); err != nil {
				t.logger.Error("modulator write failed", "err", err)
			}
			t.samples.Add(uint64(count))

			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			select {
			case t.chunkBus <- chunk:
			case <-t.ctx.Done():
				return
			}
			continue
		}

		if err != nil && !errors.Is(err, io.EOF) {
			t.logger.Error("device read failed", "err", err)
			return
		}

		t.idlePolls.Add(1)
		timer := time.NewTimer(t.cfg.IdleInterval)
		select {
		case <-t.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := t.retuneIfChanged(); err != nil {
			t.logger.Error("retune failed", "err", err)
			return
		}
	}
}

// retuneIfChanged swaps the modulator when frequency or harmonic moved.
// A failed fetch keeps the current tuning.
func (t *Transmitter) retuneIfChanged() error {
	tuning, err := t.tuning.Fetch(t.ctx)
	if err != nil {
		t.logger.Warn("tuning fetch failed", "err", err)
		return nil
	}
	if tuning == t.Tuning() {
		return nil
	}

	var closeErr error
	if t.modulator != nil {
		closeErr = t.modulator.Close()
		t.modulator = nil
	}

	mod, err := t.factory(tuning)
	if err != nil {
		return errors.Join(closeErr, fmt.Errorf("open modulator: %w", err))
	}
	t.modulator = mod
	t.current.Store(&tuning)
	t.retunes.Add(1)

	t.logger.Info("retuned", "frequency", tuning.Frequency, "harmonic", tuning.Harmonic)
	if closeErr != nil {
		t.logger.Warn("closing previous modulator", "err", closeErr)
	}
	return nil
}

func (t *Transmitter) runFanOut() {
	defer t.wg.Done()

	for {
		select {
		case <-t.ctx.Done():
			return
		case chunk := <-t.chunkBus:
			t.clientsMu.Lock()
			for client := range t.clients {
				if client.ch != nil {
					select {
					case client.ch <- chunk:
					default:
						// Client buffer full, skip this chunk
					}
				}
			}
			t.clientsMu.Unlock()
		}
	}
}

// ToComplex converts interleaved S16_LE (I, Q) pairs into dst, scaled to
// [-1, 1). It returns the number of complex samples written.
func ToComplex(dst []complex64, src []byte) int {
	count := len(src) / 4
	if count > len(dst) {
		count = len(dst)
	}
	for i := 0; i < count; i++ {
		in := int16(binary.LittleEndian.Uint16(src[4*i:]))
		quad := int16(binary.LittleEndian.Uint16(src[4*i+2:]))
		dst[i] = complex(float32(in)/32768, float32(quad)/32768)
	}
	return count
}
