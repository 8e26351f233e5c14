// ABOUTME: Bridge manager for lifecycle and lookup
// ABOUTME: Wires engine, card, device node, transmitter and producer from config
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/harper/rpitx-bridge/internal/application/config"
	"github.com/harper/rpitx-bridge/internal/domain"
	"github.com/harper/rpitx-bridge/internal/domain/drain"
	"github.com/harper/rpitx-bridge/internal/domain/endpoint"
	"github.com/harper/rpitx-bridge/internal/domain/transmitter"
	"github.com/harper/rpitx-bridge/internal/infrastructure/chardev"
	"github.com/harper/rpitx-bridge/internal/infrastructure/pcm"
	"github.com/harper/rpitx-bridge/internal/infrastructure/settings"
	"github.com/harper/rpitx-bridge/internal/infrastructure/sink"
	"github.com/harper/rpitx-bridge/internal/infrastructure/source"
	"github.com/harper/rpitx-bridge/internal/infrastructure/tuning"
)

type Manager struct {
	engine      *drain.Engine
	card        *pcm.Card
	device      *chardev.Device
	settings    *settings.Store
	transmitter *transmitter.Transmitter

	source     domain.StreamSource
	sourceEP   endpoint.Endpoint
	sourceLoop bool

	fifoPath string
	fifoPoll time.Duration

	logger *slog.Logger

	mu      sync.Mutex
	session *pcm.Session

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Manager, error) {
	ctx, cancel := context.WithCancel(context.Background())

	engine := drain.New(logger)
	card := pcm.NewCard(engine, logger)
	device := chardev.New(engine)
	store := settings.New(cfg.Settings.Frequency, cfg.Settings.Harmonic)

	mgr := &Manager{
		engine:   engine,
		card:     card,
		device:   device,
		settings: store,
		fifoPath: cfg.Device.FIFOPath,
		fifoPoll: time.Duration(cfg.Device.PollMs) * time.Millisecond,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}

	if cfg.Transmitter.Enabled {
		var provider domain.TuningProvider = store
		if cfg.Tuning.URL != "" {
			provider = tuning.NewHTTP(tuning.HTTPConfig{
				URL:     cfg.Tuning.URL,
				Timeout: time.Duration(cfg.Tuning.TimeoutMs) * time.Millisecond,
			})
		}

		factory, err := sink.NewFactory(cfg.Transmitter.Sink.Kind, cfg.Transmitter.Sink.Dir, cfg.Transmitter.SampleRate)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("create sink: %w", err)
		}

		txCfg := transmitter.Config{
			ReadBytes:    cfg.Transmitter.ReadBytes,
			IdleInterval: time.Duration(cfg.Transmitter.IdleMs) * time.Millisecond,
			ChunkBusCap:  32,
		}
		mgr.transmitter = transmitter.New(txCfg, device, provider, factory, logger)
	}

	switch cfg.Source.Kind {
	case "wav", "http":
		ep, err := endpoint.Parse(cfg.Source.Endpoint)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("source endpoint: %w", err)
		}
		mgr.sourceEP = ep
		mgr.sourceLoop = cfg.Source.Loop

		if cfg.Source.Kind == "wav" {
			src, err := source.NewWAV(cfg.Source.Path, ep.Params().Channels)
			if err != nil {
				cancel()
				return nil, fmt.Errorf("create wav source: %w", err)
			}
			mgr.source = src
		} else {
			mgr.source = source.NewHTTP(source.HTTPConfig{
				URL:            cfg.Source.URL,
				ConnectTimeout: time.Duration(cfg.Source.ConnectTimeoutMs) * time.Millisecond,
				Headers:        cfg.Source.Headers,
			})
		}
	}

	return mgr, nil
}

func (m *Manager) Engine() *drain.Engine {
	return m.engine
}

func (m *Manager) Card() *pcm.Card {
	return m.card
}

func (m *Manager) Device() *chardev.Device {
	return m.device
}

func (m *Manager) Settings() *settings.Store {
	return m.settings
}

// Transmitter returns nil when the transmitter is disabled.
func (m *Manager) Transmitter() *transmitter.Transmitter {
	return m.transmitter
}

// Session returns the producer session currently feeding the card, if any.
func (m *Manager) Session() *pcm.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

func (m *Manager) Start() error {
	if m.transmitter != nil {
		if err := m.transmitter.Start(); err != nil {
			return fmt.Errorf("start transmitter: %w", err)
		}
	}

	if m.source != nil {
		sess, err := m.card.Open(m.sourceEP)
		if err != nil {
			return fmt.Errorf("open producer session: %w", err)
		}
		m.mu.Lock()
		m.session = sess
		m.mu.Unlock()

		m.wg.Add(1)
		go m.runFeed(sess)
	}

	if m.fifoPath != "" {
		m.wg.Add(1)
		go m.runFIFO()
	}

	return nil
}

func (m *Manager) runFeed(sess *pcm.Session) {
	defer m.wg.Done()

	logger := m.logger.With("endpoint", m.sourceEP, "session uuid", sess.ID())
	logger.Info("producer started", "loop", m.sourceLoop)

	err := source.Feed(m.ctx, m.source, sess, m.sourceLoop)
	switch {
	case err == nil:
		logger.Info("producer finished")
	case errors.Is(err, context.Canceled) || m.ctx.Err() != nil:
		logger.Debug("producer cancelled")
	default:
		logger.Error("producer failed", "error", err)
	}

	m.mu.Lock()
	if m.session == sess {
		m.session = nil
	}
	m.mu.Unlock()
	sess.Close()
}

func (m *Manager) runFIFO() {
	defer m.wg.Done()

	logger := m.logger.With("fifo", m.fifoPath)
	logger.Info("exporting device node")

	err := chardev.ExportFIFO(m.ctx, m.fifoPath, m.device, m.fifoPoll, m.logger)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("fifo export failed", "error", err)
	}
}

func (m *Manager) Shutdown() error {
	m.cancel()

	m.mu.Lock()
	sess := m.session
	m.mu.Unlock()
	var errs []error
	if sess != nil {
		errs = append(errs, sess.Close())
	}

	m.wg.Wait()

	if m.transmitter != nil {
		if err := m.transmitter.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("shutdown transmitter: %w", err))
		}
	}

	return errors.Join(errs...)
}
