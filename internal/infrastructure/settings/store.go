// ABOUTME: Key/value store for the RF pass-through settings, frequency and harmonic
// ABOUTME: Values are read and written as decimal text, like the original sysfs files
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/harper/rpitx-bridge/internal/domain"
)

const (
	Frequency = "frequency"
	Harmonic  = "harmonic"

	DefaultFrequency = 14000000
	DefaultHarmonic  = 1
)

var (
	ErrUnknownSetting = errors.New("unknown setting")
	ErrInvalidValue   = errors.New("invalid value")
)

type Store struct {
	mu     sync.RWMutex
	values map[string]uint32
}

func New(frequency, harmonic uint32) *Store {
	return &Store{
		values: map[string]uint32{
			Frequency: frequency,
			Harmonic:  harmonic,
		},
	}
}

func NewDefault() *Store {
	return New(DefaultFrequency, DefaultHarmonic)
}

// Names lists the settings in a stable order.
func (s *Store) Names() []string {
	return []string{Frequency, Harmonic}
}

// Show renders a setting as decimal text with a trailing newline.
func (s *Store) Show(name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSetting, name)
	}
	return fmt.Sprintf("%d\n", v), nil
}

// Store parses the leading decimal integer of text. Anything after the
// digits is ignored; text without leading digits leaves the value alone.
func (s *Store) Store(name, text string) error {
	v, err := parseLeading(text)
	if err != nil {
		return fmt.Errorf("store %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, name)
	}
	s.values[name] = v
	return nil
}

func parseLeading(text string) (uint32, error) {
	text = strings.TrimSpace(text)
	end := 0
	for end < len(text) && text[end] >= '0' && text[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidValue, text)
	}

	v, err := strconv.ParseUint(text[:end], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidValue, text)
	}
	return uint32(v), nil
}

func (s *Store) Tuning() domain.Tuning {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Tuning{
		Frequency: s.values[Frequency],
		Harmonic:  s.values[Harmonic],
	}
}

// Fetch implements domain.TuningProvider for an in-process transmitter.
func (s *Store) Fetch(ctx context.Context) (domain.Tuning, error) {
	return s.Tuning(), nil
}
