// ABOUTME: Stereo WAV I/Q recorder with I on the left and Q on the right
// ABOUTME: Samples are scaled back to 16-bit before encoding
package sink

import (
	"fmt"
	"log/slog"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAV records I on the left channel and Q on the right, 16-bit PCM.
type WAV struct {
	logger     *slog.Logger
	file       *os.File
	encoder    *wav.Encoder
	buf        *goaudio.IntBuffer
	sampleRate uint
}

func NewWAV(path string, sampleRate uint) (*WAV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav: %w", err)
	}

	encoder := wav.NewEncoder(f, int(sampleRate), 16, 2, 1)

	logger := slog.Default().With("sink", path)
	logger.Debug("recording I/Q", "sampleRate", sampleRate)

	return &WAV{
		logger:  logger,
		file:    f,
		encoder: encoder,
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				SampleRate:  int(sampleRate),
				NumChannels: 2,
			},
			SourceBitDepth: 16,
		},
		sampleRate: sampleRate,
	}, nil
}

func (w *WAV) WriteIQ(samples []complex64) (int, error) {
	w.buf.Data = w.buf.Data[:0]
	for _, s := range samples {
		w.buf.Data = append(w.buf.Data, int(toInt16(real(s))), int(toInt16(imag(s))))
	}

	if err := w.encoder.Write(w.buf); err != nil {
		return 0, fmt.Errorf("write wav: %w", err)
	}
	return len(samples), nil
}

func (w *WAV) SampleRate() uint {
	return w.sampleRate
}

// Close finalises the WAV header; the file is only valid afterwards.
func (w *WAV) Close() error {
	if err := w.encoder.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return w.file.Close()
}
