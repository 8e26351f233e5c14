// ABOUTME: WAV file producer decoding 16-bit PCM into S16_LE bytes
// ABOUTME: Channel count must match the endpoint it feeds
package source

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSource streams the PCM payload of a 16-bit WAV file as S16_LE bytes.
type WAVSource struct {
	path     string
	channels int
}

// NewWAV checks that the file at path is 16-bit PCM with the given channel count.
func NewWAV(path string, channels int) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("decode wav %s: %w", path, errors.Join(errors.New("invalid file"), dec.Err()))
	}
	if dec.BitDepth != 16 {
		return nil, fmt.Errorf("wav %s: expected 16-bit samples, got %d", path, dec.BitDepth)
	}
	if int(dec.NumChans) != channels {
		return nil, fmt.Errorf("wav %s: expected %d channels, got %d", path, channels, dec.NumChans)
	}

	return &WAVSource{path: path, channels: channels}, nil
}

func (s *WAVSource) Connect(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}

	dec := wav.NewDecoder(f)
	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek pcm: %w", err)
	}

	return &wavReader{
		file: f,
		dec:  dec,
		buf: &goaudio.IntBuffer{
			Format: dec.Format(),
			Data:   make([]int, 4096),
		},
	}, nil
}

type wavReader struct {
	file    *os.File
	dec     *wav.Decoder
	buf     *goaudio.IntBuffer
	pending []byte
}

func (r *wavReader) Read(p []byte) (int, error) {
	if len(r.pending) == 0 {
		r.buf.Data = r.buf.Data[:cap(r.buf.Data)]
		n, err := r.dec.PCMBuffer(r.buf)
		if err != nil {
			return 0, fmt.Errorf("decode pcm: %w", err)
		}
		if n == 0 {
			return 0, io.EOF
		}

		out := make([]byte, 2*n)
		for i, v := range r.buf.Data[:n] {
			binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v)))
		}
		r.pending = out
	}

	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *wavReader) Close() error {
	return r.file.Close()
}
