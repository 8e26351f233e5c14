// ABOUTME: Parquet I/Q recorder writing one row per complex sample
// ABOUTME: Tuning and sample rate go into the file's key/value metadata
package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/segmentio/parquet-go"

	"github.com/harper/rpitx-bridge/internal/domain"
)

// IQRow is one complex sample as stored in the capture file.
type IQRow struct {
	I int32 `parquet:"I"`
	Q int32 `parquet:"Q"`
}

type Parquet struct {
	file       *os.File
	writer     *parquet.GenericWriter[IQRow]
	rows       []IQRow
	sampleRate uint
}

func NewParquet(path string, sampleRate uint, tuning domain.Tuning) (*Parquet, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create parquet: %w", err)
	}

	tuningStr, _ := json.Marshal(tuning)

	writer := parquet.NewGenericWriter[IQRow](f,
		parquet.KeyValueMetadata("tuning", string(tuningStr)),
		parquet.KeyValueMetadata("sample_rate", strconv.FormatUint(uint64(sampleRate), 10)),
	)

	return &Parquet{
		file:       f,
		writer:     writer,
		sampleRate: sampleRate,
	}, nil
}

func (p *Parquet) WriteIQ(samples []complex64) (int, error) {
	p.rows = p.rows[:0]
	for _, s := range samples {
		p.rows = append(p.rows, IQRow{
			I: int32(toInt16(real(s))),
			Q: int32(toInt16(imag(s))),
		})
	}

	n, err := p.writer.Write(p.rows)
	if err != nil {
		return n, fmt.Errorf("write parquet: %w", err)
	}
	return n, nil
}

func (p *Parquet) SampleRate() uint {
	return p.sampleRate
}

func (p *Parquet) Close() error {
	if err := p.writer.Close(); err != nil {
		p.file.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return p.file.Close()
}
