// ABOUTME: Fixed period geometry shared by the ring, the drain engine and the FIR
// ABOUTME: Also carries the hardware parameters each endpoint advertises to the host
package period

import "encoding/binary"

const (
	Bytes       = 256
	Count       = 8
	BufferBytes = Bytes * Count
	Samples     = Bytes / 2

	// IQBytes is the size of one mono period after Hilbert expansion.
	IQBytes = 2 * Bytes

	RateMin = 8000
	RateMax = 48000
)

// HWParams mirrors what an endpoint negotiates with the host once at registration.
type HWParams struct {
	Channels    int
	RateMin     int
	RateMax     int
	PeriodBytes int
	PeriodsMin  int
	PeriodsMax  int
	BufferBytes int
}

// FrameBytes is the size of one S16_LE frame for this channel count.
func (p HWParams) FrameBytes() int {
	return p.Channels * 2
}

var (
	StereoParams = HWParams{
		Channels:    2,
		RateMin:     RateMin,
		RateMax:     RateMax,
		PeriodBytes: Bytes,
		PeriodsMin:  1,
		PeriodsMax:  Count,
		BufferBytes: BufferBytes,
	}

	MonoParams = HWParams{
		Channels:    1,
		RateMin:     RateMin,
		RateMax:     RateMax,
		PeriodBytes: Bytes / 2,
		PeriodsMin:  1,
		PeriodsMax:  Count * 2,
		BufferBytes: BufferBytes,
	}
)

// Decode reads little-endian int16 samples from src into dst.
// It stops at whichever of the two runs out first.
func Decode(dst []int16, src []byte) int {
	n := len(src) / 2
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = int16(binary.LittleEndian.Uint16(src[2*i:]))
	}
	return n
}

// PutIQ writes the i-th interleaved (I, Q) pair into dst.
func PutIQ(dst []byte, i int, in, quad int16) {
	binary.LittleEndian.PutUint16(dst[4*i:], uint16(in))
	binary.LittleEndian.PutUint16(dst[4*i+2:], uint16(quad))
}
