// SPDX-License-Identifier: MIT
//
// Package frame converts between 16-bit PCM byte buffers and normalized
// float64 frames in [-1, 1].
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// BytesPerSample is the width of one 16-bit PCM sample.
const BytesPerSample = 2

// scale maps int16 full scale to 1.0.
const scale = 32768.0

var (
	// ErrSizeMismatch is returned for PCM with an odd byte count and for
	// destinations of the wrong length.
	ErrSizeMismatch = errors.New("frame: size mismatch")
	// ErrInvalidSampleRate is returned by NewFactory and by duration
	// conversions for a non-positive sample rate.
	ErrInvalidSampleRate = errors.New("frame: invalid sample rate")
	// ErrNegativeSampleSize is returned by ToBytesSamples for n < 0.
	ErrNegativeSampleSize = errors.New("frame: negative sample count")
)

// Factory converts frames for one byte order and sample rate. The zero
// value is not usable; use NewFactory or Default.
type Factory struct {
	Order      binary.ByteOrder
	SampleRate float64
}

// NewFactory returns a Factory. A nil order selects little-endian, the WAV
// byte order.
func NewFactory(order binary.ByteOrder, sampleRate float64) (*Factory, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: %f", ErrInvalidSampleRate, sampleRate)
	}
	if order == nil {
		order = binary.LittleEndian
	}
	return &Factory{Order: order, SampleRate: sampleRate}, nil
}

// Default returns a little-endian Factory for sampleRate.
func Default(sampleRate float64) *Factory {
	return &Factory{Order: binary.LittleEndian, SampleRate: sampleRate}
}

// Samples returns the number of samples held by n PCM bytes.
func Samples(n int) int { return n / BytesPerSample }

// ToFrame decodes 16-bit signed PCM into a new normalized frame.
func (f *Factory) ToFrame(pcm []byte) ([]float64, error) {
	out := make([]float64, len(pcm)/BytesPerSample)
	if err := f.ToFrameInto(out, pcm); err != nil {
		return nil, err
	}
	return out, nil
}

// ToFrameInto is ToFrame writing into dst, which must hold len(pcm)/2
// samples.
func (f *Factory) ToFrameInto(dst []float64, pcm []byte) error {
	if len(pcm)%BytesPerSample != 0 {
		return fmt.Errorf("%w: %d bytes is not a whole number of 16-bit samples", ErrSizeMismatch, len(pcm))
	}
	if len(dst) != len(pcm)/BytesPerSample {
		return fmt.Errorf("%w: destination %d, samples %d", ErrSizeMismatch, len(dst), len(pcm)/BytesPerSample)
	}
	for i := range dst {
		dst[i] = float64(int16(f.Order.Uint16(pcm[i*BytesPerSample:]))) / scale
	}
	return nil
}

// ToBytes encodes frame as 16-bit signed PCM, rounding and clamping to the
// int16 range.
func (f *Factory) ToBytes(frame []float64) []byte {
	out := make([]byte, len(frame)*BytesPerSample)
	_ = f.ToBytesInto(out, frame)
	return out
}

// ToBytesInto is ToBytes writing into dst, which must hold 2*len(frame)
// bytes.
func (f *Factory) ToBytesInto(dst []byte, frame []float64) error {
	if len(dst) != len(frame)*BytesPerSample {
		return fmt.Errorf("%w: destination %d bytes, frame %d samples", ErrSizeMismatch, len(dst), len(frame))
	}
	for i, v := range frame {
		f.Order.PutUint16(dst[i*BytesPerSample:], uint16(quantize(v)))
	}
	return nil
}

// ToBytesSamples encodes exactly n samples of frame, zero-padding or
// truncating as needed.
func (f *Factory) ToBytesSamples(frame []float64, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeSampleSize, n)
	}
	out := make([]byte, n*BytesPerSample)
	m := min(n, len(frame))
	_ = f.ToBytesInto(out[:m*BytesPerSample], frame[:m])
	return out, nil
}

// ToBytesDuration encodes d worth of samples at the factory sample rate,
// zero-padding or truncating frame.
func (f *Factory) ToBytesDuration(frame []float64, d time.Duration) ([]byte, error) {
	if f.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: %f", ErrInvalidSampleRate, f.SampleRate)
	}
	return f.ToBytesSamples(frame, SamplesForDuration(d, f.SampleRate))
}

// SamplesForDuration returns round(d * sampleRate).
func SamplesForDuration(d time.Duration, sampleRate float64) int {
	return int(math.Round(d.Seconds() * sampleRate))
}

// FromInt16 normalizes integer samples, as delivered by capture devices.
func FromInt16(samples []int16) []float64 {
	out := make([]float64, len(samples))
	_ = FromInt16Into(out, samples)
	return out
}

// FromInt16Into is FromInt16 writing into dst, which must match samples in
// length. It does not allocate.
func FromInt16Into(dst []float64, samples []int16) error {
	if len(dst) != len(samples) {
		return fmt.Errorf("%w: destination %d, samples %d", ErrSizeMismatch, len(dst), len(samples))
	}
	for i, s := range samples {
		dst[i] = float64(s) / scale
	}
	return nil
}

// ToInt16 quantizes a normalized frame.
func ToInt16(frame []float64) []int16 {
	out := make([]int16, len(frame))
	for i, v := range frame {
		out[i] = quantize(v)
	}
	return out
}

func quantize(v float64) int16 {
	s := math.Round(v * scale)
	switch {
	case s > math.MaxInt16:
		return math.MaxInt16
	case s < math.MinInt16:
		return math.MinInt16
	case math.IsNaN(s):
		return 0
	}
	return int16(s)
}
