// SPDX-License-Identifier: MIT
//
// Package wavio adapts WAV files to the byte-stream interfaces of the
// analysis pipeline: a Reader serving 16-bit little-endian mono PCM and a
// Writer encoding it back into a WAV container.
package wavio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	applog "github.com/ismaelmosquera/imrlib-sub001/internal/log"
)

var logger = applog.Component("WAV")

var (
	// ErrInvalidFile is returned for input that is not a decodable PCM WAV
	// stream or has no channels.
	ErrInvalidFile = errors.New("wavio: invalid WAV file")
	// ErrUnsupportedBits is returned for bit depths other than 8, 16, 24
	// and 32.
	ErrUnsupportedBits = errors.New("wavio: unsupported bit depth")
)

// Reader serves the first channel of a WAV file as 16-bit little-endian
// PCM. The file is decoded fully on open.
type Reader struct {
	sampleRate int
	channels   int
	bitDepth   int
	samples    int
	pcm        *bytes.Reader
}

// Compile-time check for the pipeline source interface.
var _ io.ReadCloser = (*Reader)(nil)

// OpenReader decodes the WAV file at path.
func OpenReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer file.Close()

	r, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Infof("Opened %s (SampleRate: %d Hz, Channels: %d, BitDepth: %d, Samples: %d)",
		path, r.sampleRate, r.channels, r.bitDepth, r.samples)
	return r, nil
}

// Decode reads a WAV container from rs.
func Decode(rs io.ReadSeeker) (*Reader, error) {
	decoder := wav.NewDecoder(rs)
	if !decoder.IsValidFile() {
		return nil, ErrInvalidFile
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("could not read PCM buffer: %w", err)
	}
	channels := buf.Format.NumChannels
	if channels <= 0 {
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidFile, channels)
	}

	shift, err := downshift(buf.SourceBitDepth)
	if err != nil {
		return nil, err
	}

	frames := len(buf.Data) / channels
	pcm := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		v := buf.Data[i*channels]
		if buf.SourceBitDepth == 8 {
			v -= 128 // 8-bit WAV is unsigned.
		}
		if shift > 0 {
			v >>= shift
		} else {
			v <<= -shift
		}
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16(v)))
	}

	return &Reader{
		sampleRate: buf.Format.SampleRate,
		channels:   channels,
		bitDepth:   buf.SourceBitDepth,
		samples:    frames,
		pcm:        bytes.NewReader(pcm),
	}, nil
}

// downshift returns the right shift that maps a sample of bitDepth to 16
// bits; negative values shift left.
func downshift(bitDepth int) (int, error) {
	switch bitDepth {
	case 8, 16, 24, 32:
		return bitDepth - 16, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrUnsupportedBits, bitDepth)
}

// Read implements io.Reader over the mono 16-bit PCM bytes.
func (r *Reader) Read(p []byte) (int, error) { return r.pcm.Read(p) }

// Close releases nothing; the file is closed after decoding.
func (r *Reader) Close() error { return nil }

// SampleRate returns the file's sample rate in Hz.
func (r *Reader) SampleRate() int { return r.sampleRate }

// Channels returns the channel count of the file before reduction.
func (r *Reader) Channels() int { return r.channels }

// BitDepth returns the source bit depth.
func (r *Reader) BitDepth() int { return r.bitDepth }

// Samples returns the number of mono samples served.
func (r *Reader) Samples() int { return r.samples }

// Duration returns the playing time of the file.
func (r *Reader) Duration() time.Duration {
	if r.sampleRate == 0 {
		return 0
	}
	return time.Duration(r.samples) * time.Second / time.Duration(r.sampleRate)
}

// intBuffer returns a mono 16-bit buffer for encoders.
func intBuffer(sampleRate, size int) *audio.IntBuffer {
	return &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, size),
		SourceBitDepth: 16,
	}
}
