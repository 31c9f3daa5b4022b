// SPDX-License-Identifier: MIT
package wavio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("wavio: writer closed")

// Writer encodes 16-bit little-endian mono PCM into a WAV file. Writes may
// split samples across calls. It is safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	file    *os.File
	enc     *wav.Encoder
	buf     *audio.IntBuffer
	pending []byte // Odd trailing byte of the previous Write.
	samples int
	closed  bool
}

var _ io.WriteCloser = (*Writer)(nil)

// CreateWriter creates (or truncates) path and prepares a mono 16-bit WAV
// encoder.
func CreateWriter(path string, sampleRate int) (*Writer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("wavio: invalid sample rate %d", sampleRate)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	logger.Debugf("Creating %s (SampleRate: %d Hz)", path, sampleRate)

	return &Writer{
		file: file,
		enc:  wav.NewEncoder(file, sampleRate, 16, 1, 1),
		buf:  intBuffer(sampleRate, 0),
	}, nil
}

// Write encodes p as little-endian int16 samples.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, ErrClosed
	}

	data := p
	if len(w.pending) > 0 {
		data = append(w.pending, p...)
	}
	whole := len(data) &^ 1

	n := whole / 2
	w.grow(n)
	for i := 0; i < n; i++ {
		w.buf.Data[i] = int(int16(binary.LittleEndian.Uint16(data[2*i:])))
	}

	// data may alias pending, so the tail is saved only after decoding.
	hasTail := whole < len(data)
	var tail byte
	if hasTail {
		tail = data[whole]
	}
	w.pending = w.pending[:0]
	if hasTail {
		w.pending = append(w.pending, tail)
	}

	if err := w.flush(n); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteSamples encodes samples directly.
func (w *Writer) WriteSamples(samples []int16) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	w.grow(len(samples))
	for i, s := range samples {
		w.buf.Data[i] = int(s)
	}
	return w.flush(len(samples))
}

func (w *Writer) grow(n int) {
	if cap(w.buf.Data) < n {
		w.buf.Data = make([]int, n)
	}
	w.buf.Data = w.buf.Data[:n]
}

func (w *Writer) flush(n int) error {
	if n == 0 {
		return nil
	}
	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("wavio: encoding %d samples: %w", n, err)
	}
	w.samples += n
	return nil
}

// Samples returns the number of samples written.
func (w *Writer) Samples() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.samples
}

// Close finalizes the WAV headers and closes the file. A dangling odd byte
// is dropped.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	if len(w.pending) > 0 {
		logger.Warnf("Dropping %d trailing byte(s) of an incomplete sample", len(w.pending))
	}
	if w.samples == 0 {
		// Emit the headers of an empty file.
		w.buf.Data = w.buf.Data[:0]
		if err := w.enc.Write(w.buf); err != nil {
			w.file.Close()
			return err
		}
	}
	if err := w.enc.Close(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
