// SPDX-License-Identifier: MIT
/*
Package shifter maintains the sliding sample buffer that turns a stream of
chunks into overlapping analysis frames, and the matching overlap-add stage
that turns synthesized frames back into a continuous stream.

A Shifter configured with frame length L and shift (hop) h keeps the most
recent L samples. The first Add fills the whole buffer; every later Add
discards the oldest h samples and appends h new ones, so consecutive frames
share L-h samples.

The final chunk of a finite stream is usually short. Call SetFrameSize with
overlap+remaining before the last Add; the next Frame is then that long.

A Shifter is owned by exactly one stream and is not safe for concurrent use.
*/
package shifter

import (
	"errors"
	"fmt"
)

var (
	// ErrSizeMismatch is returned for chunks or sizes that do not fit the buffer.
	ErrSizeMismatch = errors.New("shifter: size mismatch")
	// ErrInvalidShift is returned for hop sizes outside (0, frameLength].
	ErrInvalidShift = errors.New("shifter: invalid shift size")
	// ErrStreamTruncated is returned when a chunk is shorter than expected and
	// SetFrameSize was not called to announce it.
	ErrStreamTruncated = errors.New("shifter: stream truncated")
	// ErrStreamEnded is returned by Add after a truncated final frame.
	ErrStreamEnded = errors.New("shifter: stream ended")
)

// Shifter is the sliding frame buffer.
type Shifter struct {
	buffer    []float64
	shiftSize int  // Hop between consecutive frames.
	frameSize int  // Valid samples of the current or next frame.
	primed    bool // First Add done.
	ended     bool // A short final frame was added.
}

// New returns a Shifter configured for frames of frameLength samples with no
// overlap.
func New(frameLength int) (*Shifter, error) {
	s := &Shifter{}
	if err := s.Configure(frameLength); err != nil {
		return nil, err
	}
	return s, nil
}

// Configure allocates the buffer and resets shift and frame size to
// frameLength.
func (s *Shifter) Configure(frameLength int) error {
	if frameLength <= 0 {
		return fmt.Errorf("%w: frame length %d", ErrSizeMismatch, frameLength)
	}
	s.buffer = make([]float64, frameLength)
	s.shiftSize = frameLength
	s.frameSize = frameLength
	s.primed = false
	s.ended = false
	return nil
}

// Reset clears the buffer and stream state but keeps frame length and shift.
func (s *Shifter) Reset() {
	clear(s.buffer)
	s.frameSize = len(s.buffer)
	s.primed = false
	s.ended = false
}

// SetShiftSize sets the hop used by subsequent Add calls. A pending final
// frame announced with SetFrameSize must still take new samples under the new
// hop.
func (s *Shifter) SetShiftSize(hop int) error {
	if hop <= 0 || hop > len(s.buffer) {
		return fmt.Errorf("%w: %d not in (0, %d]", ErrInvalidShift, hop, len(s.buffer))
	}
	if s.primed && s.frameSize <= len(s.buffer)-hop {
		return fmt.Errorf("%w: hop %d leaves no new samples for pending frame size %d", ErrInvalidShift, hop, s.frameSize)
	}
	s.shiftSize = hop
	return nil
}

// SetFrameSize announces the size of the next frame. It is used for the last
// chunk of a stream: n = Overlap() + remaining samples. Before the first Add
// the overlap is zero and n is simply the number of samples available.
func (s *Shifter) SetFrameSize(n int) error {
	overlap := s.currentOverlap()
	if n <= overlap || n > len(s.buffer) {
		return fmt.Errorf("%w: frame size %d not in (%d, %d]", ErrSizeMismatch, n, overlap, len(s.buffer))
	}
	s.frameSize = n
	return nil
}

// Add shifts the buffer by the hop size and appends chunk behind the retained
// overlap. The first call fills the buffer from the start.
func (s *Shifter) Add(chunk []float64) error {
	if s.ended {
		return ErrStreamEnded
	}
	overlap := s.currentOverlap()
	want := s.frameSize - overlap
	switch {
	case len(chunk) < want:
		return fmt.Errorf("%w: got %d samples, want %d", ErrStreamTruncated, len(chunk), want)
	case len(chunk) > want:
		return fmt.Errorf("%w: got %d samples, want %d", ErrSizeMismatch, len(chunk), want)
	}

	if s.primed {
		copy(s.buffer, s.buffer[s.shiftSize:])
	}
	copy(s.buffer[overlap:], chunk)
	clear(s.buffer[s.frameSize:])

	s.primed = true
	if s.frameSize < len(s.buffer) {
		s.ended = true
	}
	return nil
}

// Frame returns a copy of the current frame.
func (s *Shifter) Frame() []float64 {
	out := make([]float64, s.frameSize)
	copy(out, s.buffer[:s.frameSize])
	return out
}

// FrameInto copies the current frame into dst, which must be FrameSize long.
func (s *Shifter) FrameInto(dst []float64) error {
	if len(dst) != s.frameSize {
		return fmt.Errorf("%w: destination %d, frame %d", ErrSizeMismatch, len(dst), s.frameSize)
	}
	copy(dst, s.buffer[:s.frameSize])
	return nil
}

// FrameLength returns the configured buffer length.
func (s *Shifter) FrameLength() int { return len(s.buffer) }

// ShiftSize returns the hop between frames.
func (s *Shifter) ShiftSize() int { return s.shiftSize }

// FrameSize returns the number of valid samples in the current (or next) frame.
func (s *Shifter) FrameSize() int { return s.frameSize }

// Overlap returns the samples shared by consecutive frames.
func (s *Shifter) Overlap() int { return len(s.buffer) - s.shiftSize }

// ExpectedChunk returns the number of samples the next Add expects.
func (s *Shifter) ExpectedChunk() int { return s.frameSize - s.currentOverlap() }

// Primed reports whether the first frame has been added.
func (s *Shifter) Primed() bool { return s.primed }

// Ended reports whether a short final frame has been added.
func (s *Shifter) Ended() bool { return s.ended }

func (s *Shifter) currentOverlap() int {
	if !s.primed {
		return 0
	}
	return len(s.buffer) - s.shiftSize
}
