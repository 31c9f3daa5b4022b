// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"

	applog "github.com/ismaelmosquera/imrlib-sub001/internal/log"
	"github.com/ismaelmosquera/imrlib-sub001/internal/window"
)

// Synthesizer turns a Spectrum back into a time-domain frame. After the
// inverse transform it multiplies by the inverted window, undoing the
// amplitude shaping applied at analysis time so that overlapping frames can
// be reassembled with an overlap-add stage.
type Synthesizer struct {
	win        windowing
	sampleRate float64
}

// NewSynthesizer returns a Synthesizer for spectra analyzed with kind.
func NewSynthesizer(kind window.Kind, sampleRate float64) (*Synthesizer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: %f", ErrInvalidSampleRate, sampleRate)
	}
	win, err := newWindowing(kind)
	if err != nil {
		return nil, err
	}

	applog.Debugf("Analysis: Initializing Synthesizer (SampleRate: %.1f Hz, Window: %s)", sampleRate, kind)

	return &Synthesizer{win: win, sampleRate: sampleRate}, nil
}

// Kind returns the configured window kind.
func (s *Synthesizer) Kind() window.Kind { return s.win.kind }

// Synthesize returns the frame that spec was analyzed from.
func (s *Synthesizer) Synthesize(spec *Spectrum) ([]float64, error) {
	if spec == nil {
		return nil, fmt.Errorf("%w: nil spectrum", ErrSizeMismatch)
	}
	out := make([]float64, spec.FrameLength)
	if err := s.SynthesizeInto(out, spec); err != nil {
		return nil, err
	}
	return out, nil
}

// SynthesizeInto is Synthesize writing into dst, which must be
// spec.FrameLength long.
func (s *Synthesizer) SynthesizeInto(dst []float64, spec *Spectrum) error {
	n := spec.FrameLength
	if n <= 0 || len(spec.Coefficients) != n/2+1 {
		return fmt.Errorf("%w: %d coefficients for frame length %d", ErrSizeMismatch, len(spec.Coefficients), n)
	}
	if len(dst) != n {
		return fmt.Errorf("%w: destination %d, frame length %d", ErrSizeMismatch, len(dst), n)
	}
	if spec.Windowed && spec.Kind != s.win.kind {
		return fmt.Errorf("%w: spectrum analyzed with %s, synthesizer uses %s", ErrWindowMismatch, spec.Kind, s.win.kind)
	}
	if spec.SampleRate != s.sampleRate {
		return fmt.Errorf("%w: spectrum %.1f Hz, synthesizer %.1f Hz", ErrSampleRateMismatch, spec.SampleRate, s.sampleRate)
	}

	inverse, err := s.win.inverted(n)
	if err != nil {
		return err
	}

	// The inverse transform is unnormalized.
	s.win.plan.Sequence(dst, spec.Coefficients)
	scale := 1 / float64(n)
	if spec.Windowed {
		for i := range dst {
			dst[i] *= scale * inverse.At(i)
		}
	} else {
		for i := range dst {
			dst[i] *= scale
		}
	}
	return nil
}

// Support returns per-sample weights for overlap-adding the frame that
// SynthesizeInto produces from spec: 1 where the sample was restored and 0
// where the window zeroed it beyond recovery. The slice is owned by the
// Synthesizer and valid until the next call with a different frame length.
func (s *Synthesizer) Support(spec *Spectrum) ([]float64, error) {
	if spec == nil {
		return nil, fmt.Errorf("%w: nil spectrum", ErrSizeMismatch)
	}
	return s.win.supported(spec.FrameLength, spec.Windowed)
}
