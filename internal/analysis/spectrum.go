// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/ismaelmosquera/imrlib-sub001/internal/window"
)

// Spectrum is the frequency-domain representation of one analyzed frame.
// Coefficients holds the non-negative half of the real FFT, FrameLength/2+1
// bins. The tags record how the frame was analyzed so that synthesis can
// undo it and consumers can map bins to Hz.
type Spectrum struct {
	Coefficients []complex128
	FrameLength  int         // Samples in the analyzed frame.
	SampleRate   float64     // Hz, used only for bin labelling.
	Kind         window.Kind // Window applied before the transform.
	Windowed     bool        // False when windowing was disabled.
}

// NewSpectrumFromPolar builds a spectrum from per-bin magnitudes and phases,
// for example after modifying the output of Magnitudes and Phases.
func NewSpectrumFromPolar(magnitudes, phases []float64, frameLength int, sampleRate float64, kind window.Kind, windowed bool) (*Spectrum, error) {
	if len(magnitudes) != len(phases) || len(magnitudes) != frameLength/2+1 {
		return nil, fmt.Errorf("%w: %d magnitudes, %d phases for frame length %d",
			ErrSizeMismatch, len(magnitudes), len(phases), frameLength)
	}
	coeffs := make([]complex128, len(magnitudes))
	for i := range coeffs {
		coeffs[i] = cmplx.Rect(magnitudes[i], phases[i])
	}
	return &Spectrum{
		Coefficients: coeffs,
		FrameLength:  frameLength,
		SampleRate:   sampleRate,
		Kind:         kind,
		Windowed:     windowed,
	}, nil
}

// Bins returns the number of frequency bins.
func (s *Spectrum) Bins() int { return len(s.Coefficients) }

// Magnitudes returns |X(k)| for every bin.
func (s *Spectrum) Magnitudes() []float64 {
	out := make([]float64, len(s.Coefficients))
	_ = s.MagnitudesInto(out)
	return out
}

// MagnitudesInto writes |X(k)| into dst, which must hold Bins() values.
func (s *Spectrum) MagnitudesInto(dst []float64) error {
	if len(dst) != len(s.Coefficients) {
		return fmt.Errorf("%w: destination %d, bins %d", ErrSizeMismatch, len(dst), len(s.Coefficients))
	}
	for i, c := range s.Coefficients {
		dst[i] = cmplx.Abs(c)
	}
	return nil
}

// Phases returns arg X(k) in radians for every bin.
func (s *Spectrum) Phases() []float64 {
	out := make([]float64, len(s.Coefficients))
	for i, c := range s.Coefficients {
		out[i] = math.Atan2(imag(c), real(c))
	}
	return out
}

// Energy returns |X(k)|^2 for every bin.
func (s *Spectrum) Energy() []float64 {
	out := make([]float64, len(s.Coefficients))
	for i, c := range s.Coefficients {
		out[i] = real(c)*real(c) + imag(c)*imag(c)
	}
	return out
}

// TotalEnergy returns the energy of the frame, the sum of |X(k)|^2 over the
// full two-sided spectrum divided by the frame length (Parseval). For an
// unwindowed frame it equals the sum of squared samples.
func (s *Spectrum) TotalEnergy() float64 {
	n := s.FrameLength
	if n == 0 || len(s.Coefficients) == 0 {
		return 0
	}
	var sum float64
	for i, c := range s.Coefficients {
		e := real(c)*real(c) + imag(c)*imag(c)
		// Bins other than DC and (for even n) Nyquist appear twice.
		if i == 0 || (n%2 == 0 && i == n/2) {
			sum += e
		} else {
			sum += 2 * e
		}
	}
	return sum / float64(n)
}

// FrequencyForBin returns the center frequency (Hz) of a bin, or 0 if the
// index is out of range.
func (s *Spectrum) FrequencyForBin(bin int) float64 {
	if bin < 0 || bin >= len(s.Coefficients) || s.FrameLength == 0 {
		return 0
	}
	return float64(bin) * s.SampleRate / float64(s.FrameLength)
}

// PeakBin returns the bin with the largest magnitude.
func (s *Spectrum) PeakBin() int {
	peak, best := 0, -1.0
	for i, c := range s.Coefficients {
		if m := cmplx.Abs(c); m > best {
			peak, best = i, m
		}
	}
	return peak
}

// Scale multiplies every coefficient by gain in place.
func (s *Spectrum) Scale(gain float64) {
	g := complex(gain, 0)
	for i := range s.Coefficients {
		s.Coefficients[i] *= g
	}
}

// Clone returns a deep copy.
func (s *Spectrum) Clone() *Spectrum {
	c := *s
	c.Coefficients = make([]complex128, len(s.Coefficients))
	copy(c.Coefficients, s.Coefficients)
	return &c
}

// compatible reports whether two spectra can be combined bin by bin.
func (s *Spectrum) compatible(o *Spectrum) error {
	if s.FrameLength != o.FrameLength || len(s.Coefficients) != len(o.Coefficients) {
		return fmt.Errorf("%w: frame lengths %d and %d", ErrSizeMismatch, s.FrameLength, o.FrameLength)
	}
	if s.Windowed != o.Windowed || (s.Windowed && s.Kind != o.Kind) {
		return fmt.Errorf("%w: %s and %s", ErrWindowMismatch, s.Kind, o.Kind)
	}
	if s.SampleRate != o.SampleRate {
		return fmt.Errorf("%w: %.1f Hz and %.1f Hz", ErrSampleRateMismatch, s.SampleRate, o.SampleRate)
	}
	return nil
}

// Mix returns gainA*a + gainB*b. Both spectra must share frame length,
// window and sample rate.
func Mix(a, b *Spectrum, gainA, gainB float64) (*Spectrum, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("%w: nil spectrum", ErrSizeMismatch)
	}
	if err := a.compatible(b); err != nil {
		return nil, err
	}
	out := a.Clone()
	ga, gb := complex(gainA, 0), complex(gainB, 0)
	for i := range out.Coefficients {
		out.Coefficients[i] = ga*a.Coefficients[i] + gb*b.Coefficients[i]
	}
	return out, nil
}
