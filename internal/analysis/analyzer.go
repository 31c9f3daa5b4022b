// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"

	applog "github.com/ismaelmosquera/imrlib-sub001/internal/log"
	"github.com/ismaelmosquera/imrlib-sub001/internal/window"
)

// Analyzer windows a frame and transforms it into a Spectrum. It holds no
// per-frame state besides the cached window and FFT plan, which are rebuilt
// lazily when the frame length changes. An Analyzer must not be shared by
// goroutines; use one per stream.
type Analyzer struct {
	win        windowing
	sampleRate float64
	windowed   bool
	input      []float64 // Windowed copy of the frame.
}

// NewAnalyzer returns an Analyzer using the given window kind. The sample
// rate only tags the produced spectra.
func NewAnalyzer(kind window.Kind, sampleRate float64) (*Analyzer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: %f", ErrInvalidSampleRate, sampleRate)
	}
	win, err := newWindowing(kind)
	if err != nil {
		return nil, err
	}

	applog.Debugf("Analysis: Initializing Analyzer (SampleRate: %.1f Hz, Window: %s)", sampleRate, kind)

	return &Analyzer{
		win:        win,
		sampleRate: sampleRate,
		windowed:   true,
	}, nil
}

// SetWindowing enables or disables the analysis window. Spectra produced with
// windowing disabled are synthesized without de-windowing.
func (a *Analyzer) SetWindowing(enabled bool) {
	a.windowed = enabled
}

// Kind returns the configured window kind.
func (a *Analyzer) Kind() window.Kind { return a.win.kind }

// SampleRate returns the sample rate used to tag spectra.
func (a *Analyzer) SampleRate() float64 { return a.sampleRate }

// Analyze returns the spectrum of frame. The frame is not modified.
func (a *Analyzer) Analyze(frame []float64) (*Spectrum, error) {
	s := &Spectrum{}
	if err := a.AnalyzeInto(s, frame); err != nil {
		return nil, err
	}
	return s, nil
}

// AnalyzeInto is Analyze writing into an existing spectrum. The coefficient
// slice of dst is reused when its capacity allows, so repeated calls with the
// same frame length do not allocate.
func (a *Analyzer) AnalyzeInto(dst *Spectrum, frame []float64) error {
	n := len(frame)
	weights, err := a.win.forward(n)
	if err != nil {
		return err
	}

	// --- 1. Copy & Window ---
	if cap(a.input) < n {
		a.input = make([]float64, n)
	}
	a.input = a.input[:n]
	copy(a.input, frame)
	if a.windowed {
		if err := weights.Apply(a.input); err != nil {
			return err
		}
	}

	// --- 2. Transform ---
	bins := n/2 + 1
	if cap(dst.Coefficients) < bins {
		dst.Coefficients = make([]complex128, bins)
	}
	dst.Coefficients = dst.Coefficients[:bins]
	a.win.plan.Coefficients(dst.Coefficients, a.input)

	// --- 3. Tag ---
	dst.FrameLength = n
	dst.SampleRate = a.sampleRate
	dst.Kind = a.win.kind
	dst.Windowed = a.windowed
	return nil
}
