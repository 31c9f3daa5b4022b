// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"

	"github.com/ismaelmosquera/imrlib-sub001/internal/window"
	"gonum.org/v1/gonum/dsp/fourier"
)

// windowing caches the window weights, their inverse, the support of the
// inverse and the FFT plan for the most recent frame length. It is shared by Analyzer and Synthesizer and is
// regenerated whenever the frame length changes.
type windowing struct {
	kind    window.Kind
	weights window.Window
	inverse window.Window
	support []float64 // 1 where inverse is nonzero, else 0.
	ones    []float64
	plan    *fourier.FFT
}

func newWindowing(kind window.Kind) (windowing, error) {
	if !kind.Valid() {
		return windowing{}, fmt.Errorf("%w: %d", window.ErrUnknownKind, int(kind))
	}
	return windowing{kind: kind}, nil
}

// resize makes the cached plan and weights match n samples.
func (w *windowing) resize(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: frame length %d", ErrSizeMismatch, n)
	}
	if w.weights.Len() == n {
		return nil
	}
	weights, err := window.New(w.kind, n)
	if err != nil {
		return err
	}
	w.weights = weights
	w.inverse = window.Window{}
	w.support = nil
	if w.plan == nil {
		w.plan = fourier.NewFFT(n)
	} else {
		w.plan.Reset(n)
	}
	return nil
}

// forward returns the analysis weights for n samples.
func (w *windowing) forward(n int) (window.Window, error) {
	if err := w.resize(n); err != nil {
		return window.Window{}, err
	}
	return w.weights, nil
}

// inverted returns the reciprocal weights for n samples.
func (w *windowing) inverted(n int) (window.Window, error) {
	if err := w.resize(n); err != nil {
		return window.Window{}, err
	}
	if w.inverse.Len() != n {
		inv, err := w.weights.Inverted()
		if err != nil {
			return window.Window{}, err
		}
		w.inverse = inv
	}
	return w.inverse, nil
}

// supported returns the mask of samples the inverse window restores, or all
// ones for unwindowed frames.
func (w *windowing) supported(n int, windowed bool) ([]float64, error) {
	if !windowed {
		if len(w.ones) != n {
			w.ones = make([]float64, n)
			for i := range w.ones {
				w.ones[i] = 1
			}
		}
		return w.ones, nil
	}
	inverse, err := w.inverted(n)
	if err != nil {
		return nil, err
	}
	if len(w.support) != n {
		w.support = make([]float64, n)
		for i := range w.support {
			if inverse.At(i) != 0 {
				w.support[i] = 1
			}
		}
	}
	return w.support, nil
}
