// SPDX-License-Identifier: MIT
package window

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/dsp/window"
)

// Kind selects the weighting curve applied to a frame before analysis.
type Kind int

// Enum for available window shapes. Hamming is the zero value so an unset
// Kind behaves as the default.
const (
	Hamming Kind = iota
	BlackmanHarris92
	Gaussian
	Triangular
)

// DefaultKind is used when no window is configured.
const DefaultKind = Hamming

// GaussianSigma is the standard deviation of the Gaussian window, relative
// to half the window length.
const GaussianSigma = 0.4

var (
	// ErrInvalidLength is returned for zero-length windows.
	ErrInvalidLength = errors.New("window: invalid length")
	// ErrSizeMismatch is returned when a frame and a window disagree in length.
	ErrSizeMismatch = errors.New("window: size mismatch")
	// ErrUnknownKind is returned by ParseKind and New for unsupported kinds.
	ErrUnknownKind = errors.New("window: unknown kind")
)

// String returns the canonical name of the window kind.
func (k Kind) String() string {
	switch k {
	case Hamming:
		return "Hamming"
	case BlackmanHarris92:
		return "BlackmanHarris92"
	case Gaussian:
		return "Gaussian"
	case Triangular:
		return "Triangular"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Valid reports whether k names a supported window.
func (k Kind) Valid() bool {
	return k >= Hamming && k <= Triangular
}

// Kinds returns every supported window kind.
func Kinds() []Kind {
	return []Kind{Hamming, BlackmanHarris92, Gaussian, Triangular}
}

// ParseKind converts a name (case-insensitive) to a Kind. It returns the
// default kind and an error if the name is unknown.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "hamming", "":
		return Hamming, nil
	case "blackmanharris92", "blackmanharris", "blackman-harris":
		return BlackmanHarris92, nil
	case "gaussian", "gauss":
		return Gaussian, nil
	case "triangular", "triangle", "bartlett":
		return Triangular, nil
	default:
		return DefaultKind, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
}

// Window is an immutable set of weights for one kind and length.
type Window struct {
	kind    Kind
	weights []float64
}

// New generates the symmetric window of the given kind and length.
func New(kind Kind, n int) (Window, error) {
	if n <= 0 {
		return Window{}, fmt.Errorf("%w: %d", ErrInvalidLength, n)
	}
	if !kind.Valid() {
		return Window{}, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}
	w := make([]float64, n)
	generate(w, kind)
	return Window{kind: kind, weights: w}, nil
}

// generate fills w with the weights of kind. The shape is computed over the
// whole slice, then the rising half is mirrored onto the falling half so that
// w[i] and w[n-1-i] are bit-identical. For odd n the center element keeps the
// value computed directly from the half index.
func generate(w []float64, kind Kind) {
	n := len(w)
	if n == 1 {
		w[0] = 1
		return
	}
	for i := range w {
		w[i] = 1
	}
	switch kind {
	case BlackmanHarris92:
		window.BlackmanHarris(w)
	case Gaussian:
		window.Gaussian{Sigma: GaussianSigma}.Transform(w)
	case Triangular:
		window.Triangular(w)
	default:
		window.Hamming(w)
	}
	for i := 0; i < n/2; i++ {
		w[n-1-i] = w[i]
	}
}

// Kind returns the window kind.
func (w Window) Kind() Kind { return w.kind }

// Len returns the number of weights.
func (w Window) Len() int { return len(w.weights) }

// At returns the i-th weight.
func (w Window) At(i int) float64 { return w.weights[i] }

// Weights returns a copy of the window weights.
func (w Window) Weights() []float64 {
	out := make([]float64, len(w.weights))
	copy(out, w.weights)
	return out
}

// Apply multiplies frame by the window weights in place.
func (w Window) Apply(frame []float64) error {
	if len(frame) != len(w.weights) {
		return fmt.Errorf("%w: frame %d, window %d", ErrSizeMismatch, len(frame), len(w.weights))
	}
	for i, v := range w.weights {
		frame[i] *= v
	}
	return nil
}

// Inverted returns a new window holding the reciprocal weights, see Invert.
func (w Window) Inverted() (Window, error) {
	inv := w.Weights()
	if err := Invert(inv); err != nil {
		return Window{}, err
	}
	return Window{kind: w.kind, weights: inv}, nil
}

// Invert replaces every nonzero weight with its reciprocal, in place. Zero
// weights stay zero.
//
// For odd lengths the last element is set to zero regardless of its value.
// The center element is inverted like any other. Frames de-windowed with an
// odd-length inverse therefore lose their final sample.
func Invert(w []float64) error {
	n := len(w)
	if n == 0 {
		return ErrInvalidLength
	}
	for i, v := range w {
		if v != 0 {
			w[i] = 1 / v
		}
	}
	if n%2 != 0 {
		w[n-1] = 0
	}
	return nil
}
