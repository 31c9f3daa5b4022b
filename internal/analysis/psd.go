// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"

	"github.com/ismaelmosquera/imrlib-sub001/internal/window"
	"github.com/ismaelmosquera/imrlib-sub001/pkg/bitint"
	"github.com/mjibson/go-dsp/spectral"
)

// WelchPSD estimates the power spectral density of samples by averaging the
// periodograms of overlapping frames (Welch's method) cut with the same frame
// length, shift and window as the analysis pipeline. It returns the density
// per bin and the bin frequencies in Hz. Segments are zero-padded to the next
// power of two, so a 600-sample frame yields 513 bins.
func WelchPSD(samples []float64, sampleRate float64, kind window.Kind, frameLength, shiftSize int) (psd, freqs []float64, err error) {
	if sampleRate <= 0 {
		return nil, nil, fmt.Errorf("%w: %f", ErrInvalidSampleRate, sampleRate)
	}
	if frameLength <= 0 || frameLength%2 != 0 || len(samples) < frameLength {
		return nil, nil, fmt.Errorf("%w: %d samples, frame length %d (must be even and fit the signal)",
			ErrSizeMismatch, len(samples), frameLength)
	}
	if shiftSize <= 0 || shiftSize > frameLength {
		return nil, nil, fmt.Errorf("%w: shift %d for frame length %d", ErrSizeMismatch, shiftSize, frameLength)
	}
	if !kind.Valid() {
		return nil, nil, fmt.Errorf("%w: %d", window.ErrUnknownKind, int(kind))
	}

	opts := &spectral.PwelchOptions{
		NFFT:     frameLength,
		Pad:      bitint.NextPowerOfTwo(frameLength),
		Noverlap: frameLength - shiftSize,
		Window: func(n int) []float64 {
			w, err := window.New(kind, n)
			if err != nil {
				return make([]float64, n)
			}
			return w.Weights()
		},
	}
	psd, freqs = spectral.Pwelch(samples, sampleRate, opts)
	return psd, freqs, nil
}
