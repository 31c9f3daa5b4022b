// SPDX-License-Identifier: MIT
package analysis

import "errors"

var (
	// ErrSizeMismatch is returned for empty frames and for spectra or
	// destination buffers whose length disagrees with the frame length.
	ErrSizeMismatch = errors.New("analysis: size mismatch")
	// ErrWindowMismatch is returned when a spectrum is synthesized or mixed
	// with a different window kind than it was analyzed with.
	ErrWindowMismatch = errors.New("analysis: window mismatch")
	// ErrSampleRateMismatch is returned when spectra tagged with different
	// sample rates are combined.
	ErrSampleRateMismatch = errors.New("analysis: sample rate mismatch")
	// ErrInvalidSampleRate is returned for non-positive sample rates.
	ErrInvalidSampleRate = errors.New("analysis: invalid sample rate")
)
