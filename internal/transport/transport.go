// SPDX-License-Identifier: MIT
package transport

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// MagnitudeProvider is implemented by analyzers that expose the magnitudes
// of their latest spectrum. Publishers poll it from their own goroutine, so
// implementations must be safe for concurrent use.
type MagnitudeProvider interface {
	// GetMagnitudesInto copies the latest magnitudes into dest, which must
	// hold Bins() values.
	GetMagnitudesInto(dest []float64) error
	Bins() int
	GetFrequencyForBin(binIndex int) float64
}
