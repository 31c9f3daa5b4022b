// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"sync"

	applog "github.com/ismaelmosquera/imrlib-sub001/internal/log"
	"github.com/ismaelmosquera/imrlib-sub001/internal/transport"
	"github.com/ismaelmosquera/imrlib-sub001/internal/window"
)

// Monitor analyzes the frames of a live stream and keeps the magnitudes of
// the latest spectrum for concurrent readers such as the UDP publisher.
// Process is called from the capture goroutine, the getters from anywhere.
type Monitor struct {
	analyzer   *Analyzer
	frameSize  int
	spectrum   Spectrum
	magnitudes []float64
	mu         sync.RWMutex // Protects magnitudes.
}

// Compile-time check that Monitor can feed the transports.
var _ transport.MagnitudeProvider = (*Monitor)(nil)

// NewMonitor returns a Monitor for frames of frameSize samples.
func NewMonitor(frameSize int, sampleRate float64, kind window.Kind) (*Monitor, error) {
	if frameSize <= 0 {
		return nil, fmt.Errorf("%w: frame size %d", ErrSizeMismatch, frameSize)
	}
	analyzer, err := NewAnalyzer(kind, sampleRate)
	if err != nil {
		return nil, err
	}

	applog.Infof("Analysis: Initializing Monitor (Size: %d, SampleRate: %.1f Hz, Window: %s)", frameSize, sampleRate, kind)

	return &Monitor{
		analyzer:   analyzer,
		frameSize:  frameSize,
		spectrum:   Spectrum{Coefficients: make([]complex128, frameSize/2+1)},
		magnitudes: make([]float64, frameSize/2+1),
	}, nil
}

// SetWindowing enables or disables the analysis window.
func (m *Monitor) SetWindowing(enabled bool) { m.analyzer.SetWindowing(enabled) }

// Process analyzes frame and publishes its magnitudes. It returns the
// analyzed spectrum, which stays valid until the next call.
func (m *Monitor) Process(frame []float64) (*Spectrum, error) {
	if len(frame) != m.frameSize {
		return nil, fmt.Errorf("%w: frame %d, monitor %d", ErrSizeMismatch, len(frame), m.frameSize)
	}
	if err := m.analyzer.AnalyzeInto(&m.spectrum, frame); err != nil {
		return nil, err
	}

	m.mu.Lock()
	_ = m.spectrum.MagnitudesInto(m.magnitudes)
	m.mu.Unlock()

	return &m.spectrum, nil
}

// GetMagnitudes returns a copy of the latest magnitudes.
func (m *Monitor) GetMagnitudes() []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]float64, len(m.magnitudes))
	copy(out, m.magnitudes)
	return out
}

// GetMagnitudesInto copies the latest magnitudes into dest without
// allocating. dest must hold Bins() values.
func (m *Monitor) GetMagnitudesInto(dest []float64) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(dest) != len(m.magnitudes) {
		return fmt.Errorf("destination slice length %d does not match required length %d", len(dest), len(m.magnitudes))
	}
	copy(dest, m.magnitudes)
	return nil
}

// Bins returns the number of magnitude values.
func (m *Monitor) Bins() int { return m.frameSize/2 + 1 }

// GetFrequencyForBin returns the center frequency (Hz) of a bin.
func (m *Monitor) GetFrequencyForBin(bin int) float64 {
	if bin < 0 || bin >= m.Bins() {
		return 0
	}
	return float64(bin) * m.analyzer.SampleRate() / float64(m.frameSize)
}

// SampleRate returns the sample rate of the monitored stream.
func (m *Monitor) SampleRate() float64 { return m.analyzer.SampleRate() }
