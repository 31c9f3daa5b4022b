// SPDX-License-Identifier: MIT
package analysis

import (
	"math"

	applog "github.com/ismaelmosquera/imrlib-sub001/internal/log"
	"github.com/ismaelmosquera/imrlib-sub001/internal/transport"
)

// FrequencyBand defines the name and frequency range for an energy band.
type FrequencyBand struct {
	Name    string
	LowHz   float64
	HighHz  float64
	Energy  float64 // Average per-bin energy for the last spectrum.
	numBins int
}

// DefaultBands returns the sub..treble bands used for energy plots, the
// treble band ending at the Nyquist frequency.
func DefaultBands(sampleRate float64) []*FrequencyBand {
	return []*FrequencyBand{
		{Name: "sub", LowHz: 20, HighHz: 60},
		{Name: "bass", LowHz: 60, HighHz: 250},
		{Name: "lowMid", LowHz: 250, HighHz: 500},
		{Name: "mid", LowHz: 500, HighHz: 2000},
		{Name: "highMid", LowHz: 2000, HighHz: 4000},
		{Name: "treble", LowHz: 4000, HighHz: sampleRate/2 + 1},
	}
}

// BandEnergyProcessor calculates energy across frequency bands of each
// spectrum and optionally publishes it.
type BandEnergyProcessor struct {
	transport transport.Transport
	bands     []*FrequencyBand
}

var _ SpectrumProcessor = (*BandEnergyProcessor)(nil)

// NewBandEnergyProcessor creates a processor over bands. A nil transport
// only computes.
func NewBandEnergyProcessor(t transport.Transport, bands []*FrequencyBand) *BandEnergyProcessor {
	applog.Debugf("Analysis: Initializing BandEnergyProcessor with %d bands.", len(bands))
	return &BandEnergyProcessor{transport: t, bands: bands}
}

// Bands returns the bands with the energies of the last processed spectrum.
func (p *BandEnergyProcessor) Bands() []*FrequencyBand {
	return p.bands
}

// ProcessSpectrum computes the average per-bin energy of every band and
// sends the normalized values. The spectrum is not modified.
func (p *BandEnergyProcessor) ProcessSpectrum(spec *Spectrum) error {
	for _, band := range p.bands {
		band.Energy = 0
		band.numBins = 0
	}

	for i, c := range spec.Coefficients {
		freq := spec.FrequencyForBin(i)
		for _, band := range p.bands {
			if freq >= band.LowHz && freq < band.HighHz {
				band.Energy += real(c)*real(c) + imag(c)*imag(c)
				band.numBins++
				break
			}
		}
	}

	bandData := map[string]any{"type": "band_energy"}
	for _, band := range p.bands {
		if band.numBins > 0 {
			band.Energy /= float64(band.numBins)
		}
		// Magnitude relative to a full-scale sine spread over the frame.
		bandData[band.Name] = math.Min(1.0, 2*math.Sqrt(band.Energy)/float64(spec.FrameLength))
	}

	if p.transport == nil {
		return nil
	}
	if err := p.transport.Send(bandData); err != nil {
		applog.Warnf("BandEnergyProcessor: Error sending band energy data: %v", err)
		return err
	}
	return nil
}
