// SPDX-License-Identifier: MIT
package analysis

import (
	applog "github.com/ismaelmosquera/imrlib-sub001/internal/log"
	"github.com/ismaelmosquera/imrlib-sub001/internal/transport"
)

// OnsetDetector flags frames whose energy jumps above a threshold, a cheap
// stand-in for kick/attack detection on the energy plot.
type OnsetDetector struct {
	threshold      float64 // Minimum frame energy (mean square) to trigger.
	minEnergyRatio float64 // Minimum rise over the previous frame.
	lastEnergy     float64
	frameIndex     int
	onsets         []int
	transport      transport.Transport
}

var _ SpectrumProcessor = (*OnsetDetector)(nil)

// NewOnsetDetector returns a detector. A nil transport only records onsets.
func NewOnsetDetector(threshold, minEnergyRatio float64, t transport.Transport) *OnsetDetector {
	applog.Debugf("Analysis: Initializing OnsetDetector (Threshold: %.4f, MinRatio: %.2f)", threshold, minEnergyRatio)
	return &OnsetDetector{
		threshold:      threshold,
		minEnergyRatio: minEnergyRatio,
		transport:      t,
	}
}

// ProcessSpectrum checks one frame for an onset.
func (d *OnsetDetector) ProcessSpectrum(spec *Spectrum) error {
	var energy float64
	if spec.FrameLength > 0 {
		energy = spec.TotalEnergy() / float64(spec.FrameLength)
	}
	index := d.frameIndex
	d.frameIndex++

	rising := d.lastEnergy == 0 || energy/d.lastEnergy > d.minEnergyRatio
	d.lastEnergy = energy
	if energy <= d.threshold || !rising {
		return nil
	}

	d.onsets = append(d.onsets, index)
	if d.transport == nil {
		return nil
	}
	event := map[string]any{
		"type":  "event",
		"name":  "onset",
		"frame": index,
	}
	if err := d.transport.Send(event); err != nil {
		applog.Warnf("OnsetDetector: Error sending onset event: %v", err)
		return err
	}
	return nil
}

// Onsets returns the indices of frames flagged so far.
func (d *OnsetDetector) Onsets() []int {
	return d.onsets
}
