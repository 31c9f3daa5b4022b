// SPDX-License-Identifier: MIT
package audio

func (e *Engine) EnableGate() {
	e.gateEnabled = true
}

func (e *Engine) DisableGate() {
	e.gateEnabled = false
}

// SetGateThreshold adjusts the noise gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (e *Engine) SetGateThreshold(threshold float64) {
	if threshold < 0.0 {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}
	e.gateThreshold = threshold
}

// GetGateThreshold returns the current noise gate threshold.
func (e *Engine) GetGateThreshold() float64 {
	return e.gateThreshold
}

// gateOpen reports whether chunk should be analyzed: the gate is disabled or
// its peak exceeds the threshold.
func (e *Engine) gateOpen(chunk []float64) bool {
	if !e.gateEnabled {
		return true
	}
	return peak(chunk) > e.gateThreshold
}

func peak(samples []float64) float64 {
	var m float64
	for _, v := range samples {
		if v < 0 {
			v = -v
		}
		if v > m {
			m = v
		}
	}
	return m
}
