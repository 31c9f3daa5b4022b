// SPDX-License-Identifier: MIT
package analysis

// SpectrumProcessor is implemented by stages that consume analyzed spectra
// between analysis and synthesis. A processor may modify the spectrum in
// place; the pipeline synthesizes whatever it leaves behind.
type SpectrumProcessor interface {
	ProcessSpectrum(spec *Spectrum) error
}

// SpectrumProcessorFunc adapts a function to SpectrumProcessor.
type SpectrumProcessorFunc func(spec *Spectrum) error

// ProcessSpectrum calls f(spec).
func (f SpectrumProcessorFunc) ProcessSpectrum(spec *Spectrum) error {
	return f(spec)
}

// Gain returns a processor that scales every spectrum by g.
func Gain(g float64) SpectrumProcessor {
	return SpectrumProcessorFunc(func(spec *Spectrum) error {
		spec.Scale(g)
		return nil
	})
}
