// SPDX-License-Identifier: MIT
/*
Package pipeline runs the analysis/resynthesis loop over a PCM byte stream:

	bytes -> frame.Factory -> shifter.Shifter -> analysis.Analyzer
	      -> processors -> analysis.Synthesizer -> shifter.OverlapAdder
	      -> frame.Factory -> bytes

One Pipeline owns one instance of every stage and processes one stream at
a time. Run several Pipelines to process streams concurrently.
*/
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ismaelmosquera/imrlib-sub001/internal/analysis"
	"github.com/ismaelmosquera/imrlib-sub001/internal/frame"
	applog "github.com/ismaelmosquera/imrlib-sub001/internal/log"
	"github.com/ismaelmosquera/imrlib-sub001/internal/shifter"
	"github.com/ismaelmosquera/imrlib-sub001/internal/window"
)

var logger = applog.Component("Pipeline")

// Options configures a Pipeline.
type Options struct {
	FrameLength      int         // Samples per analysis frame.
	ShiftSize        int         // Hop between frames; 0 means FrameLength.
	SampleRate       float64     // Hz, tags the spectra.
	Window           window.Kind // Analysis and synthesis window.
	DisableWindowing bool
	Collect          bool // Keep a copy of every spectrum.
}

// Stats summarizes one Run.
type Stats struct {
	Frames     int
	SamplesIn  int
	SamplesOut int
	Unrestored []int // Output positions written as zero, see Run.
}

// Pipeline is the stream loop. It is not safe for concurrent use.
type Pipeline struct {
	opts       Options
	factory    *frame.Factory
	shifter    *shifter.Shifter
	analyzer   *analysis.Analyzer
	synth      *analysis.Synthesizer
	processors []analysis.SpectrumProcessor
	spectra    []*analysis.Spectrum

	// Reused across frames.
	raw      []byte
	chunk    []float64
	current  []float64
	resynth  []float64
	out      []byte
	spectrum analysis.Spectrum
}

// New validates opts and builds the stages.
func New(opts Options) (*Pipeline, error) {
	if opts.ShiftSize == 0 {
		opts.ShiftSize = opts.FrameLength
	}
	factory, err := frame.NewFactory(nil, opts.SampleRate)
	if err != nil {
		return nil, err
	}
	sh, err := shifter.New(opts.FrameLength)
	if err != nil {
		return nil, err
	}
	if err := sh.SetShiftSize(opts.ShiftSize); err != nil {
		return nil, err
	}
	analyzer, err := analysis.NewAnalyzer(opts.Window, opts.SampleRate)
	if err != nil {
		return nil, err
	}
	analyzer.SetWindowing(!opts.DisableWindowing)
	synth, err := analysis.NewSynthesizer(opts.Window, opts.SampleRate)
	if err != nil {
		return nil, err
	}

	logger.Debugf("Initializing (FrameLength: %d, Shift: %d, Window: %s, SampleRate: %.1f Hz)",
		opts.FrameLength, opts.ShiftSize, opts.Window, opts.SampleRate)

	return &Pipeline{
		opts:     opts,
		factory:  factory,
		shifter:  sh,
		analyzer: analyzer,
		synth:    synth,
		raw:      make([]byte, opts.FrameLength*frame.BytesPerSample),
		chunk:    make([]float64, opts.FrameLength),
		current:  make([]float64, opts.FrameLength),
		resynth:  make([]float64, opts.FrameLength),
	}, nil
}

// Use appends processors that see every spectrum, in order, between
// analysis and synthesis.
func (p *Pipeline) Use(processors ...analysis.SpectrumProcessor) {
	p.processors = append(p.processors, processors...)
}

// Options returns the effective options.
func (p *Pipeline) Options() Options { return p.opts }

// Spectra returns the spectra collected by the last Run when Collect is set.
func (p *Pipeline) Spectra() []*analysis.Spectrum { return p.spectra }

// Run reads 16-bit PCM from src until EOF, analyzes every overlapping frame
// and, when sink is non-nil, writes the resynthesized stream to it. The
// output has exactly as many samples as the input. Run checks ctx between
// frames.
//
// Samples that only a zero window weight covered cannot be restored and come
// out as zero. With windowing on that is always the last sample when the
// final frame has odd length, since the inverted window drops its last
// element, and the first and last sample of a Triangular stream. Their
// positions are reported in Stats.Unrestored.
func (p *Pipeline) Run(ctx context.Context, src io.Reader, sink io.Writer) (Stats, error) {
	var stats Stats
	p.shifter.Reset()
	p.spectra = p.spectra[:0]

	var ola *shifter.OverlapAdder
	if sink != nil {
		var err error
		ola, err = shifter.NewOverlapAdder(p.opts.FrameLength, p.opts.ShiftSize)
		if err != nil {
			return stats, err
		}
	}

	for !p.shifter.Ended() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		samples, err := p.readChunk(src)
		if err != nil {
			return stats, err
		}
		if samples == 0 {
			break
		}
		stats.SamplesIn += samples

		if err := p.shifter.Add(p.chunk[:samples]); err != nil {
			return stats, fmt.Errorf("frame %d: %w", stats.Frames, err)
		}
		n := p.shifter.FrameSize()
		current := p.current[:n]
		_ = p.shifter.FrameInto(current)

		if err := p.analyzer.AnalyzeInto(&p.spectrum, current); err != nil {
			return stats, fmt.Errorf("frame %d: %w", stats.Frames, err)
		}
		for _, proc := range p.processors {
			if err := proc.ProcessSpectrum(&p.spectrum); err != nil {
				return stats, fmt.Errorf("frame %d: processor: %w", stats.Frames, err)
			}
		}
		if p.opts.Collect {
			p.spectra = append(p.spectra, p.spectrum.Clone())
		}

		if ola != nil {
			resynth := p.resynth[:n]
			if err := p.synth.SynthesizeInto(resynth, &p.spectrum); err != nil {
				return stats, fmt.Errorf("frame %d: %w", stats.Frames, err)
			}
			support, err := p.synth.Support(&p.spectrum)
			if err != nil {
				return stats, fmt.Errorf("frame %d: %w", stats.Frames, err)
			}
			ready, err := ola.AddWeighted(resynth, support)
			if err != nil {
				return stats, err
			}
			if err := p.write(sink, ready); err != nil {
				return stats, err
			}
			stats.SamplesOut += len(ready)
		}
		stats.Frames++
	}

	if ola != nil {
		tail := ola.Flush()
		if err := p.write(sink, tail); err != nil {
			return stats, err
		}
		stats.SamplesOut += len(tail)
		stats.Unrestored = ola.Unrestored()
	}

	logger.Debugf("Processed %d frames (%d samples in, %d out)", stats.Frames, stats.SamplesIn, stats.SamplesOut)
	return stats, nil
}

// readChunk reads the next chunk into p.chunk and returns its sample count.
// A short read announces the final frame to the shifter.
func (p *Pipeline) readChunk(src io.Reader) (int, error) {
	want := p.shifter.ExpectedChunk()
	raw := p.raw[:want*frame.BytesPerSample]

	got, err := io.ReadFull(src, raw)
	switch {
	case errors.Is(err, io.EOF):
		return 0, nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		if got%frame.BytesPerSample != 0 {
			logger.Warnf("Dropping trailing byte of an incomplete sample")
		}
	case err != nil:
		return 0, fmt.Errorf("reading input: %w", err)
	}

	samples := got / frame.BytesPerSample
	if samples == 0 {
		return 0, nil
	}
	if samples < want {
		if err := p.shifter.SetFrameSize(p.shifter.FrameSize() - want + samples); err != nil {
			return 0, err
		}
	}
	if err := p.factory.ToFrameInto(p.chunk[:samples], raw[:samples*frame.BytesPerSample]); err != nil {
		return 0, err
	}
	return samples, nil
}

func (p *Pipeline) write(sink io.Writer, samples []float64) error {
	if len(samples) == 0 {
		return nil
	}
	size := len(samples) * frame.BytesPerSample
	if cap(p.out) < size {
		p.out = make([]byte, size)
	}
	out := p.out[:size]
	if err := p.factory.ToBytesInto(out, samples); err != nil {
		return err
	}
	if _, err := sink.Write(out); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// Resynthesize overlap-adds stored spectra back into a PCM stream written
// to sink. The spectra must come from one stream cut with shiftSize.
func Resynthesize(ctx context.Context, spectra []*analysis.Spectrum, shiftSize int, sink io.Writer) (int, error) {
	if len(spectra) == 0 {
		return 0, nil
	}
	first := spectra[0]
	synth, err := analysis.NewSynthesizer(first.Kind, first.SampleRate)
	if err != nil {
		return 0, err
	}
	ola, err := shifter.NewOverlapAdder(first.FrameLength, shiftSize)
	if err != nil {
		return 0, err
	}
	factory := frame.Default(first.SampleRate)

	written := 0
	emit := func(samples []float64) error {
		if _, err := sink.Write(factory.ToBytes(samples)); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		written += len(samples)
		return nil
	}

	for i, spec := range spectra {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		frameSamples, err := synth.Synthesize(spec)
		if err != nil {
			return written, fmt.Errorf("frame %d: %w", i, err)
		}
		support, err := synth.Support(spec)
		if err != nil {
			return written, fmt.Errorf("frame %d: %w", i, err)
		}
		ready, err := ola.AddWeighted(frameSamples, support)
		if err != nil {
			return written, fmt.Errorf("frame %d: %w", i, err)
		}
		if err := emit(ready); err != nil {
			return written, err
		}
	}
	return written, emit(ola.Flush())
}
