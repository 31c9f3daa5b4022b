// SPDX-License-Identifier: MIT
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/ismaelmosquera/imrlib-sub001/internal/analysis"
	"github.com/ismaelmosquera/imrlib-sub001/internal/frame"
	"github.com/ismaelmosquera/imrlib-sub001/internal/shifter"
	"github.com/ismaelmosquera/imrlib-sub001/internal/window"
	"github.com/ismaelmosquera/imrlib-sub001/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRate = 44100

func defaultOptions() Options {
	return Options{
		FrameLength: 1024,
		ShiftSize:   512,
		SampleRate:  sampleRate,
		Window:      window.Hamming,
	}
}

// pcm returns n samples of a test tone as 16-bit PCM.
func pcm(n int) []byte {
	return frame.Default(sampleRate).ToBytes(utils.GenerateComplexWave(n, sampleRate))
}

// assertWithinLSB checks that two PCM streams differ by at most one
// quantization step per sample, ignoring the sample positions in skip.
func assertWithinLSB(t *testing.T, want, got []byte, skip ...int) {
	t.Helper()
	require.Len(t, got, len(want))
	f := frame.Default(sampleRate)
	w, err := f.ToFrame(want)
	require.NoError(t, err)
	g, err := f.ToFrame(got)
	require.NoError(t, err)
	for _, i := range skip {
		w[i], g[i] = 0, 0
	}
	assert.LessOrEqual(t, utils.MaxAbsDiff(w, g), 1.0/32768)
}

func TestRunReconstructsStream(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		samples int
		// Positions only a zero window weight covers; -1 is the last sample.
		unrestored []int
	}{
		// 1024 + 9*512 samples: ten full frames.
		{"TenFrames", defaultOptions(), 1024 + 9*512, nil},
		// Final chunk of 300 samples gives an even 812-sample last frame.
		{"ShortFinalChunk", defaultOptions(), 1024 + 9*512 + 300, nil},
		// An odd 813-sample last frame loses its last inverse weight.
		{"OddFinalFrame", defaultOptions(), 1024 + 9*512 + 301, []int{-1}},
		{"NoOverlap", Options{FrameLength: 256, SampleRate: sampleRate, Window: window.BlackmanHarris92}, 256*4 + 100, nil},
		{"QuarterHop", Options{FrameLength: 512, ShiftSize: 128, SampleRate: sampleRate, Window: window.Gaussian}, 5000, nil},
		{"StreamShorterThanFrame", defaultOptions(), 600, nil},
		{"Unwindowed", Options{FrameLength: 64, ShiftSize: 32, SampleRate: sampleRate, Window: window.Triangular, DisableWindowing: true}, 1001, nil},
		// Triangular edges are zero: every hop boundary relies on the
		// neighbouring frame, only the stream ends are lost.
		{"Triangular", Options{FrameLength: 1024, ShiftSize: 512, SampleRate: sampleRate, Window: window.Triangular}, 1024 + 9*512 + 300, []int{0, -1}},
		{"TriangularOddFinalFrame", Options{FrameLength: 1024, ShiftSize: 512, SampleRate: sampleRate, Window: window.Triangular}, 1024 + 9*512 + 301, []int{0, -1}},
		// Every full frame drops its last inverse weight; the next frame
		// covers it.
		{"OddFrameLength", Options{FrameLength: 1023, ShiftSize: 512, SampleRate: sampleRate, Window: window.Hamming}, 1023 + 8*512 + 200, []int{-1}},
		{"OddFrameLengthFullFinalFrame", Options{FrameLength: 1023, ShiftSize: 512, SampleRate: sampleRate, Window: window.Hamming}, 1023 + 8*512, []int{-1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.opts)
			require.NoError(t, err)

			in := pcm(tt.samples)
			var out bytes.Buffer
			stats, err := p.Run(context.Background(), bytes.NewReader(in), &out)
			require.NoError(t, err)

			assert.Equal(t, tt.samples, stats.SamplesIn)
			assert.Equal(t, tt.samples, stats.SamplesOut)

			var want []int
			for _, i := range tt.unrestored {
				if i < 0 {
					i += tt.samples
				}
				want = append(want, i)
			}
			assert.Equal(t, want, stats.Unrestored)
			assertWithinLSB(t, in, out.Bytes(), stats.Unrestored...)
		})
	}
}

// TestRunZeroesUnrestoredSamples checks that a sample no window weight
// covers is written as silence rather than a partial value.
func TestRunZeroesUnrestoredSamples(t *testing.T) {
	p, err := New(defaultOptions())
	require.NoError(t, err)

	const samples = 1024 + 9*512 + 301
	var out bytes.Buffer
	stats, err := p.Run(context.Background(), bytes.NewReader(pcm(samples)), &out)
	require.NoError(t, err)
	require.Equal(t, []int{samples - 1}, stats.Unrestored)

	got, err := frame.Default(sampleRate).ToFrame(out.Bytes())
	require.NoError(t, err)
	assert.Zero(t, got[samples-1])
}

func TestRunFrameCount(t *testing.T) {
	p, err := New(Options{FrameLength: 1024, ShiftSize: 512, SampleRate: sampleRate, Window: window.Hamming, Collect: true})
	require.NoError(t, err)

	stats, err := p.Run(context.Background(), bytes.NewReader(pcm(1024+9*512+300)), nil)
	require.NoError(t, err)
	assert.Equal(t, 11, stats.Frames)
	assert.Zero(t, stats.SamplesOut, "no sink, no output")

	spectra := p.Spectra()
	require.Len(t, spectra, 11)
	assert.Equal(t, 1024, spectra[0].FrameLength)
	assert.Equal(t, 812, spectra[10].FrameLength)
	for _, s := range spectra {
		assert.Equal(t, window.Hamming, s.Kind)
		assert.InDelta(t, sampleRate, s.SampleRate, 0)
	}
}

func TestRunIsRepeatable(t *testing.T) {
	p, err := New(defaultOptions())
	require.NoError(t, err)
	in := pcm(3000)

	var first, second bytes.Buffer
	_, err = p.Run(context.Background(), bytes.NewReader(in), &first)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), bytes.NewReader(in), &second)
	require.NoError(t, err)
	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestProcessorsSeeEverySpectrum(t *testing.T) {
	p, err := New(defaultOptions())
	require.NoError(t, err)

	calls := 0
	p.Use(analysis.SpectrumProcessorFunc(func(*analysis.Spectrum) error {
		calls++
		return nil
	}), analysis.Gain(0))

	var out bytes.Buffer
	stats, err := p.Run(context.Background(), bytes.NewReader(pcm(4000)), &out)
	require.NoError(t, err)
	assert.Equal(t, stats.Frames, calls)
	assert.Equal(t, make([]byte, out.Len()), out.Bytes(), "zero gain should silence the output")
}

func TestProcessorErrorStopsRun(t *testing.T) {
	p, err := New(defaultOptions())
	require.NoError(t, err)
	boom := errors.New("boom")
	p.Use(analysis.SpectrumProcessorFunc(func(*analysis.Spectrum) error { return boom }))

	_, err = p.Run(context.Background(), bytes.NewReader(pcm(4000)), nil)
	assert.ErrorIs(t, err, boom)
}

func TestRunHonorsContext(t *testing.T) {
	p, err := New(defaultOptions())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.Run(ctx, bytes.NewReader(pcm(4000)), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunDropsTrailingByte(t *testing.T) {
	p, err := New(defaultOptions())
	require.NoError(t, err)
	in := append(pcm(1500), 0x7f)

	var out bytes.Buffer
	stats, err := p.Run(context.Background(), bytes.NewReader(in), &out)
	require.NoError(t, err)
	assert.Equal(t, 1500, stats.SamplesIn)
	assertWithinLSB(t, in[:3000], out.Bytes())
}

func TestRunEmptyInput(t *testing.T) {
	p, err := New(defaultOptions())
	require.NoError(t, err)
	var out bytes.Buffer
	stats, err := p.Run(context.Background(), bytes.NewReader(nil), &out)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
	assert.Zero(t, out.Len())
}

func TestNewValidation(t *testing.T) {
	for name, opts := range map[string]Options{
		"ZeroFrame":   {SampleRate: sampleRate},
		"ShiftTooBig": {FrameLength: 64, ShiftSize: 65, SampleRate: sampleRate},
		"NoRate":      {FrameLength: 64},
		"BadWindow":   {FrameLength: 64, SampleRate: sampleRate, Window: window.Kind(9)},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := New(opts)
			assert.Error(t, err)
		})
	}

	_, err := New(Options{FrameLength: 64, ShiftSize: 65, SampleRate: sampleRate})
	assert.ErrorIs(t, err, shifter.ErrInvalidShift)
}

func TestResynthesizeMatchesRun(t *testing.T) {
	opts := defaultOptions()
	opts.Collect = true
	p, err := New(opts)
	require.NoError(t, err)

	in := pcm(1024 + 6*512 + 77)
	var direct bytes.Buffer
	_, err = p.Run(context.Background(), bytes.NewReader(in), &direct)
	require.NoError(t, err)

	var stored bytes.Buffer
	n, err := Resynthesize(context.Background(), p.Spectra(), opts.ShiftSize, &stored)
	require.NoError(t, err)
	assert.Equal(t, len(in)/2, n)
	assert.Equal(t, direct.Bytes(), stored.Bytes())
}

func TestResynthesizeEmpty(t *testing.T) {
	n, err := Resynthesize(context.Background(), nil, 512, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func BenchmarkRun(b *testing.B) {
	p, err := New(defaultOptions())
	require.NoError(b, err)
	in := pcm(sampleRate)
	var out bytes.Buffer

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		out.Reset()
		_, _ = p.Run(context.Background(), bytes.NewReader(in), &out)
	}
}
