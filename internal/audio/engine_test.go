// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"testing"

	"github.com/ismaelmosquera/imrlib-sub001/internal/analysis"
	"github.com/ismaelmosquera/imrlib-sub001/internal/config"
	"github.com/ismaelmosquera/imrlib-sub001/pkg/utils"
)

const (
	testSampleRate = 44100
	testFrameSize  = 1024
	testHopSize    = 512
)

func newTestEngine(t testing.TB, channels int, processors ...analysis.SpectrumProcessor) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Audio.SampleRate = testSampleRate
	cfg.Audio.FramesPerBuffer = testHopSize
	cfg.Audio.InputChannels = channels
	cfg.Analysis.FrameLength = testFrameSize
	e, err := newEngine(cfg, processors...)
	if err != nil {
		t.Fatalf("newEngine: %v", err)
	}
	return e
}

// interleave builds a capture buffer whose first channel is a sine and the
// others silence.
func interleave(mono []float64, channels int) []int16 {
	out := make([]int16, len(mono)*channels)
	for i, v := range mono {
		out[i*channels] = int16(math.Round(v * 32767))
	}
	return out
}

func TestNewEngineValidation(t *testing.T) {
	cfg := config.Default()
	cfg.Audio.FramesPerBuffer = 2048
	cfg.Analysis.FrameLength = 1024
	if _, err := newEngine(cfg); err == nil {
		t.Error("expected error for hop larger than frame length")
	}

	cfg = config.Default()
	cfg.Audio.InputChannels = 0
	if _, err := newEngine(cfg); err == nil {
		t.Error("expected error for zero channels")
	}
}

func TestEngineAnalyzesEveryHop(t *testing.T) {
	var seen []int
	counter := analysis.SpectrumProcessorFunc(func(spec *analysis.Spectrum) error {
		seen = append(seen, spec.FrameLength)
		return nil
	})
	e := newTestEngine(t, 2, counter)

	const buffers = 8
	signal := utils.GenerateSineWave(buffers*testHopSize, testSampleRate, 1000, 0.8)
	for k := 0; k < buffers; k++ {
		e.processInputStream(interleave(signal[k*testHopSize:(k+1)*testHopSize], 2))
	}

	if e.Frames() != buffers || len(seen) != buffers {
		t.Fatalf("analyzed %d frames (%d processor calls), want %d", e.Frames(), len(seen), buffers)
	}
	for i, n := range seen {
		if n != testFrameSize {
			t.Errorf("frame %d length %d, want %d", i, n, testFrameSize)
		}
	}

	mags := e.Monitor().GetMagnitudes()
	peak := utils.FindPeakBin(mags, 1, len(mags)-1)
	resolution := float64(testSampleRate) / testFrameSize
	if f := e.Monitor().GetFrequencyForBin(peak); math.Abs(f-1000) > resolution {
		t.Errorf("live peak at %.1f Hz, want 1000 Hz", f)
	}
}

func TestEngineUsesFirstChannel(t *testing.T) {
	e := newTestEngine(t, 2)
	buf := make([]int16, 2*testHopSize)
	for i := 0; i < testHopSize; i++ {
		buf[2*i] = int16(i)
		buf[2*i+1] = 30000
	}
	e.processInputStream(buf)
	for i, v := range e.mono16 {
		if v != int16(i) {
			t.Fatalf("mono16[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestEngineFrameSlidesByHop(t *testing.T) {
	e := newTestEngine(t, 1)
	e.DisableGate()

	first := make([]float64, testHopSize)
	for i := range first {
		first[i] = 0.5
	}
	e.processChunk(first)
	// Primed with silence: the first hop lands in the second half.
	if e.frame[0] != 0 || e.frame[testFrameSize-1] != 0.5 {
		t.Errorf("after one hop frame = [%v ... %v], want [0 ... 0.5]", e.frame[0], e.frame[testFrameSize-1])
	}

	e.processChunk(make([]float64, testHopSize))
	if e.frame[0] != 0.5 || e.frame[testFrameSize-1] != 0 {
		t.Errorf("after two hops frame = [%v ... %v], want [0.5 ... 0]", e.frame[0], e.frame[testFrameSize-1])
	}
}

func TestEngineDropsWrongSizedChunk(t *testing.T) {
	e := newTestEngine(t, 1)
	e.DisableGate()
	e.processChunk(make([]float64, testHopSize-1))
	if e.Frames() != 0 {
		t.Errorf("short chunk analyzed, frames = %d", e.Frames())
	}
}

func TestProcessChunkZeroAllocs(t *testing.T) {
	e := newTestEngine(t, 1)
	e.DisableGate()
	chunk := utils.GenerateComplexWave(testHopSize, testSampleRate)
	e.processChunk(chunk)

	allocs := testing.AllocsPerRun(100, func() {
		e.processChunk(chunk)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in capture hot path, got %.1f", allocs)
	}
}

func BenchmarkHotPath(b *testing.B) {
	e := newTestEngine(b, 2)
	buf := interleave(utils.GenerateComplexWave(testHopSize, testSampleRate), 2)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.processInputStream(buf)
	}
}
