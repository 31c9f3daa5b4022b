// SPDX-License-Identifier: MIT
/*
Package audio implements the live capture engine:
- Audio capture using PortAudio (16-bit, first channel analyzed)
- Overlapping frames built by a Shifter whose hop is frames_per_buffer
- Spectrum analysis through an analysis.Monitor plus optional processors
- Noise gate that skips analysis of quiet buffers
- WAV recording with atomic state management

Thread Safety:
- The PortAudio callback owns the shifter, analyzer and buffers
- Buffers are pre-allocated to avoid GC in the hot path
- Readers see magnitudes through the Monitor's lock
*/
package audio

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/ismaelmosquera/imrlib-sub001/internal/analysis"
	"github.com/ismaelmosquera/imrlib-sub001/internal/config"
	"github.com/ismaelmosquera/imrlib-sub001/internal/frame"
	applog "github.com/ismaelmosquera/imrlib-sub001/internal/log"
	"github.com/ismaelmosquera/imrlib-sub001/internal/shifter"
	"github.com/ismaelmosquera/imrlib-sub001/internal/wavio"
)

var logger = applog.Component("Audio")

// DefaultGateThreshold is the peak level, relative to full scale, below
// which a buffer is not analyzed.
const DefaultGateThreshold = 0.001

type Engine struct {
	// Core configuration.
	sampleRate      float64
	channels        int
	framesPerBuffer int
	lowLatency      bool

	// Audio input handling.
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream
	inputBuffer  []int16   // Interleaved, frames × channels.
	mono16       []int16   // First channel.
	mono         []float64 // First channel as normalized samples.

	// Framing and analysis.
	shifter    *shifter.Shifter
	frame      []float64
	monitor    *analysis.Monitor
	processors []analysis.SpectrumProcessor
	frames     atomic.Uint64 // Analyzed frames.
	gated      atomic.Uint64 // Buffers skipped by the gate.

	// Noise gate for signal conditioning.
	gateEnabled   bool
	gateThreshold float64 // Peak level in [0, 1].

	// Recording state.
	isRecording int32 // Atomic flag for thread-safe state
	recMu       sync.Mutex
	recorder    *wavio.Writer
}

// NewEngine resolves the configured input device and builds the processing
// chain. PortAudio must be initialized.
func NewEngine(cfg *config.Config, processors ...analysis.SpectrumProcessor) (*Engine, error) {
	inputDevice, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, err
	}

	engine, err := newEngine(cfg, processors...)
	if err != nil {
		return nil, err
	}
	engine.inputDevice = inputDevice
	if cfg.Audio.LowLatency {
		engine.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		engine.inputLatency = inputDevice.DefaultHighInputLatency
	}

	logger.Infof("Using input device %q (Latency: %s)", inputDevice.Name, engine.inputLatency)
	return engine, nil
}

// newEngine builds everything but the device binding.
func newEngine(cfg *config.Config, processors ...analysis.SpectrumProcessor) (*Engine, error) {
	a := cfg.Audio
	frameLength := cfg.Analysis.FrameLength
	if a.FramesPerBuffer <= 0 || a.FramesPerBuffer > frameLength {
		return nil, fmt.Errorf("frames_per_buffer %d must be in (0, frame_length %d]", a.FramesPerBuffer, frameLength)
	}
	if a.InputChannels < 1 {
		return nil, fmt.Errorf("invalid input channel count: %d", a.InputChannels)
	}

	sh, err := shifter.New(frameLength)
	if err != nil {
		return nil, err
	}
	if err := sh.SetShiftSize(a.FramesPerBuffer); err != nil {
		return nil, err
	}
	// Prime with silence so every callback delivers exactly one hop.
	if err := sh.Add(make([]float64, frameLength)); err != nil {
		return nil, err
	}

	monitor, err := analysis.NewMonitor(frameLength, a.SampleRate, cfg.WindowKind())
	if err != nil {
		return nil, err
	}
	monitor.SetWindowing(cfg.Analysis.Windowing)

	logger.Infof("Initializing Engine (SampleRate: %.0f Hz, Frame: %d, Hop: %d, Channels: %d)",
		a.SampleRate, frameLength, a.FramesPerBuffer, a.InputChannels)

	return &Engine{
		sampleRate:      a.SampleRate,
		channels:        a.InputChannels,
		framesPerBuffer: a.FramesPerBuffer,
		lowLatency:      a.LowLatency,
		inputBuffer:     make([]int16, a.FramesPerBuffer*a.InputChannels),
		mono16:          make([]int16, a.FramesPerBuffer),
		mono:            make([]float64, a.FramesPerBuffer),
		shifter:         sh,
		frame:           make([]float64, frameLength),
		monitor:         monitor,
		processors:      processors,
		gateEnabled:     true,
		gateThreshold:   DefaultGateThreshold,
	}, nil
}

// Monitor returns the monitor holding the latest magnitudes.
func (e *Engine) Monitor() *analysis.Monitor { return e.monitor }

// Frames returns the number of analyzed frames.
func (e *Engine) Frames() uint64 { return e.frames.Load() }

// Gated returns the number of buffers the gate kept from analysis.
func (e *Engine) Gated() uint64 { return e.gated.Load() }

func (e *Engine) StartInputStream() error {
	if e.inputDevice == nil {
		return fmt.Errorf("engine has no input device")
	}
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.channels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: e.framesPerBuffer,
		SampleRate:      e.sampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return err
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		return err
	}

	logger.Infof("Input stream started")
	return nil
}

func (e *Engine) StopInputStream() error {
	if e.inputStream != nil {
		if err := e.inputStream.Stop(); err != nil {
			return err
		}

		if err := e.inputStream.Close(); err != nil {
			return err
		}

		e.inputStream = nil
		logger.Infof("Input stream stopped")
	}

	return nil
}

// processInputStream is the PortAudio callback. It keeps the first channel,
// records it if enabled and runs the analysis chain.
func (e *Engine) processInputStream(in []int16) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	copy(e.inputBuffer, in)
	for i := range e.mono16 {
		e.mono16[i] = e.inputBuffer[i*e.channels]
	}

	if atomic.LoadInt32(&e.isRecording) == 1 {
		e.recMu.Lock()
		if e.recorder != nil {
			if err := e.recorder.WriteSamples(e.mono16); err != nil {
				logger.Errorf("Error writing to WAV file: %v", err)
			}
		}
		e.recMu.Unlock()
	}

	_ = frame.FromInt16Into(e.mono, e.mono16)
	e.processChunk(e.mono)
}

// processChunk shifts one hop into the frame buffer and analyzes the frame
// unless the gate is closed. The shifter always advances, so frames stay
// contiguous across gated buffers.
func (e *Engine) processChunk(chunk []float64) {
	if err := e.shifter.Add(chunk); err != nil {
		logger.Warnf("Dropping buffer: %v", err)
		return
	}
	if !e.gateOpen(chunk) {
		e.gated.Add(1)
		return
	}

	_ = e.shifter.FrameInto(e.frame)
	spec, err := e.monitor.Process(e.frame)
	if err != nil {
		logger.Warnf("Analysis failed: %v", err)
		return
	}
	for _, p := range e.processors {
		if err := p.ProcessSpectrum(spec); err != nil {
			logger.Debugf("Processor error: %v", err)
		}
	}
	e.frames.Add(1)
}
