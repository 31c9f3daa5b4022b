// SPDX-License-Identifier: MIT
package config

import "time"

// Defaults and limits of the configuration surface.
const (
	DefaultLogLevel        = "info"
	DefaultInputDevice     = MinDeviceID // System default device.
	DefaultSampleRate      = 44100       // CD-quality audio.
	DefaultFramesPerBuffer = 512         // Live capture hop.
	DefaultInputChannels   = 1
	DefaultWindow          = "hamming"
	DefaultFrameLength     = 1024
	DefaultShiftSize       = 512
	DefaultOutputDir       = "./recordings"
	DefaultUDPTarget       = "127.0.0.1:9090"
	DefaultUDPInterval     = 33 * time.Millisecond // ~30Hz.
	DefaultWebSocketAddr   = "127.0.0.1:8080"
	DefaultWebSocketRate   = 50 * time.Millisecond

	MinDeviceID     = -1     // -1 represents the system default device.
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz).
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz).
	MaxBufferFrames = 8192   // Maximum frames per buffer (power of 2).
	MaxFrameLength  = 1 << 16
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			InputDevice:     DefaultInputDevice,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   DefaultInputChannels,
		},
		Analysis: AnalysisConfig{
			Window:      DefaultWindow,
			FrameLength: DefaultFrameLength,
			ShiftSize:   DefaultShiftSize,
			Windowing:   true,
		},
		Recording: RecordingConfig{
			OutputDir: DefaultOutputDir,
		},
		Transport: TransportConfig{
			UDPTargetAddress:     DefaultUDPTarget,
			UDPSendInterval:      DefaultUDPInterval,
			WebSocketAddress:     DefaultWebSocketAddr,
			WebSocketMinInterval: DefaultWebSocketRate,
		},
	}
}
