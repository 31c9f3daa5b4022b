// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	applog "github.com/ismaelmosquera/imrlib-sub001/internal/log"
	"github.com/ismaelmosquera/imrlib-sub001/internal/window"
	"github.com/ismaelmosquera/imrlib-sub001/pkg/bitint"
	"gopkg.in/yaml.v3"
)

var logger = applog.Component("Config")

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Forces debug logging.
	LogLevel  string          `yaml:"log_level"` // "debug", "info", "warn" or "error".
	Audio     AudioConfig     `yaml:"audio"`     // Live capture settings.
	Analysis  AnalysisConfig  `yaml:"analysis"`  // Framing and windowing.
	Recording RecordingConfig `yaml:"recording"` // Live input recording.
	Transport TransportConfig `yaml:"transport"` // Spectrum publishing.
}

// AudioConfig holds settings related to audio input.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Hz, also tags the spectra of files.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Capture callback size; the live hop.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency from the device.
	InputChannels   int     `yaml:"input_channels"`    // Only the first channel is analyzed.
}

// AnalysisConfig holds the framing and window settings shared by every
// command.
type AnalysisConfig struct {
	Window      string `yaml:"window"`       // hamming, blackmanharris92, gaussian or triangular.
	FrameLength int    `yaml:"frame_length"` // Samples per analysis frame.
	ShiftSize   int    `yaml:"shift_size"`   // Hop between frames; 0 means frame_length.
	Windowing   bool   `yaml:"windowing"`    // Apply the window before the transform.
}

// RecordingConfig holds settings related to live recording.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
}

// TransportConfig holds settings related to sending spectra over the network.
type TransportConfig struct {
	UDPEnabled           bool          `yaml:"udp_enabled"`
	UDPTargetAddress     string        `yaml:"udp_target_address"` // host:port
	UDPSendInterval      time.Duration `yaml:"udp_send_interval"`
	WebSocketEnabled     bool          `yaml:"websocket_enabled"`
	WebSocketAddress     string        `yaml:"websocket_address"`
	WebSocketMinInterval time.Duration `yaml:"websocket_min_interval"`
}

// LoadConfig loads configuration from the YAML file at path. If path is
// empty, "config.yaml" in the working directory is used when present,
// otherwise the built-in defaults. Environment overrides are applied last,
// then the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		logger.Debugf("Loaded %s", path)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}

	a := c.Audio
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return fmt.Errorf("%w: audio.sample_rate %.0f not in [%d, %d]", ErrInvalid, a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.InputDevice < MinDeviceID {
		return fmt.Errorf("%w: audio.input_device %d", ErrInvalid, a.InputDevice)
	}
	if a.InputChannels < 1 {
		return fmt.Errorf("%w: audio.input_channels %d", ErrInvalid, a.InputChannels)
	}
	if !bitint.IsPowerOfTwo(a.FramesPerBuffer) || a.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("%w: audio.frames_per_buffer %d must be a power of two up to %d", ErrInvalid, a.FramesPerBuffer, MaxBufferFrames)
	}

	an := c.Analysis
	if _, err := window.ParseKind(an.Window); err != nil {
		return fmt.Errorf("%w: analysis.window: %w", ErrInvalid, err)
	}
	if an.FrameLength <= 0 || an.FrameLength > MaxFrameLength {
		return fmt.Errorf("%w: analysis.frame_length %d not in (0, %d]", ErrInvalid, an.FrameLength, MaxFrameLength)
	}
	if an.ShiftSize < 0 || an.ShiftSize > an.FrameLength {
		return fmt.Errorf("%w: analysis.shift_size %d not in (0, %d]", ErrInvalid, an.ShiftSize, an.FrameLength)
	}

	t := c.Transport
	if t.UDPEnabled {
		if _, _, err := net.SplitHostPort(t.UDPTargetAddress); err != nil {
			return fmt.Errorf("%w: transport.udp_target_address %q: %w", ErrInvalid, t.UDPTargetAddress, err)
		}
		if t.UDPSendInterval <= 0 {
			return fmt.Errorf("%w: transport.udp_send_interval must be positive", ErrInvalid)
		}
	}
	if t.WebSocketEnabled {
		if _, _, err := net.SplitHostPort(t.WebSocketAddress); err != nil {
			return fmt.Errorf("%w: transport.websocket_address %q: %w", ErrInvalid, t.WebSocketAddress, err)
		}
	}
	return nil
}

// WindowKind returns the parsed analysis window.
func (c *Config) WindowKind() window.Kind {
	k, _ := window.ParseKind(c.Analysis.Window)
	return k
}

// Shift returns the effective hop, frame_length when shift_size is 0.
func (c *Config) Shift() int {
	if c.Analysis.ShiftSize == 0 {
		return c.Analysis.FrameLength
	}
	return c.Analysis.ShiftSize
}

// Level returns the effective log level; debug wins over log_level.
func (c *Config) Level() applog.LogLevel {
	if c.Debug {
		return applog.LevelDebug
	}
	level, _ := applog.ParseLevel(c.LogLevel)
	return level
}

// applyEnvOverrides applies IMR_* environment variables. Values that do not
// parse are ignored with a warning.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("IMR_LOG_LEVEL"); ok {
		c.LogLevel = val
		logger.Infof("Overriding log_level from env: %s", val)
	}
	if val, ok := os.LookupEnv("IMR_WINDOW"); ok {
		c.Analysis.Window = val
		logger.Infof("Overriding analysis.window from env: %s", val)
	}
	envInt("IMR_FRAME_LENGTH", "analysis.frame_length", &c.Analysis.FrameLength)
	envInt("IMR_SHIFT_SIZE", "analysis.shift_size", &c.Analysis.ShiftSize)

	if val, ok := os.LookupEnv("IMR_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
			logger.Infof("Overriding transport.udp_enabled from env: %v", bVal)
		} else {
			logger.Warnf("Ignoring IMR_UDP_ENABLED=%q: %v", val, err)
		}
	}
	if val, ok := os.LookupEnv("IMR_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		logger.Infof("Overriding transport.udp_target_address from env: %s", val)
	}
	if val, ok := os.LookupEnv("IMR_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
			logger.Infof("Overriding transport.udp_send_interval from env: %s", dur)
		} else {
			logger.Warnf("Ignoring IMR_UDP_SEND_INTERVAL=%q: %v", val, err)
		}
	}
}

func envInt(key, field string, dst *int) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		logger.Warnf("Ignoring %s=%q: %v", key, val, err)
		return
	}
	*dst = n
	logger.Infof("Overriding %s from env: %d", field, n)
}
