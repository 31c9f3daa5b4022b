// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ismaelmosquera/imrlib-sub001/internal/analysis"
	"github.com/ismaelmosquera/imrlib-sub001/internal/audio"
	applog "github.com/ismaelmosquera/imrlib-sub001/internal/log"
	"github.com/ismaelmosquera/imrlib-sub001/internal/transport"
	"github.com/ismaelmosquera/imrlib-sub001/internal/transport/udp"
	"github.com/spf13/cobra"
)

func newLiveCmd(a *app) *cobra.Command {
	var (
		device    int
		record    bool
		output    string
		duration  time.Duration
		gate      float64
		websocket bool
		udpOn     bool
	)
	cmd := &cobra.Command{
		Use:   "live",
		Short: "Analyze a capture device in real time and publish the spectra",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			flags := cmd.Flags()
			if flags.Changed("device") {
				cfg.Audio.InputDevice = device
			}
			if flags.Changed("record") {
				cfg.Recording.Enabled = record
			}
			if flags.Changed("websocket") {
				cfg.Transport.WebSocketEnabled = websocket
			}
			if flags.Changed("udp") {
				cfg.Transport.UDPEnabled = udpOn
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if output == "" {
				output = filepath.Join(cfg.Recording.OutputDir,
					"recording-"+time.Now().UTC().Format("02-01-2006-150405")+".wav")
			}

			ctx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}
			return a.runLive(ctx, output, gate)
		},
	}
	flags := cmd.Flags()
	flags.IntVarP(&device, "device", "d", -1, "Input device ID, -1 for the system default (see 'list')")
	flags.BoolVar(&record, "record", false, "Record the analyzed channel to a WAV file")
	flags.StringVarP(&output, "output", "o", "", "Recording file (default recording-DD-MM-YYYY-HHMMSS.wav in recording.output_dir)")
	flags.DurationVar(&duration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	flags.Float64Var(&gate, "gate", audio.DefaultGateThreshold, "Noise gate threshold relative to full scale, 0 disables")
	flags.BoolVar(&websocket, "websocket", false, "Publish band energy and onsets over websocket")
	flags.BoolVar(&udpOn, "udp", false, "Publish magnitudes over UDP")
	return cmd
}

// runLive wires capture, analysis and publishing, then blocks until ctx ends.
func (a *app) runLive(ctx context.Context, output string, gate float64) error {
	cfg := a.cfg

	var events transport.Transport = transport.NewLoggingTransport()
	if cfg.Transport.WebSocketEnabled {
		ws, err := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress, cfg.Transport.WebSocketMinInterval)
		if err != nil {
			return err
		}
		events = ws
		fmt.Fprintf(a.out, "websocket: ws://%s%s\n", ws.Addr(), transport.WebSocketPath)
	}
	defer events.Close()

	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	bands := analysis.NewBandEnergyProcessor(events, analysis.DefaultBands(cfg.Audio.SampleRate))
	onsets := analysis.NewOnsetDetector(onsetThreshold, onsetRatio, events)
	engine, err := audio.NewEngine(cfg, bands, onsets)
	if err != nil {
		return err
	}
	defer engine.Close()
	if gate > 0 {
		engine.SetGateThreshold(gate)
	} else {
		engine.DisableGate()
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return err
		}
		defer sender.Close()
		publisher, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender, engine.Monitor())
		if err != nil {
			return err
		}
		publisher.Start()
		defer publisher.Close()
	}

	if err := engine.StartInputStream(); err != nil {
		return err
	}
	if cfg.Recording.Enabled {
		if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
			return err
		}
		if err := engine.StartRecording(output); err != nil {
			return err
		}
	}

	headerColor.Fprintf(a.out, "Listening (%s, frame %d, hop %d). Press Ctrl+C to stop.\n",
		cfg.WindowKind(), cfg.Analysis.FrameLength, cfg.Audio.FramesPerBuffer)
	<-ctx.Done()
	applog.Debugf("Live: Shutting down (%v)", context.Cause(ctx))

	if err := engine.Close(); err != nil {
		applog.Errorf("Live: Error closing audio engine: %v", err)
	}
	okColor.Fprintf(a.out, "\n%d frames analyzed, %d buffers gated, %d onsets\n",
		engine.Frames(), engine.Gated(), len(onsets.Onsets()))
	if cfg.Recording.Enabled {
		fmt.Fprintf(a.out, "Recording saved to: %s\n", output)
	}
	return nil
}
