// SPDX-License-Identifier: MIT

// Package cmd implements the imr command tree.
package cmd

import (
	"context"
	"io"

	"github.com/fatih/color"
	"github.com/ismaelmosquera/imrlib-sub001/internal/config"
	applog "github.com/ismaelmosquera/imrlib-sub001/internal/log"
	"github.com/ismaelmosquera/imrlib-sub001/pkg/build"
	"github.com/spf13/cobra"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	okColor     = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
)

// app carries the state shared by every subcommand.
type app struct {
	cfg        *config.Config
	out        io.Writer
	configPath string

	// Root flag values, applied over the loaded config when set.
	logLevel    string
	verbose     bool
	windowName  string
	frameLength int
	shiftSize   int
	sampleRate  float64
	noWindow    bool
	noColor     bool
}

// Execute runs the command line in args, writing results to out.
func Execute(ctx context.Context, args []string, out io.Writer) error {
	root := NewRootCmd(out)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCmd builds the command tree.
func NewRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}
	info := build.Get()

	rootCmd := &cobra.Command{
		Use:           info.Name,
		Short:         "Spectral analysis and resynthesis of audio streams",
		Version:       info.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig(cmd)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Configuration file (default: ./config.yaml when present)")
	flags.StringVar(&a.logLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Shorthand for --log-level debug")
	flags.StringVarP(&a.windowName, "window", "w", config.DefaultWindow, "Window: hamming, blackmanharris92, gaussian, triangular")
	flags.IntVarP(&a.frameLength, "frame-length", "n", config.DefaultFrameLength, "Samples per analysis frame")
	flags.IntVarP(&a.shiftSize, "shift", "s", config.DefaultShiftSize, "Hop between frames in samples (0 = frame length)")
	flags.Float64VarP(&a.sampleRate, "sample-rate", "r", config.DefaultSampleRate, "Capture sample rate in Hz")
	flags.BoolVar(&a.noWindow, "no-window", false, "Disable analysis windowing")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable coloured output")

	rootCmd.AddCommand(
		newAnalyzeCmd(a),
		newResynthCmd(a),
		newStreamsCmd(a),
		newLiveCmd(a),
		newListCmd(a),
		newDevicesCmd(a),
		newWindowCmd(a),
	)
	return rootCmd
}

// loadConfig reads the configuration and overlays the flags the user set.
func (a *app) loadConfig(cmd *cobra.Command) error {
	if a.noColor {
		color.NoColor = true
	}

	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if a.verbose {
		cfg.Debug = true
	}
	if flags.Changed("window") {
		cfg.Analysis.Window = a.windowName
	}
	if flags.Changed("frame-length") {
		cfg.Analysis.FrameLength = a.frameLength
	}
	if flags.Changed("shift") {
		cfg.Analysis.ShiftSize = a.shiftSize
	}
	if flags.Changed("sample-rate") {
		cfg.Audio.SampleRate = a.sampleRate
	}
	if a.noWindow {
		cfg.Analysis.Windowing = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	applog.SetLevel(cfg.Level())
	a.cfg = cfg
	return nil
}
