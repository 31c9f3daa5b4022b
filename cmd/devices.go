// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/ismaelmosquera/imrlib-sub001/internal/audio"
	applog "github.com/ismaelmosquera/imrlib-sub001/internal/log"
	"github.com/ismaelmosquera/imrlib-sub001/internal/store"
	"github.com/ismaelmosquera/imrlib-sub001/internal/tui"
	"github.com/ismaelmosquera/imrlib-sub001/internal/window"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := audio.Initialize(); err != nil {
				return err
			}
			defer audio.Terminate()
			return audio.ListDevices(a.out)
		},
	}
}

func newDevicesCmd(a *app) *cobra.Command {
	var write string
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Pick an input device and analysis settings interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The TUI owns the terminal while it runs.
			prev := applog.SetOutput(io.Discard)
			sel, ok, err := tui.Run()
			applog.SetOutput(prev)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			return a.writeSelection(sel, write)
		},
	}
	cmd.Flags().StringVar(&write, "write", "", "Write the resulting configuration to this file instead of stdout")
	return cmd
}

// writeSelection merges the picked settings into the current configuration
// and emits it as YAML.
func (a *app) writeSelection(sel tui.Selection, path string) error {
	cfg := *a.cfg
	cfg.Audio.InputDevice = sel.DeviceID
	cfg.Audio.SampleRate = sel.SampleRate
	cfg.Analysis.Window = sel.Window.String()
	cfg.Analysis.FrameLength = sel.FrameLength
	if cfg.Analysis.ShiftSize > sel.FrameLength {
		cfg.Analysis.ShiftSize = sel.FrameLength / 2
	}
	if cfg.Audio.FramesPerBuffer > sel.FrameLength {
		cfg.Audio.FramesPerBuffer = sel.FrameLength / 2
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	if path == "" {
		_, err = a.out.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	okColor.Fprintf(a.out, "Configuration for %q written to %s\n", sel.DeviceName, path)
	return nil
}

func newStreamsCmd(a *app) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "streams",
		Short: "List the streams stored by 'analyze --store'",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			streams, err := st.Streams(cmd.Context())
			if err != nil {
				return err
			}
			if len(streams) == 0 {
				warnColor.Fprintln(a.out, "No streams stored.")
				return nil
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tRATE\tFRAME\tSHIFT\tWINDOW\tFRAMES\tCREATED")
			for _, s := range streams {
				kind := s.Kind.String()
				if !s.Windowed {
					kind = "none"
				}
				fmt.Fprintf(tw, "%d\t%s\t%.0f\t%d\t%d\t%s\t%d\t%s\n",
					s.ID, s.Name, s.SampleRate, s.FrameLength, s.ShiftSize, kind, s.Frames,
					s.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&dbPath, "store", "spectra.db", "SQLite database")
	return cmd
}

func newWindowCmd(a *app) *cobra.Command {
	var inverted bool
	cmd := &cobra.Command{
		Use:   "window KIND N",
		Short: "Print the weights of a window",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := window.ParseKind(args[0])
			if err != nil {
				return err
			}
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid length %q: %w", args[1], err)
			}
			w, err := window.New(kind, n)
			if err != nil {
				return err
			}
			if inverted {
				if w, err = w.Inverted(); err != nil {
					return err
				}
			}
			for i, v := range w.Weights() {
				fmt.Fprintf(a.out, "%d\t%.10f\n", i, v)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&inverted, "inverted", false, "Print the inverted (synthesis) window")
	return cmd
}
