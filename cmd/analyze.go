// SPDX-License-Identifier: MIT
package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"time"

	"github.com/ismaelmosquera/imrlib-sub001/internal/analysis"
	"github.com/ismaelmosquera/imrlib-sub001/internal/frame"
	applog "github.com/ismaelmosquera/imrlib-sub001/internal/log"
	"github.com/ismaelmosquera/imrlib-sub001/internal/pipeline"
	"github.com/ismaelmosquera/imrlib-sub001/internal/store"
	"github.com/ismaelmosquera/imrlib-sub001/internal/wavio"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// Onset detector settings used by analyze.
const (
	onsetThreshold = 1e-4
	onsetRatio     = 4.0
)

// fileReport is the analysis summary of one file.
type fileReport struct {
	Path       string
	SampleRate int
	Duration   time.Duration
	Frames     int
	PeakHz     float64   // Strongest bin of the summed energy spectrum.
	Bands      []float64 // Mean band energy over all frames, DefaultBands order.
	BandNames  []string
	Onsets     int
	PSDPeakHz  float64
	StreamID   int64
}

// summary accumulates per-bin and per-band energy across frames.
type summary struct {
	bands  *analysis.BandEnergyProcessor
	energy []float64
	totals []float64
	frames int
}

func newSummary(sampleRate float64) *summary {
	bands := analysis.DefaultBands(sampleRate)
	return &summary{
		bands:  analysis.NewBandEnergyProcessor(nil, bands),
		totals: make([]float64, len(bands)),
	}
}

func (s *summary) ProcessSpectrum(spec *analysis.Spectrum) error {
	if err := s.bands.ProcessSpectrum(spec); err != nil {
		return err
	}
	for i, b := range s.bands.Bands() {
		s.totals[i] += b.Energy
	}
	// The final frame may be shorter; only full frames feed the bin sums.
	if s.energy == nil {
		s.energy = make([]float64, spec.Bins())
	}
	if spec.Bins() == len(s.energy) {
		for i, c := range spec.Coefficients {
			s.energy[i] += real(c)*real(c) + imag(c)*imag(c)
		}
	}
	s.frames++
	return nil
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		psd    bool
		dbPath string
		jobs   int
	)
	cmd := &cobra.Command{
		Use:   "analyze FILE...",
		Short: "Analyze WAV files frame by frame and print a summary",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var st *store.Store
			if dbPath != "" {
				var err error
				if st, err = store.Open(dbPath); err != nil {
					return err
				}
				defer st.Close()
			}

			if jobs < 1 {
				jobs = 1
			}
			reports := make([]fileReport, len(args))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(jobs)
			for i, path := range args {
				i, path := i, path
				g.Go(func() error {
					r, err := a.analyzeFile(ctx, path, psd, st)
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					reports[i] = r
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			for _, r := range reports {
				a.printReport(r)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&psd, "psd", false, "Also estimate the power spectral density (Welch)")
	cmd.Flags().StringVar(&dbPath, "store", "", "SQLite database to store the spectra in")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.NumCPU(), "Files analyzed concurrently")
	return cmd
}

// analyzeFile runs one file through its own pipeline.
func (a *app) analyzeFile(ctx context.Context, path string, psd bool, st *store.Store) (fileReport, error) {
	r, err := wavio.OpenReader(path)
	if err != nil {
		return fileReport{}, err
	}
	defer r.Close()
	pcm, err := io.ReadAll(r)
	if err != nil {
		return fileReport{}, err
	}

	rate := float64(r.SampleRate())
	an := a.cfg.Analysis
	p, err := pipeline.New(pipeline.Options{
		FrameLength:      an.FrameLength,
		ShiftSize:        a.cfg.Shift(),
		SampleRate:       rate,
		Window:           a.cfg.WindowKind(),
		DisableWindowing: !an.Windowing,
		Collect:          st != nil,
	})
	if err != nil {
		return fileReport{}, err
	}
	sum := newSummary(rate)
	onsets := analysis.NewOnsetDetector(onsetThreshold, onsetRatio, nil)
	p.Use(sum, onsets)

	stats, err := p.Run(ctx, bytes.NewReader(pcm), nil)
	if err != nil {
		return fileReport{}, err
	}

	report := fileReport{
		Path:       path,
		SampleRate: r.SampleRate(),
		Duration:   r.Duration(),
		Frames:     stats.Frames,
		Onsets:     len(onsets.Onsets()),
	}
	if sum.energy != nil {
		peak := 0
		for i, e := range sum.energy {
			if e > sum.energy[peak] {
				peak = i
			}
		}
		report.PeakHz = float64(peak) * rate / float64(an.FrameLength)
	}
	for i, b := range sum.bands.Bands() {
		report.BandNames = append(report.BandNames, b.Name)
		if sum.frames > 0 {
			report.Bands = append(report.Bands, sum.totals[i]/float64(sum.frames))
		}
	}

	if psd {
		samples, err := frame.Default(rate).ToFrame(pcm[:len(pcm)&^1])
		if err != nil {
			return fileReport{}, err
		}
		density, freqs, err := analysis.WelchPSD(samples, rate, a.cfg.WindowKind(), an.FrameLength, a.cfg.Shift())
		if err != nil {
			applog.Warnf("Analyze: Skipping PSD for %s: %v", path, err)
		} else {
			peak := 0
			for i, d := range density {
				if d > density[peak] {
					peak = i
				}
			}
			report.PSDPeakHz = freqs[peak]
		}
	}

	if st != nil {
		id, err := st.CreateStream(ctx, store.Stream{
			Name:        filepath.Base(path),
			SampleRate:  rate,
			FrameLength: an.FrameLength,
			ShiftSize:   a.cfg.Shift(),
			Kind:        a.cfg.WindowKind(),
			Windowed:    an.Windowing,
		})
		if err != nil {
			return fileReport{}, err
		}
		if err := st.SaveSpectra(ctx, id, p.Spectra()); err != nil {
			return fileReport{}, err
		}
		report.StreamID = id
	}
	return report, nil
}

func (a *app) printReport(r fileReport) {
	headerColor.Fprintf(a.out, "%s\n", r.Path)
	fmt.Fprintf(a.out, "  sample rate  %d Hz, %s\n", r.SampleRate, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(a.out, "  frames       %d (%s, length %d, shift %d)\n",
		r.Frames, a.cfg.WindowKind(), a.cfg.Analysis.FrameLength, a.cfg.Shift())
	fmt.Fprintf(a.out, "  peak         %.1f Hz\n", r.PeakHz)
	if r.PSDPeakHz > 0 {
		fmt.Fprintf(a.out, "  psd peak     %.1f Hz\n", r.PSDPeakHz)
	}
	fmt.Fprintf(a.out, "  onsets       %d\n", r.Onsets)
	for i, e := range r.Bands {
		fmt.Fprintf(a.out, "  %-12s %.4g\n", r.BandNames[i], e)
	}
	if r.StreamID != 0 {
		okColor.Fprintf(a.out, "  stored as stream %d\n", r.StreamID)
	}
}
