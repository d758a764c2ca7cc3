// SPDX-License-Identifier: MIT
package cmd

import (
	"strconv"

	"github.com/spf13/cobra"

	"notescope/internal/interchange"
	applog "notescope/internal/log"
	"notescope/internal/notes"
	"notescope/internal/session"
	"notescope/internal/spectral"
)

func (a *app) infoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info FILE",
		Short: "Show sample rate, length and duration of a recording",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(*a.cfg, args[0], nil)
			if err != nil {
				return err
			}
			defer s.Close()

			buf, _ := s.Store().Current()
			lo, hi := buf.Bounds()
			a.printf("File:        %s\n", args[0])
			a.printf("Sample rate: %d Hz\n", buf.SampleRate)
			a.printf("Samples:     %d\n", buf.Len())
			a.printf("Duration:    %.3f s\n", buf.Duration())
			a.printf("Range:       [%.4f, %.4f]\n", lo, hi)
			return nil
		},
	}
}

func (a *app) selectCommand() *cobra.Command {
	var (
		rf  regionFlags
		out string
	)
	cmd := &cobra.Command{
		Use:   "select FILE",
		Short: "Copy a time region of a recording and dump it one sample per line",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(*a.cfg, args[0], nil)
			if err != nil {
				return err
			}
			defer s.Close()

			sel, err := rf.selectIn(cmd, s)
			if err != nil {
				return err
			}
			a.printf("Selected %d samples @ %d Hz (%.3f s)\n", sel.Len(), sel.SampleRate, sel.Duration())
			if out == "" {
				return nil
			}
			if err := interchange.WriteSamples(out, sel.Samples); err != nil {
				return err
			}
			a.printf("Wrote %s\n", out)
			return nil
		},
	}
	rf.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the region to this file")
	return cmd
}

func (a *app) filterCommand() *cobra.Command {
	var (
		rf  regionFlags
		ff  filterFlags
		out string
	)
	cmd := &cobra.Command{
		Use:   "filter FILE",
		Short: "Band-pass a region with a zero-phase Butterworth filter",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *a.cfg
			ff.apply(cmd, &cfg.Filter)
			s, err := a.openSession(cfg, args[0], nil)
			if err != nil {
				return err
			}
			defer s.Close()

			if _, err := rf.selectIn(cmd, s); err != nil {
				return err
			}
			spec := specOf(cfg.Filter)
			filtered, err := s.Filter(spec)
			if err != nil {
				return err
			}
			a.printf("Filtered %d samples with %s\n", filtered.Len(), spec)
			if out == "" {
				return nil
			}
			if err := interchange.WriteSamples(out, filtered.Samples); err != nil {
				return err
			}
			a.printf("Wrote %s\n", out)
			return nil
		},
	}
	rf.register(cmd)
	ff.register(cmd, false)
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the filtered region to this file")
	return cmd
}

func (a *app) analyzeCommand() *cobra.Command {
	var (
		rf          regionFlags
		ff          filterFlags
		window      string
		top         int
		legacyAxis  bool
		transformer string
		external    bool
		spectrumOut string
	)
	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Compute the spectrum of a region and map its peaks to notes",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *a.cfg
			ff.apply(cmd, &cfg.Filter)
			if cmd.Flags().Changed("window") {
				cfg.Analysis.Window = window
			}
			if cmd.Flags().Changed("top") {
				cfg.Analysis.TopPeaks = top
			}
			if cmd.Flags().Changed("legacy-axis") {
				cfg.Analysis.LegacyAxis = legacyAxis
			}
			if cmd.Flags().Changed("transformer") {
				cfg.Analysis.Transformer = transformer
			}
			if external {
				cfg.Collaborator.Enabled = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			pub, err := a.publishers(cfg, "")
			if err != nil {
				return err
			}
			s, err := a.openSession(cfg, args[0], pub)
			if err != nil {
				return err
			}
			defer s.Close()

			if _, err := rf.selectIn(cmd, s); err != nil {
				return err
			}
			if _, err := s.FilterFromConfig(); err != nil {
				return err
			}
			res, err := s.Analyze(cmd.Context(), session.AnalyzeOptions{})
			if err != nil {
				return err
			}
			a.printAnalysis(res)

			if spectrumOut == "" {
				return nil
			}
			if err := interchange.WriteSpectrum(spectrumOut, res.Spectrum.Bins); err != nil {
				return err
			}
			a.printf("Wrote %s\n", spectrumOut)
			return nil
		},
	}
	rf.register(cmd)
	ff.register(cmd, true)
	cmd.Flags().StringVarP(&window, "window", "w", "", "Window function applied before the transform (none, hann, hamming, ...)")
	cmd.Flags().IntVarP(&top, "top", "k", 0, "Number of peaks to report (default from config)")
	cmd.Flags().BoolVar(&legacyAxis, "legacy-axis", false, "Label bins by index instead of Hz, as older plots did")
	cmd.Flags().StringVar(&transformer, "transformer", "", "In-process transform: gonum or godsp")
	cmd.Flags().BoolVar(&external, "external", false, "Compute the spectrum with the external program")
	cmd.Flags().StringVar(&spectrumOut, "spectrum-out", "", "Write the spectrum as 'real imag' lines to this file")
	return cmd
}

func (a *app) printAnalysis(res session.Analysis) {
	spec := res.Spectrum
	a.printf("Bins:       %d @ %d Hz\n", spec.Len(), spec.SampleRate)
	a.printf("Resolution: %.4f Hz\n", spec.Resolution())
	a.printf("Window:     %s\n", res.Window)
	a.printf("Axis:       %s\n", res.Axis)
	if res.DominantNote != nil {
		a.printf("Dominant:   %.2f Hz  %s (%+.1f cents)\n",
			res.Dominant, res.DominantNote.Name, notes.Cents(res.Dominant, *res.DominantNote))
	} else {
		a.printf("Dominant:   none\n")
	}

	unit := "Hz"
	if res.Axis == spectral.AxisLegacyIndex {
		unit = "idx"
	}
	a.printf("\n%4s %8s %12s %14s %6s %8s\n", "#", "bin", unit, "magnitude", "note", "cents")
	for i, p := range res.Peaks {
		name, cents := "-", "-"
		if p.Note != nil {
			name = p.Note.Name
			cents = strconv.FormatFloat(p.Cents, 'f', 1, 64)
		}
		a.printf("%4d %8d %12.2f %14.4f %6s %8s\n", i+1, p.Bin, p.Frequency, p.Magnitude, name, cents)
	}

	a.printf("\n%-8s %16s %12s\n", "band", "range (Hz)", "level")
	for _, b := range res.Bands {
		high := "nyq"
		if b.High > 0 {
			high = strconv.FormatFloat(b.High, 'f', 0, 64)
		}
		a.printf("%-8s %16s %12.4f\n", b.Name, strconv.FormatFloat(b.Low, 'f', 0, 64)+"-"+high, b.Level)
	}
}

func (a *app) notesCommand() *cobra.Command {
	var lo, hi float64
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Print the equal-temperament note table",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("min") {
				lo = a.cfg.Analysis.NoteMin
			}
			if !cmd.Flags().Changed("max") {
				hi = a.cfg.Analysis.NoteMax
			}
			if hi < lo {
				return usageErrorf("--max %.2f is below --min %.2f", hi, lo)
			}
			for _, e := range notes.BuildTable().Range(lo, hi) {
				a.printf("%-4s %10.2f Hz\n", e.Name, e.Frequency)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&lo, "min", 0, "Lowest frequency in Hz (default from config)")
	cmd.Flags().Float64Var(&hi, "max", 0, "Highest frequency in Hz (default from config)")
	return cmd
}

func (a *app) nearestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "nearest FREQ",
		Short: "Find the note closest to a frequency in Hz",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			freq, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return usageErrorf("invalid frequency %q", args[0])
			}
			e, err := notes.Nearest(freq)
			if err != nil {
				return err
			}
			applog.Debugf("Nearest: %v -> %s", freq, e)
			a.printf("%.2f Hz -> %s (%.2f Hz, %+.1f cents)\n", freq, e.Name, e.Frequency, notes.Cents(freq, e))
			return nil
		},
	}
}
