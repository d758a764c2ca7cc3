// SPDX-License-Identifier: MIT

// Package cmd implements the notescope command line.
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"notescope/internal/config"
	"notescope/internal/filter"
	applog "notescope/internal/log"
	"notescope/internal/region"
	"notescope/internal/session"
	"notescope/internal/transport"
	"notescope/internal/waveform"
	"notescope/pkg/build"
)

// app carries the state shared by every subcommand.
type app struct {
	out        io.Writer
	configPath string
	verbose    bool
	cfg        *config.Config
}

// Execute runs the command line with args, writing results to out. It
// returns the first error a command produced; ExitCode maps it to a
// process exit status.
func Execute(ctx context.Context, args []string, out io.Writer) error {
	root := newRootCommand(out)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCommand(out io.Writer) *cobra.Command {
	a := &app{out: out}
	info := build.Current()

	rootCmd := &cobra.Command{
		Use:           info.Name,
		Short:         "Select a region of a recording, analyse its spectrum and map it to notes",
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
			return a.loadConfig()
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageErrorf("%v", err)
	})

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "",
		"Path to the YAML configuration (default: ./"+config.FileName+")")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false,
		"Show verbose output")

	rootCmd.AddCommand(
		a.infoCommand(),
		a.selectCommand(),
		a.filterCommand(),
		a.analyzeCommand(),
		a.notesCommand(),
		a.nearestCommand(),
		a.reconstructCommand(),
		a.playCommand(),
		a.processCommand(),
		a.serveCommand(),
		a.devicesCommand(),
	)
	return rootCmd
}

func (a *app) loadConfig() error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	applog.Configure(cfg.LogLevel, a.verbose || cfg.Debug)
	a.cfg = cfg
	return nil
}

// openSession creates a session from cfg and loads path into it. The
// session owns pub, which may be nil, and closes it on failure.
func (a *app) openSession(cfg config.Config, path string, pub transport.Transport) (*session.Session, error) {
	s, err := session.New(cfg, session.WithPublisher(pub))
	if err != nil {
		if pub != nil {
			pub.Close()
		}
		return nil, err
	}
	if _, err := s.Load(path); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// regionFlags holds --start/--end. Without either flag the whole file is
// selected; without --end the region runs to the end of the file.
type regionFlags struct {
	start float64
	end   float64
}

func (r *regionFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&r.start, "start", 0, "Region start in seconds")
	cmd.Flags().Float64Var(&r.end, "end", 0, "Region end in seconds (default: end of file)")
}

func (r *regionFlags) selectIn(cmd *cobra.Command, s *session.Session) (waveform.Buffer, error) {
	startSet, endSet := cmd.Flags().Changed("start"), cmd.Flags().Changed("end")
	if !startSet && !endSet {
		return s.SelectAll()
	}
	end := r.end
	if !endSet {
		buf, err := s.Store().Current()
		if err != nil {
			return waveform.Buffer{}, err
		}
		end = buf.Duration()
	}
	return s.Select(region.TimeRegion{Start: r.start, End: end})
}

// filterFlags holds the band-pass overrides.
type filterFlags struct {
	enabled bool
	low     float64
	high    float64
	order   int
}

func (f *filterFlags) register(cmd *cobra.Command, withSwitch bool) {
	if withSwitch {
		cmd.Flags().BoolVar(&f.enabled, "filter", false, "Band-pass the region before analysis")
	}
	cmd.Flags().Float64Var(&f.low, "low", 0, "Lower cutoff in Hz (default from config)")
	cmd.Flags().Float64Var(&f.high, "high", 0, "Upper cutoff in Hz (default from config)")
	cmd.Flags().IntVar(&f.order, "order", 0, "Butterworth order of each edge (default from config)")
}

// apply writes the overrides into fc.
func (f *filterFlags) apply(cmd *cobra.Command, fc *config.FilterConfig) {
	if cmd.Flags().Changed("filter") {
		fc.Enabled = f.enabled
	}
	if cmd.Flags().Changed("low") {
		fc.Low = f.low
	}
	if cmd.Flags().Changed("high") {
		fc.High = f.high
	}
	if cmd.Flags().Changed("order") {
		fc.Order = f.order
	}
}

func specOf(fc config.FilterConfig) filter.Spec {
	return filter.Spec{Low: fc.Low, High: fc.High, Order: fc.Order}
}
