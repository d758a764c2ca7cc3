// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"notescope/internal/audio"
	"notescope/internal/config"
	"notescope/internal/interchange"
	applog "notescope/internal/log"
	"notescope/internal/reconstruct"
	"notescope/internal/session"
	"notescope/internal/spectral"
	"notescope/internal/waveform"
	"notescope/pkg/bitint"
)

// playbackFlags holds the output overrides shared by reconstruct and play.
type playbackFlags struct {
	gain   float64
	wav    string
	device int
	frames int
}

func (p *playbackFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64VarP(&p.gain, "gain", "g", 0, "Gain applied before clipping (default from config)")
	cmd.Flags().StringVar(&p.wav, "wav", "", "Also write the prepared signal to this WAV file")
	cmd.Flags().IntVarP(&p.device, "device", "d", audio.DefaultDeviceID,
		"Output device ID. Use 'devices' to list them")
	cmd.Flags().IntVarP(&p.frames, "frames-per-buffer", "b", 0,
		"Frames per buffer, rounded up to a power of two (default from config)")
}

func (p *playbackFlags) apply(cmd *cobra.Command, pc *config.PlaybackConfig) {
	if cmd.Flags().Changed("gain") {
		pc.Gain = p.gain
	}
	if p.wav != "" {
		pc.ExportPath = p.wav
	}
	if cmd.Flags().Changed("device") {
		pc.OutputDevice = p.device
	}
	if cmd.Flags().Changed("frames-per-buffer") {
		frames := bitint.NextPowerOfTwo(p.frames)
		if frames != p.frames {
			applog.Warnf("Playback: rounding %d frames per buffer up to %d", p.frames, frames)
		}
		pc.FramesPerBuffer = frames
	}
}

func (a *app) reconstructCommand() *cobra.Command {
	var (
		pf          playbackFlags
		spectrumIn  string
		inverseIn   string
		rate        int
		transformer string
		play        bool
	)
	cmd := &cobra.Command{
		Use:   "reconstruct",
		Short: "Rebuild a waveform from a spectrum or inverse dump and play or export it",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *a.cfg
			pf.apply(cmd, &cfg.Playback)
			if cmd.Flags().Changed("transformer") {
				cfg.Analysis.Transformer = transformer
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			input := spectrumIn
			if input == "" {
				input = inverseIn
			}
			r, err := resolveRate(rate, input, cfg.Collaborator.Files.SampleRate)
			if err != nil {
				return err
			}

			var buf waveform.Buffer
			if spectrumIn != "" {
				bins, err := interchange.ReadSpectrum(spectrumIn)
				if err != nil {
					return err
				}
				tr, err := spectral.NewTransformer(cfg.Analysis.Transformer)
				if err != nil {
					return err
				}
				buf, err = reconstruct.Reconstruct(cmd.Context(), tr, spectral.Spectrum{Bins: bins, SampleRate: r})
				if err != nil {
					return err
				}
			} else {
				buf, err = reconstruct.LoadInverse(inverseIn, r)
				if err != nil {
					return err
				}
			}
			a.printf("Reconstructed %d samples @ %d Hz\n", buf.Len(), buf.SampleRate)

			s, err := session.New(cfg)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.SetReconstructed(buf); err != nil {
				return err
			}
			return a.playOrExport(cmd, s, cfg.Playback, buf, play)
		},
	}
	pf.register(cmd)
	cmd.Flags().StringVar(&spectrumIn, "spectrum", "", "Spectrum dump ('real imag' per line) to invert")
	cmd.Flags().StringVar(&inverseIn, "inverse", "", "Precomputed inverse dump (one sample per line)")
	cmd.Flags().IntVarP(&rate, "rate", "r", 0, "Sample rate in Hz (default: the sample rate file next to the input)")
	cmd.Flags().StringVar(&transformer, "transformer", "", "In-process transform: gonum or godsp")
	cmd.Flags().BoolVarP(&play, "play", "p", false, "Play the result")
	cmd.MarkFlagsOneRequired("spectrum", "inverse")
	cmd.MarkFlagsMutuallyExclusive("spectrum", "inverse")
	return cmd
}

// resolveRate returns rate when positive, otherwise the rate stored in the
// sample rate file beside input.
func resolveRate(rate int, input, rateFile string) (int, error) {
	if rate > 0 {
		return rate, nil
	}
	if rate < 0 {
		return 0, usageErrorf("--rate %d must be positive", rate)
	}
	path := filepath.Join(filepath.Dir(input), rateFile)
	r, err := interchange.ReadSampleRate(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, usageErrorf("--rate not given and %s does not exist", path)
		}
		return 0, err
	}
	applog.Infof("Reconstruct: using sample rate %d from %s", r, path)
	return r, nil
}

// playOrExport plays buf through the session when play is set; otherwise it
// only prepares buf and writes the WAV export if one was requested.
func (a *app) playOrExport(cmd *cobra.Command, s *session.Session, pc config.PlaybackConfig, buf waveform.Buffer, play bool) error {
	if play {
		prepared, err := s.Play(cmd.Context())
		if err != nil {
			return err
		}
		a.printf("Played %d samples (%.3f s)\n", prepared.Len(), prepared.Duration())
		if pc.ExportPath != "" {
			a.printf("Wrote %s\n", pc.ExportPath)
		}
		return nil
	}
	if pc.ExportPath == "" {
		return nil
	}
	prepared, err := reconstruct.PrepareForPlayback(buf, pc.Gain)
	if err != nil {
		return err
	}
	if err := s.Export(prepared, pc.ExportPath); err != nil {
		return err
	}
	a.printf("Wrote %s\n", pc.ExportPath)
	return nil
}

func (a *app) playCommand() *cobra.Command {
	var (
		rf regionFlags
		ff filterFlags
		pf playbackFlags
	)
	cmd := &cobra.Command{
		Use:   "play FILE",
		Short: "Select, filter, transform and reconstruct a region, then play it",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *a.cfg
			ff.apply(cmd, &cfg.Filter)
			pf.apply(cmd, &cfg.Playback)
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
			if _, err := s.Analyze(cmd.Context(), session.AnalyzeOptions{}); err != nil {
				return err
			}
			buf, err := s.Reconstruct(cmd.Context())
			if err != nil {
				return err
			}
			return a.playOrExport(cmd, s, cfg.Playback, buf, true)
		},
	}
	rf.register(cmd)
	ff.register(cmd, true)
	pf.register(cmd)
	return cmd
}

func (a *app) processCommand() *cobra.Command {
	var (
		rf        regionFlags
		dir       string
		external  bool
		program   string
		keepFiles bool
		cutoff    float64
	)
	cmd := &cobra.Command{
		Use:   "process FILE",
		Short: "Dump a region, transform it and write the spectrum and inverse files",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *a.cfg
			if external {
				cfg.Collaborator.Enabled = true
			}
			if program != "" {
				cfg.Collaborator.Path = program
			}
			if cmd.Flags().Changed("keep-files") {
				cfg.Collaborator.KeepFiles = keepFiles
			}
			if cmd.Flags().Changed("cutoff") {
				cfg.Collaborator.Cutoff = cutoff
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

			sel, err := rf.selectIn(cmd, s)
			if err != nil {
				return err
			}
			res, err := s.Process(cmd.Context(), dir)
			if err != nil {
				return err
			}

			source := "in-process"
			if res.External {
				source = cfg.Collaborator.Path
			}
			files := cfg.Collaborator.Files
			a.printf("Region:   %d samples @ %d Hz\n", sel.Len(), sel.SampleRate)
			a.printf("Computed: %s\n", source)
			for _, name := range []string{files.Region, files.SampleRate, files.Spectrum, files.Inverse} {
				a.printf("Wrote %s\n", filepath.Join(res.Dir, name))
			}
			if res.Filtered != nil {
				a.printf("Wrote %s\n", filepath.Join(res.Dir, files.Filtered))
			}
			return nil
		},
	}
	rf.register(cmd)
	cmd.Flags().StringVar(&dir, "dir", ".", "Directory receiving the interchange files")
	cmd.Flags().BoolVar(&external, "external", false, "Run the external program (collaborator.path)")
	cmd.Flags().StringVar(&program, "program", "", "External program to run (default from config)")
	cmd.Flags().BoolVar(&keepFiles, "keep-files", false, "Keep the program's scratch directory")
	cmd.Flags().Float64Var(&cutoff, "cutoff", 0, "Cutoff frequency handed to the program in Hz")
	return cmd
}

func (a *app) devicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available audio output devices",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := audio.Initialize(); err != nil {
				return err
			}
			defer audio.Terminate()
			return audio.ListDevices(a.out)
		},
	}
}
