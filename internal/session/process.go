// SPDX-License-Identifier: MIT
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"notescope/internal/audio"
	"notescope/internal/config"
	"notescope/internal/interchange"
	applog "notescope/internal/log"
	"notescope/internal/reconstruct"
	"notescope/internal/spectral"
	"notescope/internal/transport"
	"notescope/internal/waveform"
)

// ReconstructionInfo is the payload of a transport.TypeReconstruct message.
type ReconstructionInfo struct {
	SampleRate int     `json:"sampleRate"`
	Samples    int     `json:"samples"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
}

// Reconstruct inverts the last spectrum back into a waveform.
func (s *Session) Reconstruct(ctx context.Context) (waveform.Buffer, error) {
	spec, err := s.Spectrum()
	if err != nil {
		return waveform.Buffer{}, err
	}
	buf, err := reconstruct.Reconstruct(ctx, s.transformer, spec)
	if err != nil {
		return waveform.Buffer{}, err
	}
	s.setReconstructed(buf)
	return buf, nil
}

// SetReconstructed installs a waveform obtained elsewhere, e.g. a
// precomputed inverse file, as the one Play uses.
func (s *Session) SetReconstructed(buf waveform.Buffer) error {
	if err := buf.Validate(); err != nil {
		return err
	}
	s.setReconstructed(buf)
	return nil
}

func (s *Session) setReconstructed(buf waveform.Buffer) {
	s.reconstructed = &buf
	lo, hi := buf.Bounds()
	s.publish(transport.TypeReconstruct, ReconstructionInfo{
		SampleRate: buf.SampleRate,
		Samples:    buf.Len(),
		Min:        lo,
		Max:        hi,
	})
}

// Play sends the reconstructed waveform, reconstructing it first if needed,
// to the sink with the configured gain. When playback.export_path is set the
// prepared buffer is also written as WAV, even if playback failed after
// preparation.
func (s *Session) Play(ctx context.Context) (waveform.Buffer, error) {
	if s.reconstructed == nil {
		if _, err := s.Reconstruct(ctx); err != nil {
			return waveform.Buffer{}, err
		}
	}

	pc := s.cfg.Playback
	prepared, playErr := reconstruct.Play(ctx, s.sink, *s.reconstructed, pc.Gain)
	if prepared.Len() > 0 && pc.ExportPath != "" {
		if err := s.Export(prepared, pc.ExportPath); err != nil {
			return prepared, err
		}
	}
	return prepared, playErr
}

// Export writes buf as WAV with the configured bit depth.
func (s *Session) Export(buf waveform.Buffer, path string) error {
	if err := audio.WriteWAV(path, buf, s.cfg.Playback.BitDepth); err != nil {
		return fmt.Errorf("session %s: export: %w", s.ID, err)
	}
	return nil
}

// ProcessResult lists what Process produced.
type ProcessResult struct {
	Dir      string
	External bool // true when the external program computed the spectrum
	Spectrum spectral.Spectrum
	Inverse  waveform.Buffer
	Filtered *waveform.Buffer
}

// Process runs the file based flow on the selection. The region dump and
// its sample rate are written to dir, the spectrum and the inverse are
// computed by the external program when it is enabled (in-process
// otherwise) and written back to dir as interchange files.
func (s *Session) Process(ctx context.Context, dir string) (ProcessResult, error) {
	sel, err := s.Selection()
	if err != nil {
		return ProcessResult{}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ProcessResult{}, fmt.Errorf("session %s: %w", s.ID, err)
	}

	files := withDefaultNames(s.cfg.Collaborator.Files)
	if err := interchange.WriteSamples(filepath.Join(dir, files.Region), sel.Samples); err != nil {
		return ProcessResult{}, err
	}
	if err := interchange.WriteSampleRate(filepath.Join(dir, files.SampleRate), sel.SampleRate); err != nil {
		return ProcessResult{}, err
	}

	res, err := s.transform(ctx, sel)
	if err != nil {
		return ProcessResult{}, err
	}
	res.Dir = dir

	if err := interchange.WriteSpectrum(filepath.Join(dir, files.Spectrum), res.Spectrum.Bins); err != nil {
		return ProcessResult{}, err
	}
	if err := interchange.WriteSamples(filepath.Join(dir, files.Inverse), res.Inverse.Samples); err != nil {
		return ProcessResult{}, err
	}
	if res.Filtered != nil {
		if err := interchange.WriteSamples(filepath.Join(dir, files.Filtered), res.Filtered.Samples); err != nil {
			return ProcessResult{}, err
		}
	}

	spec := res.Spectrum
	s.spectrum = &spec
	s.setReconstructed(res.Inverse)
	applog.Infof("Session %s: processed %d samples into %s (external: %v)", s.ID, sel.Len(), dir, res.External)
	return res, nil
}

// transform runs the external program when it is enabled and available,
// falling back to the in-process transformer only when it is missing and
// the fallback is allowed.
func (s *Session) transform(ctx context.Context, sel waveform.Buffer) (ProcessResult, error) {
	if s.process != nil {
		_, err := s.process.Available()
		switch {
		case err == nil:
			out, err := s.process.Run(ctx, sel)
			if err != nil {
				return ProcessResult{}, err
			}
			return ProcessResult{External: true, Spectrum: out.Spectrum, Inverse: out.Inverse, Filtered: out.Filtered}, nil
		case !s.cfg.Collaborator.Fallback:
			return ProcessResult{}, err
		default:
			applog.Warnf("Session %s: %v; using in-process transform", s.ID, err)
		}
	}

	tr := s.transformer
	if s.process != nil {
		tr = s.inProcess
	}
	spec, err := tr.Forward(ctx, sel)
	if err != nil {
		return ProcessResult{}, err
	}
	inv, err := tr.Inverse(ctx, spec)
	if err != nil {
		return ProcessResult{}, err
	}
	return ProcessResult{Spectrum: spec, Inverse: inv}, nil
}

// withDefaultNames fills unset file names with the interchange defaults.
func withDefaultNames(f config.FilesConfig) config.FilesConfig {
	pick := func(name, def string) string {
		if name == "" {
			return def
		}
		return name
	}
	return config.FilesConfig{
		Region:     pick(f.Region, interchange.RegionFile),
		SampleRate: pick(f.SampleRate, interchange.SampleRateFile),
		Cutoff:     pick(f.Cutoff, interchange.CutoffFile),
		Filtered:   pick(f.Filtered, interchange.FilteredFile),
		Spectrum:   pick(f.Spectrum, interchange.SpectrumFile),
		Inverse:    pick(f.Inverse, interchange.InverseFile),
	}
}
