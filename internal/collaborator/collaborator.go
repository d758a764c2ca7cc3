// SPDX-License-Identifier: MIT

// Package collaborator runs the external native transform program. The
// program reads its inputs from fixed file names in its working directory and
// writes the spectrum and inverse transform back next to them, so every run
// gets its own scratch directory.
package collaborator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"notescope/internal/interchange"
	applog "notescope/internal/log"
	"notescope/internal/spectral"
	"notescope/internal/waveform"

	"github.com/google/uuid"
)

// ErrExternalProcess is wrapped by every *ProcessError.
var ErrExternalProcess = errors.New("external process failed")

// Seam for tests.
var lookPath = exec.LookPath

// ProcessError describes a failed run. ExitCode is -1 when the program never
// started or was killed.
type ProcessError struct {
	Path     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("external process %s", e.Path)
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(" exited with code %d", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *ProcessError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrExternalProcess}
	}
	return []error{ErrExternalProcess, e.Err}
}

// Files names the interchange files inside the scratch directory.
type Files struct {
	Region     string
	SampleRate string
	Cutoff     string
	Filtered   string
	Spectrum   string
	Inverse    string
}

// DefaultFiles returns the names the native program expects.
func DefaultFiles() Files {
	return Files{
		Region:     interchange.RegionFile,
		SampleRate: interchange.SampleRateFile,
		Cutoff:     interchange.CutoffFile,
		Filtered:   interchange.FilteredFile,
		Spectrum:   interchange.SpectrumFile,
		Inverse:    interchange.InverseFile,
	}
}

// Options configures a Process.
type Options struct {
	Path      string        // executable, looked up in PATH when it has no separator
	WorkDir   string        // parent of the per-run scratch directories; os.TempDir when empty
	Timeout   time.Duration // 0 disables the timeout
	KeepFiles bool          // leave scratch directories behind for inspection
	Cutoff    float64       // written to the cutoff file when > 0
	Files     Files
}

// Result holds everything one run produced.
type Result struct {
	Spectrum spectral.Spectrum
	Inverse  waveform.Buffer
	Filtered *waveform.Buffer // nil when the program wrote no filtered dump
	Dir      string
}

// Process is a spectral.Transformer backed by the native program. Only the
// forward direction runs externally; Inverse uses the in-process transformer
// because the program derives its inverse from the region, not from a
// supplied spectrum.
type Process struct {
	opts    Options
	inverse spectral.Transformer
}

var _ spectral.Transformer = (*Process)(nil)

// New returns a Process. Empty file names fall back to DefaultFiles.
func New(opts Options) *Process {
	def := DefaultFiles()
	f := &opts.Files
	f.Region = orDefault(f.Region, def.Region)
	f.SampleRate = orDefault(f.SampleRate, def.SampleRate)
	f.Cutoff = orDefault(f.Cutoff, def.Cutoff)
	f.Filtered = orDefault(f.Filtered, def.Filtered)
	f.Spectrum = orDefault(f.Spectrum, def.Spectrum)
	f.Inverse = orDefault(f.Inverse, def.Inverse)
	return &Process{opts: opts, inverse: spectral.NewGonum()}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Available resolves the executable, returning a *ProcessError when it
// cannot be found.
func (p *Process) Available() (string, error) {
	path, err := lookPath(p.opts.Path)
	if err != nil {
		return "", &ProcessError{Path: p.opts.Path, ExitCode: -1, Err: err}
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path, nil
}

// Forward implements spectral.Transformer.
func (p *Process) Forward(ctx context.Context, buf waveform.Buffer) (spectral.Spectrum, error) {
	res, err := p.Run(ctx, buf)
	if err != nil {
		return spectral.Spectrum{}, err
	}
	return res.Spectrum, nil
}

// Inverse implements spectral.Transformer in-process.
func (p *Process) Inverse(ctx context.Context, s spectral.Spectrum) (waveform.Buffer, error) {
	return p.inverse.Inverse(ctx, s)
}

// Run writes buf and its sample rate into a fresh scratch directory, runs the
// program there and reads back its spectrum and inverse dumps.
func (p *Process) Run(ctx context.Context, buf waveform.Buffer) (Result, error) {
	if err := buf.Validate(); err != nil {
		return Result{}, err
	}
	exe, err := p.Available()
	if err != nil {
		return Result{}, err
	}

	dir, err := p.scratchDir()
	if err != nil {
		return Result{}, err
	}
	if p.opts.KeepFiles {
		applog.Infof("Collaborator: keeping scratch directory %s", dir)
	} else {
		defer os.RemoveAll(dir)
	}

	if err := p.writeInputs(dir, buf); err != nil {
		return Result{}, err
	}
	if err := p.execute(ctx, exe, dir); err != nil {
		return Result{}, err
	}
	return p.readOutputs(dir, buf)
}

func (p *Process) scratchDir() (string, error) {
	parent := p.opts.WorkDir
	if parent == "" {
		parent = os.TempDir()
	}
	dir := filepath.Join(parent, "notescope-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create scratch directory: %w", err)
	}
	return dir, nil
}

func (p *Process) writeInputs(dir string, buf waveform.Buffer) error {
	f := p.opts.Files
	if err := interchange.WriteSamples(filepath.Join(dir, f.Region), buf.Samples); err != nil {
		return err
	}
	if err := interchange.WriteSampleRate(filepath.Join(dir, f.SampleRate), buf.SampleRate); err != nil {
		return err
	}
	if p.opts.Cutoff > 0 {
		if err := interchange.WriteCutoff(filepath.Join(dir, f.Cutoff), p.opts.Cutoff); err != nil {
			return err
		}
	}
	return nil
}

func (p *Process) execute(ctx context.Context, exe, dir string) error {
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, exe)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	applog.Debugf("Collaborator: running %s in %s", exe, dir)
	err := cmd.Run()
	if out := strings.TrimSpace(stdout.String()); out != "" {
		applog.Debugf("Collaborator: %s", out)
	}
	if err == nil {
		applog.Infof("Collaborator: %s finished in %s", filepath.Base(exe), time.Since(start).Round(time.Millisecond))
		return nil
	}

	perr := &ProcessError{Path: exe, ExitCode: -1, Stderr: stderr.String(), Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		perr.ExitCode = exitErr.ExitCode()
		perr.Err = nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		perr.ExitCode = -1
		perr.Err = ctxErr
	}
	return perr
}

func (p *Process) readOutputs(dir string, buf waveform.Buffer) (Result, error) {
	f := p.opts.Files
	res := Result{Dir: dir}

	specPath := filepath.Join(dir, f.Spectrum)
	bins, err := interchange.ReadSpectrum(specPath)
	if err != nil {
		return Result{}, p.outputError(err)
	}
	if len(bins) != buf.Len() {
		return Result{}, &interchange.FormatError{
			Source: specPath,
			Reason: fmt.Sprintf("got %d bins for %d samples", len(bins), buf.Len()),
		}
	}
	res.Spectrum = spectral.Spectrum{Bins: bins, SampleRate: buf.SampleRate}

	inverse, err := interchange.ReadSamples(filepath.Join(dir, f.Inverse))
	if err != nil {
		return Result{}, p.outputError(err)
	}
	res.Inverse = waveform.Buffer{Samples: inverse, SampleRate: buf.SampleRate}

	if filtered, err := interchange.ReadSamples(filepath.Join(dir, f.Filtered)); err == nil {
		res.Filtered = &waveform.Buffer{Samples: filtered, SampleRate: buf.SampleRate}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Result{}, p.outputError(err)
	}

	applog.Debugf("Collaborator: read %d bins and %d inverse samples", len(bins), len(inverse))
	return res, nil
}

// outputError marks a missing output file as a process failure; malformed
// files keep their interchange error.
func (p *Process) outputError(err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return &ProcessError{Path: p.opts.Path, ExitCode: 0, Err: err}
	}
	return err
}

// WithFallback returns a Transformer that runs p when its executable exists
// and otherwise uses fallback. Failures of an existing program are returned,
// never replaced by the fallback result.
func WithFallback(p *Process, fallback spectral.Transformer) spectral.Transformer {
	return &fallbackTransformer{primary: p, fallback: fallback}
}

type fallbackTransformer struct {
	primary  *Process
	fallback spectral.Transformer
}

func (t *fallbackTransformer) Forward(ctx context.Context, buf waveform.Buffer) (spectral.Spectrum, error) {
	if _, err := t.primary.Available(); err != nil {
		applog.Warnf("Collaborator: %v; using in-process transform", err)
		return t.fallback.Forward(ctx, buf)
	}
	return t.primary.Forward(ctx, buf)
}

func (t *fallbackTransformer) Inverse(ctx context.Context, s spectral.Spectrum) (waveform.Buffer, error) {
	return t.fallback.Inverse(ctx, s)
}
