// SPDX-License-Identifier: MIT
package spectral

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	applog "notescope/internal/log"
	"notescope/internal/waveform"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// ErrUnknownTransformer is returned by NewTransformer for unsupported names.
var ErrUnknownTransformer = errors.New("unknown transformer")

// Transformer computes a forward spectrum and its inverse. Forward returns
// exactly one bin per input sample; Inverse returns the real part of the
// normalised inverse transform so that Inverse(Forward(b)) reproduces b.
type Transformer interface {
	Forward(ctx context.Context, buf waveform.Buffer) (Spectrum, error)
	Inverse(ctx context.Context, s Spectrum) (waveform.Buffer, error)
}

// Compile-time checks for interface implementations.
var _ Transformer = (*Gonum)(nil)
var _ Transformer = GoDSP{}

// Gonum transforms with gonum's mixed-radix complex FFT, which handles any N.
// Plans are cached per length; a Gonum value is safe for concurrent use.
type Gonum struct {
	mu    sync.Mutex
	plans map[int]*fourier.CmplxFFT
}

// NewGonum returns a Gonum transformer with an empty plan cache.
func NewGonum() *Gonum {
	return &Gonum{plans: make(map[int]*fourier.CmplxFFT)}
}

// plan returns the cached FFT for n. Callers hold g.mu.
func (g *Gonum) plan(n int) *fourier.CmplxFFT {
	if g.plans == nil {
		g.plans = make(map[int]*fourier.CmplxFFT)
	}
	p, ok := g.plans[n]
	if !ok {
		p = fourier.NewCmplxFFT(n)
		g.plans[n] = p
	}
	return p
}

// Forward implements Transformer.
func (g *Gonum) Forward(ctx context.Context, buf waveform.Buffer) (Spectrum, error) {
	if err := checkForward(ctx, buf); err != nil {
		return Spectrum{}, err
	}
	n := buf.Len()
	if n == 0 {
		return Spectrum{Bins: []complex128{}, SampleRate: buf.SampleRate}, nil
	}

	seq := make([]complex128, n)
	for i, v := range buf.Samples {
		seq[i] = complex(v, 0)
	}

	g.mu.Lock()
	bins := g.plan(n).Coefficients(nil, seq)
	g.mu.Unlock()

	applog.Debugf("Spectral: gonum forward transform of %d samples @ %d Hz", n, buf.SampleRate)
	return Spectrum{Bins: bins, SampleRate: buf.SampleRate}, nil
}

// Inverse implements Transformer. gonum's inverse is unnormalised, so the
// sequence is divided by N here.
func (g *Gonum) Inverse(ctx context.Context, s Spectrum) (waveform.Buffer, error) {
	if err := checkInverse(ctx, s); err != nil {
		return waveform.Buffer{}, err
	}
	n := s.Len()
	if n == 0 {
		return waveform.New(nil, s.SampleRate)
	}

	g.mu.Lock()
	seq := g.plan(n).Sequence(nil, s.Bins)
	g.mu.Unlock()

	scale := 1 / float64(n)
	samples := make([]float64, n)
	for i, c := range seq {
		samples[i] = real(c) * scale
	}

	applog.Debugf("Spectral: gonum inverse transform of %d bins", n)
	return waveform.New(samples, s.SampleRate)
}

// GoDSP transforms with github.com/mjibson/go-dsp, which pads nothing and
// falls back to Bluestein's algorithm for lengths that are not powers of two.
type GoDSP struct{}

// Forward implements Transformer.
func (GoDSP) Forward(ctx context.Context, buf waveform.Buffer) (Spectrum, error) {
	if err := checkForward(ctx, buf); err != nil {
		return Spectrum{}, err
	}
	if buf.Len() == 0 {
		return Spectrum{Bins: []complex128{}, SampleRate: buf.SampleRate}, nil
	}

	bins := fft.FFTReal(buf.Samples)
	applog.Debugf("Spectral: go-dsp forward transform of %d samples @ %d Hz", buf.Len(), buf.SampleRate)
	return Spectrum{Bins: bins, SampleRate: buf.SampleRate}, nil
}

// Inverse implements Transformer. go-dsp's IFFT is already normalised.
func (GoDSP) Inverse(ctx context.Context, s Spectrum) (waveform.Buffer, error) {
	if err := checkInverse(ctx, s); err != nil {
		return waveform.Buffer{}, err
	}
	if s.Len() == 0 {
		return waveform.New(nil, s.SampleRate)
	}

	seq := fft.IFFT(s.Bins)
	samples := make([]float64, len(seq))
	for i, c := range seq {
		samples[i] = real(c)
	}

	applog.Debugf("Spectral: go-dsp inverse transform of %d bins", s.Len())
	return waveform.New(samples, s.SampleRate)
}

// NewTransformer selects an in-process transformer by name. The empty name
// selects gonum.
func NewTransformer(name string) (Transformer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gonum":
		return NewGonum(), nil
	case "godsp", "go-dsp":
		return GoDSP{}, nil
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownTransformer, name)
	}
}

func checkForward(ctx context.Context, buf waveform.Buffer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return buf.Validate()
}

func checkInverse(ctx context.Context, s Spectrum) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.SampleRate <= 0 {
		return fmt.Errorf("%w: got %d", waveform.ErrInvalidSampleRate, s.SampleRate)
	}
	return nil
}
