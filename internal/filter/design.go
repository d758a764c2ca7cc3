// SPDX-License-Identifier: MIT

// Package filter designs Butterworth band-limiting filters as cascades of
// second-order sections and applies them without phase distortion.
package filter

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

// ErrInvalidFilterSpec is returned for cutoffs or orders that cannot be realised.
var ErrInvalidFilterSpec = errors.New("invalid filter spec")

// Order limits.
const (
	MinOrder = 1
	MaxOrder = 16
)

// Spec describes a band-pass: 0 < Low < High < nyquist.
type Spec struct {
	Low   float64 // Lower cutoff in Hz.
	High  float64 // Upper cutoff in Hz.
	Order int     // Butterworth order of each edge.
}

// String formats the spec for logs.
func (s Spec) String() string {
	return fmt.Sprintf("%.1f-%.1f Hz (order %d)", s.Low, s.High, s.Order)
}

// Validate checks s against a sample rate.
func (s Spec) Validate(sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d must be positive", ErrInvalidFilterSpec, sampleRate)
	}
	if s.Order < MinOrder || s.Order > MaxOrder {
		return fmt.Errorf("%w: order %d outside [%d, %d]", ErrInvalidFilterSpec, s.Order, MinOrder, MaxOrder)
	}
	if math.IsNaN(s.Low) || math.IsNaN(s.High) {
		return fmt.Errorf("%w: cutoffs must be numbers", ErrInvalidFilterSpec)
	}
	if s.Low <= 0 {
		return fmt.Errorf("%w: low cutoff %.3f Hz must be positive", ErrInvalidFilterSpec, s.Low)
	}
	if s.Low >= s.High {
		return fmt.Errorf("%w: low cutoff %.3f Hz must be below high cutoff %.3f Hz", ErrInvalidFilterSpec, s.Low, s.High)
	}
	nyquist := float64(sampleRate) / 2
	if s.High >= nyquist {
		return fmt.Errorf("%w: high cutoff %.3f Hz must be below Nyquist %.1f Hz", ErrInvalidFilterSpec, s.High, nyquist)
	}
	return nil
}

// Coefficients is a designed cascade bound to the sample rate it was built for.
type Coefficients struct {
	Spec       Spec
	SampleRate int
	Sections   []biquad.Coefficients
}

// chain returns a fresh cascade over the designed sections.
func (c Coefficients) chain() *biquad.Chain {
	return biquad.NewChain(c.Sections)
}

// Response returns |H(f)| of a single forward pass at freq Hz.
func (c Coefficients) Response(freq float64) float64 {
	return cmplx.Abs(c.chain().Response(freq, float64(c.SampleRate)))
}

// Design builds a Butterworth band-pass as a highpass at Low cascaded with a
// lowpass at High, each of spec.Order.
func Design(spec Spec, sampleRate int) (Coefficients, error) {
	if err := spec.Validate(sampleRate); err != nil {
		return Coefficients{}, err
	}

	fs := float64(sampleRate)
	hp := design.ButterworthHP(spec.Low, spec.Order, fs)
	lp := design.ButterworthLP(spec.High, spec.Order, fs)
	if len(hp) == 0 || len(lp) == 0 {
		return Coefficients{}, fmt.Errorf("%w: no sections for %s at %d Hz", ErrInvalidFilterSpec, spec, sampleRate)
	}

	sections := make([]biquad.Coefficients, 0, len(hp)+len(lp))
	sections = append(sections, hp...)
	sections = append(sections, lp...)

	for i, s := range sections {
		if !stable(s) {
			return Coefficients{}, fmt.Errorf("%w: section %d of %s is unstable at %d Hz", ErrInvalidFilterSpec, i, spec, sampleRate)
		}
	}

	return Coefficients{Spec: spec, SampleRate: sampleRate, Sections: sections}, nil
}

// stable reports whether both poles lie inside the unit circle (Jury test).
func stable(s biquad.Coefficients) bool {
	return math.Abs(s.A2) < 1 && math.Abs(s.A1) < 1+s.A2
}
