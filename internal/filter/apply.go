// SPDX-License-Identifier: MIT
package filter

import (
	"fmt"
	"math"
	"slices"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"

	applog "notescope/internal/log"
	"notescope/internal/waveform"
)

// Apply filters buf with zero phase and rescales the result so its peak
// absolute amplitude is 1.0. Silence is returned unscaled.
func Apply(buf waveform.Buffer, coeffs Coefficients) (waveform.Buffer, error) {
	filtered, err := FiltFilt(buf, coeffs)
	if err != nil {
		return waveform.Buffer{}, err
	}
	return NormalizePeak(filtered), nil
}

// FiltFilt runs the cascade forward, then backward over the reversed output,
// cancelling the phase shift. The edges are extended by odd reflection and
// each pass starts from the steady state of its first sample so transients
// stay out of the returned samples. Output length equals input length.
func FiltFilt(buf waveform.Buffer, coeffs Coefficients) (waveform.Buffer, error) {
	if err := buf.Validate(); err != nil {
		return waveform.Buffer{}, err
	}
	if len(coeffs.Sections) == 0 {
		return waveform.Buffer{}, fmt.Errorf("%w: no sections designed", ErrInvalidFilterSpec)
	}
	if coeffs.SampleRate != buf.SampleRate {
		return waveform.Buffer{}, fmt.Errorf("%w: designed for %d Hz, buffer is %d Hz",
			ErrInvalidFilterSpec, coeffs.SampleRate, buf.SampleRate)
	}

	n := buf.Len()
	out := make([]float64, n)
	if n == 0 {
		return waveform.Buffer{Samples: out, SampleRate: buf.SampleRate}, nil
	}

	pad := padLength(len(coeffs.Sections), n)
	ext := oddExtend(buf.Samples, pad)

	chain := coeffs.chain()
	runPass(chain, coeffs.Sections, ext)
	slices.Reverse(ext)
	runPass(chain, coeffs.Sections, ext)
	slices.Reverse(ext)

	copy(out, ext[pad:pad+n])
	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return waveform.Buffer{}, fmt.Errorf("%w: %s diverged at sample %d", ErrInvalidFilterSpec, coeffs.Spec, i)
		}
	}

	applog.Debugf("Filter: %s applied to %d samples (pad %d)", coeffs.Spec, n, pad)
	return waveform.Buffer{Samples: out, SampleRate: buf.SampleRate}, nil
}

// NormalizePeak divides by the peak absolute value. All-zero input is copied.
func NormalizePeak(buf waveform.Buffer) waveform.Buffer {
	out := buf.Clone()
	peak := buf.Peak()
	if peak == 0 {
		return out
	}
	for i := range out.Samples {
		out.Samples[i] /= peak
	}
	return out
}

// padLength follows the usual 3 * (taps) rule for an SOS cascade, limited
// by the signal length.
func padLength(sections, n int) int {
	pad := 3 * (2*sections + 1)
	if pad > n-1 {
		pad = n - 1
	}
	return pad
}

// oddExtend reflects pad samples about each end point.
func oddExtend(x []float64, pad int) []float64 {
	n := len(x)
	ext := make([]float64, n+2*pad)
	for i := 0; i < pad; i++ {
		ext[i] = 2*x[0] - x[pad-i]
		ext[pad+n+i] = 2*x[n-1] - x[n-2-i]
	}
	copy(ext[pad:], x)
	return ext
}

// runPass filters x in place through chain, starting every section at the
// steady state it would have reached for a constant input equal to x[0].
func runPass(chain *biquad.Chain, sections []biquad.Coefficients, x []float64) {
	chain.SetState(steadyState(sections, x[0]))
	chain.ProcessBlock(x)
}

// steadyState returns the DF2T delay lines [d0, d1] of each section after a
// constant input of level has settled.
func steadyState(sections []biquad.Coefficients, level float64) [][2]float64 {
	states := make([][2]float64, len(sections))
	for i, s := range sections {
		y := level * dcGain(s)
		d1 := s.B2*level - s.A2*y
		states[i] = [2]float64{y - s.B0*level, d1}
		level = y
	}
	return states
}

// dcGain is H(z=1).
func dcGain(s biquad.Coefficients) float64 {
	return (s.B0 + s.B1 + s.B2) / (1 + s.A1 + s.A2)
}
