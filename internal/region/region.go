// SPDX-License-Identifier: MIT

// Package region turns a pair of time markers into a sample range and slices
// the matching samples out of a buffer.
package region

import (
	"errors"
	"fmt"
	"math"

	applog "notescope/internal/log"
	"notescope/internal/waveform"
)

var (
	// ErrInvalidRegion is returned for reversed, non-finite, or entirely
	// out-of-range markers.
	ErrInvalidRegion = errors.New("invalid time region")
	// ErrEmptyRegion is returned when clamping leaves no samples.
	ErrEmptyRegion = errors.New("time region selects no samples")
)

// TimeRegion is a pair of markers in seconds.
type TimeRegion struct {
	Start float64
	End   float64
}

// String formats the region the way the CLI reports it.
func (r TimeRegion) String() string {
	return fmt.Sprintf("%.2fs to %.2fs", r.Start, r.End)
}

// SampleRange is a half-open [Start, End) range of sample indices.
type SampleRange struct {
	Start int
	End   int
}

// Len returns End - Start.
func (r SampleRange) Len() int {
	return r.End - r.Start
}

// Range resolves a TimeRegion against buf. Each marker maps to
// round(time * rate); markers outside the buffer are clamped to [0, len].
func Range(buf waveform.Buffer, r TimeRegion) (SampleRange, error) {
	if err := buf.Validate(); err != nil {
		return SampleRange{}, err
	}
	if !finite(r.Start) || !finite(r.End) {
		return SampleRange{}, fmt.Errorf("%w: markers must be finite (%v, %v)", ErrInvalidRegion, r.Start, r.End)
	}
	if r.Start > r.End {
		return SampleRange{}, fmt.Errorf("%w: start %.6fs is after end %.6fs", ErrInvalidRegion, r.Start, r.End)
	}
	duration := buf.Duration()
	// Markers straddling the buffer clamp to the whole of it.
	if r.End < 0 || r.Start > duration {
		return SampleRange{}, fmt.Errorf("%w: %s lies outside [0, %.6fs]", ErrInvalidRegion, r, duration)
	}

	n := buf.Len()
	rng := SampleRange{
		Start: clamp(toIndex(r.Start, buf.SampleRate), 0, n),
		End:   clamp(toIndex(r.End, buf.SampleRate), 0, n),
	}
	if rng.Len() <= 0 {
		return SampleRange{}, fmt.Errorf("%w: %s resolves to samples [%d, %d)", ErrEmptyRegion, r, rng.Start, rng.End)
	}
	return rng, nil
}

// Select returns a copy of the samples covered by r, at the source rate.
func Select(buf waveform.Buffer, r TimeRegion) (waveform.Buffer, error) {
	rng, err := Range(buf, r)
	if err != nil {
		return waveform.Buffer{}, err
	}

	samples := make([]float64, rng.Len())
	copy(samples, buf.Samples[rng.Start:rng.End])

	applog.Debugf("Region: %s -> samples [%d, %d) (%d samples)", r, rng.Start, rng.End, rng.Len())
	return waveform.Buffer{Samples: samples, SampleRate: buf.SampleRate}, nil
}

func toIndex(t float64, rate int) int {
	return int(math.Round(t * float64(rate)))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
