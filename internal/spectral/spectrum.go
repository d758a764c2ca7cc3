// SPDX-License-Identifier: MIT

// Package spectral computes full-length discrete Fourier transforms of
// waveform buffers and answers magnitude, peak and threshold queries on the
// resulting spectra.
package spectral

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"slices"
)

// ErrEmptySpectrum is returned by queries that need at least one non-DC bin.
var ErrEmptySpectrum = errors.New("spectrum has no usable bins")

// Spectrum holds one complex coefficient per sample of the transformed buffer.
type Spectrum struct {
	Bins       []complex128
	SampleRate int
}

// Len returns N, the number of bins.
func (s Spectrum) Len() int {
	return len(s.Bins)
}

// Resolution returns the bin spacing in Hz.
func (s Spectrum) Resolution() float64 {
	if len(s.Bins) == 0 {
		return 0
	}
	return float64(s.SampleRate) / float64(len(s.Bins))
}

// Frequency returns the centre frequency of bin i in Hz.
func (s Spectrum) Frequency(i int) float64 {
	return float64(i) * s.Resolution()
}

// BinMagnitude pairs a bin index with |X[k]|.
type BinMagnitude struct {
	Bin       int
	Magnitude float64
}

// Magnitudes returns sqrt(re² + im²) for every bin, in bin order.
func Magnitudes(s Spectrum) []BinMagnitude {
	out := make([]BinMagnitude, len(s.Bins))
	for i, c := range s.Bins {
		out[i] = BinMagnitude{Bin: i, Magnitude: cmplx.Abs(c)}
	}
	return out
}

// Axis selects how PositiveFrequencies labels each point.
type Axis int

const (
	// AxisHertz uses bin * rate / N.
	AxisHertz Axis = iota
	// AxisLegacyIndex reports the raw bin index as the frequency. It reproduces plots saved by older tooling and is numerically
	// wrong unless rate == N.
	AxisLegacyIndex
)

func (a Axis) String() string {
	switch a {
	case AxisHertz:
		return "hertz"
	case AxisLegacyIndex:
		return "legacy-index"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// Point is a spectrum bin placed on a frequency axis.
type Point struct {
	Bin       int
	Frequency float64
	Magnitude float64
}

// PositiveFrequencies returns every bin whose magnitude is strictly positive,
// labelled according to axis.
func PositiveFrequencies(s Spectrum, sampleRate int, axis Axis) ([]Point, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("positive frequencies: sample rate %d must be positive", sampleRate)
	}
	if axis != AxisHertz && axis != AxisLegacyIndex {
		return nil, fmt.Errorf("positive frequencies: unknown axis %v", axis)
	}

	n := len(s.Bins)
	points := make([]Point, 0, n)
	for i, c := range s.Bins {
		mag := cmplx.Abs(c)
		if !(mag > 0) {
			continue
		}
		freq := float64(i)
		if axis == AxisHertz {
			freq = float64(i) * float64(sampleRate) / float64(n)
		}
		points = append(points, Point{Bin: i, Frequency: freq, Magnitude: mag})
	}
	return points, nil
}

// NonAliased keeps the points in bins 0..n/2. For real input the upper half
// of an n-bin spectrum mirrors the lower half.
func NonAliased(points []Point, n int) []Point {
	out := make([]Point, 0, len(points))
	for _, p := range points {
		if p.Bin <= n/2 {
			out = append(out, p)
		}
	}
	return out
}

// PeakBin returns the index of the largest magnitude in mags[lo:hi], or -1
// when the clamped range is empty.
func PeakBin(mags []BinMagnitude, lo, hi int) int {
	lo = max(lo, 0)
	hi = min(hi, len(mags))
	peak, best := -1, math.Inf(-1)
	for i := lo; i < hi; i++ {
		if mags[i].Magnitude > best {
			best = mags[i].Magnitude
			peak = mags[i].Bin
		}
	}
	return peak
}

// Peaks returns the local maxima of points ordered by descending magnitude,
// at most k of them (all when k <= 0). Points are compared with their
// neighbours in slice order.
func Peaks(points []Point, k int) []Point {
	var peaks []Point
	for i, p := range points {
		if i > 0 && points[i-1].Magnitude >= p.Magnitude {
			continue
		}
		if i < len(points)-1 && points[i+1].Magnitude > p.Magnitude {
			continue
		}
		peaks = append(peaks, p)
	}
	slices.SortStableFunc(peaks, func(a, b Point) int {
		switch {
		case a.Magnitude > b.Magnitude:
			return -1
		case a.Magnitude < b.Magnitude:
			return 1
		}
		return 0
	})
	if k > 0 && len(peaks) > k {
		peaks = peaks[:k]
	}
	return peaks
}

// AboveThreshold keeps the points whose magnitude exceeds threshold.
func AboveThreshold(points []Point, threshold float64) []Point {
	out := make([]Point, 0, len(points))
	for _, p := range points {
		if p.Magnitude > threshold {
			out = append(out, p)
		}
	}
	return out
}

// DominantFrequency returns the frequency in Hz of the strongest bin between
// 1 and N/2, ignoring DC.
func DominantFrequency(s Spectrum) (float64, error) {
	n := len(s.Bins)
	if n < 2 || s.SampleRate <= 0 {
		return 0, ErrEmptySpectrum
	}
	peak := PeakBin(Magnitudes(s), 1, n/2+1)
	if peak < 0 || cmplx.Abs(s.Bins[peak]) == 0 {
		return 0, ErrEmptySpectrum
	}
	return s.Frequency(peak), nil
}
