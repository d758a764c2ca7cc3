// SPDX-License-Identifier: MIT

// Package waveform holds the sample buffers that flow through the analysis
// pipeline and the store that owns the most recently loaded recording.
package waveform

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidSampleRate is returned when a buffer is built with rate <= 0.
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	// ErrDecode is returned when a source is empty or not a supported encoding.
	ErrDecode = errors.New("cannot decode audio source")
	// ErrNotLoaded is returned by Store.Current before the first Load.
	ErrNotLoaded = errors.New("no waveform loaded")
)

// Buffer is a single-channel run of samples with its sample rate in Hz.
// Buffers are treated as read-only once produced; every stage returns a new one.
type Buffer struct {
	Samples    []float64
	SampleRate int
}

// New wraps samples into a Buffer. The slice is not copied.
func New(samples []float64, sampleRate int) (Buffer, error) {
	if sampleRate <= 0 {
		return Buffer{}, fmt.Errorf("%w: got %d", ErrInvalidSampleRate, sampleRate)
	}
	if samples == nil {
		samples = []float64{}
	}
	return Buffer{Samples: samples, SampleRate: sampleRate}, nil
}

// Len returns the number of samples.
func (b Buffer) Len() int {
	return len(b.Samples)
}

// Duration returns the length of the buffer in seconds.
func (b Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// Nyquist returns half the sample rate.
func (b Buffer) Nyquist() float64 {
	return float64(b.SampleRate) / 2
}

// Peak returns the largest absolute sample value, 0 for an empty buffer.
func (b Buffer) Peak() float64 {
	var peak float64
	for _, s := range b.Samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}

// Bounds returns the minimum and maximum sample values.
func (b Buffer) Bounds() (lo, hi float64) {
	if len(b.Samples) == 0 {
		return 0, 0
	}
	lo, hi = b.Samples[0], b.Samples[0]
	for _, s := range b.Samples[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	return lo, hi
}

// Clone returns a deep copy.
func (b Buffer) Clone() Buffer {
	samples := make([]float64, len(b.Samples))
	copy(samples, b.Samples)
	return Buffer{Samples: samples, SampleRate: b.SampleRate}
}

// Validate checks the buffer invariants.
func (b Buffer) Validate() error {
	if b.SampleRate <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidSampleRate, b.SampleRate)
	}
	return nil
}
