// SPDX-License-Identifier: MIT

// Package reconstruct turns spectra back into audible buffers: it inverts a
// spectrum (or loads an inverse computed elsewhere), boosts and clips the
// result into playback range and hands it to an output sink.
package reconstruct

import (
	"context"
	"errors"
	"fmt"
	"math"

	"notescope/internal/interchange"
	applog "notescope/internal/log"
	"notescope/internal/spectral"
	"notescope/internal/waveform"
)

// DefaultGain boosts the typically tiny reconstructed signal before clipping.
const DefaultGain = 10000.0

var (
	// ErrSilentBuffer is returned when every sample has the same value.
	ErrSilentBuffer = errors.New("buffer is silent")
	// ErrInvalidGain is returned for gains that are not positive and finite.
	ErrInvalidGain = errors.New("invalid playback gain")
)

// Sink plays a prepared buffer, blocking until it has been written out or
// ctx is cancelled.
type Sink interface {
	Play(ctx context.Context, buf waveform.Buffer) error
}

// Reconstruct inverts s with tr.
func Reconstruct(ctx context.Context, tr spectral.Transformer, s spectral.Spectrum) (waveform.Buffer, error) {
	buf, err := tr.Inverse(ctx, s)
	if err != nil {
		return waveform.Buffer{}, fmt.Errorf("reconstruct: %w", err)
	}
	return buf, nil
}

// LoadInverse reads an inverse transform dumped one sample per line and tags
// it with rate.
func LoadInverse(path string, rate int) (waveform.Buffer, error) {
	samples, err := interchange.ReadSamples(path)
	if err != nil {
		return waveform.Buffer{}, err
	}
	buf, err := waveform.New(samples, rate)
	if err != nil {
		return waveform.Buffer{}, fmt.Errorf("load inverse %s: %w", path, err)
	}
	applog.Debugf("Reconstruct: loaded %d samples from %s", buf.Len(), path)
	return buf, nil
}

// PrepareForPlayback multiplies every sample by gain and clips the result to
// [-1, 1]. Buffers whose samples are all equal, including empty ones, carry
// nothing audible and fail with ErrSilentBuffer.
func PrepareForPlayback(buf waveform.Buffer, gain float64) (waveform.Buffer, error) {
	if err := buf.Validate(); err != nil {
		return waveform.Buffer{}, err
	}
	if !(gain > 0) || math.IsInf(gain, 1) {
		return waveform.Buffer{}, fmt.Errorf("%w: %v", ErrInvalidGain, gain)
	}
	lo, hi := buf.Bounds()
	if lo == hi {
		return waveform.Buffer{}, fmt.Errorf("%w: %d samples all equal to %v", ErrSilentBuffer, buf.Len(), lo)
	}

	out := make([]float64, buf.Len())
	clipped := 0
	for i, v := range buf.Samples {
		v *= gain
		switch {
		case v > 1:
			v = 1
			clipped++
		case v < -1:
			v = -1
			clipped++
		case math.IsNaN(v):
			v = 0
		}
		out[i] = v
	}

	applog.Debugf("Reconstruct: gain %.1f applied, %d of %d samples clipped", gain, clipped, len(out))
	return waveform.Buffer{Samples: out, SampleRate: buf.SampleRate}, nil
}

// Play prepares buf and blocks in sink until playback finishes or ctx ends.
// The prepared buffer is returned so callers can export what was heard.
func Play(ctx context.Context, sink Sink, buf waveform.Buffer, gain float64) (waveform.Buffer, error) {
	prepared, err := PrepareForPlayback(buf, gain)
	if err != nil {
		return waveform.Buffer{}, err
	}
	if err := sink.Play(ctx, prepared); err != nil {
		return prepared, fmt.Errorf("playback: %w", err)
	}
	return prepared, nil
}
