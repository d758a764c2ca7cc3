// SPDX-License-Identifier: MIT
package waveform

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/faiface/beep"
	beepwav "github.com/faiface/beep/wav"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
)

// Supported source formats.
const (
	FormatWAV  = "wav"
	FormatFLAC = "flac"
)

// FormatFromPath derives the source format from a file extension.
func FormatFromPath(path string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case FormatWAV, "wave":
		return FormatWAV, nil
	case FormatFLAC:
		return FormatFLAC, nil
	default:
		return "", fmt.Errorf("%w: unsupported file extension %q", ErrDecode, filepath.Ext(path))
	}
}

// Decode reads a complete source of the given format and returns channel 0
// as a Buffer with samples in [-1, 1].
func Decode(r io.ReadSeeker, format string) (Buffer, error) {
	switch format {
	case FormatWAV:
		return decodeWAV(r)
	case FormatFLAC:
		return decodeFLAC(r)
	default:
		return Buffer{}, fmt.Errorf("%w: unsupported format %q", ErrDecode, format)
	}
}

// decodeWAV uses the go-audio decoder for integer PCM and falls back to the
// beep decoder for anything go-audio refuses.
func decodeWAV(r io.ReadSeeker) (Buffer, error) {
	buf, err := decodeWAVPCM(r)
	if err == nil {
		return buf, nil
	}
	if _, seekErr := r.Seek(0, io.SeekStart); seekErr != nil {
		return Buffer{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	fallback, fbErr := decodeWAVBeep(r)
	if fbErr != nil {
		return Buffer{}, fmt.Errorf("%w: %v (fallback: %v)", ErrDecode, err, fbErr)
	}
	return fallback, nil
}

func decodeWAVPCM(r io.ReadSeeker) (Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Buffer{}, errors.New("not a valid WAV file")
	}
	if dec.WavAudioFormat != 1 {
		return Buffer{}, fmt.Errorf("unsupported WAV audio format %d", dec.WavAudioFormat)
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return Buffer{}, fmt.Errorf("read PCM data: %w", err)
	}
	channels := int(dec.NumChans)
	if pcm.Format != nil && pcm.Format.NumChannels > 0 {
		channels = pcm.Format.NumChannels
	}
	if channels <= 0 {
		return Buffer{}, errors.New("WAV header reports zero channels")
	}
	frames := len(pcm.Data) / channels
	if frames == 0 {
		return Buffer{}, errors.New("WAV file holds no samples")
	}

	bitDepth := int(dec.BitDepth)
	if pcm.SourceBitDepth > 0 {
		bitDepth = pcm.SourceBitDepth
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return Buffer{}, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}

	samples := make([]float64, frames)
	if bitDepth == 8 {
		// 8-bit WAV is unsigned with a 128 midpoint.
		for i := range samples {
			samples[i] = (float64(pcm.Data[i*channels]) - 128) / 128
		}
	} else {
		scale := float64(int64(1) << (bitDepth - 1))
		for i := range samples {
			samples[i] = float64(pcm.Data[i*channels]) / scale
		}
	}
	return New(samples, int(dec.SampleRate))
}

func decodeWAVBeep(r io.Reader) (Buffer, error) {
	stream, format, err := beepwav.Decode(r)
	if err != nil {
		return Buffer{}, err
	}
	defer stream.Close()

	return drainBeep(stream, format)
}

func drainBeep(stream beep.Streamer, format beep.Format) (Buffer, error) {
	var samples []float64
	chunk := make([][2]float64, 4096)
	for {
		n, ok := stream.Stream(chunk)
		for i := 0; i < n; i++ {
			samples = append(samples, chunk[i][0])
		}
		if !ok {
			break
		}
	}
	if err := stream.Err(); err != nil {
		return Buffer{}, err
	}
	if len(samples) == 0 {
		return Buffer{}, errors.New("WAV file holds no samples")
	}
	return New(samples, int(format.SampleRate))
}

func decodeFLAC(r io.Reader) (Buffer, error) {
	stream, err := flac.New(r)
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer stream.Close()

	bitDepth := int(stream.Info.BitsPerSample)
	if bitDepth <= 0 || bitDepth > 32 {
		return Buffer{}, fmt.Errorf("%w: unsupported FLAC bit depth %d", ErrDecode, bitDepth)
	}
	scale := float64(int64(1) << (bitDepth - 1))

	samples := make([]float64, 0, stream.Info.NSamples)
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Buffer{}, fmt.Errorf("%w: parse FLAC frame: %v", ErrDecode, err)
		}
		if len(frame.Subframes) == 0 {
			continue
		}
		for _, s := range frame.Subframes[0].Samples {
			samples = append(samples, float64(s)/scale)
		}
	}
	if len(samples) == 0 {
		return Buffer{}, fmt.Errorf("%w: FLAC stream holds no samples", ErrDecode)
	}
	buf, err := New(samples, int(stream.Info.SampleRate))
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return buf, nil
}
