// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"math"
	"os"

	applog "notescope/internal/log"
	"notescope/internal/waveform"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV encodes buf as mono integer PCM. Samples are clipped to [-1, 1].
// bitDepth must be 16, 24 or 32.
func WriteWAV(path string, buf waveform.Buffer, bitDepth int) (err error) {
	if err := buf.Validate(); err != nil {
		return err
	}
	switch bitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("unsupported WAV bit depth %d", bitDepth)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	encoder := wav.NewEncoder(file, buf.SampleRate, bitDepth, 1, 1)
	scale := float64(int64(1)<<(bitDepth-1) - 1)
	data := make([]int, buf.Len())
	for i, v := range buf.Samples {
		data[i] = int(math.Round(math.Max(-1, math.Min(1, v)) * scale))
	}

	ib := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: buf.SampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := encoder.Write(ib); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", path, err)
	}

	applog.Infof("Audio: wrote %d samples to %s", buf.Len(), path)
	return nil
}
