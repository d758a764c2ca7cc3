// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"fmt"

	applog "notescope/internal/log"
	"notescope/internal/waveform"

	"github.com/gordonklaus/portaudio"
)

// outputStream is the subset of *portaudio.Stream used for blocking output.
type outputStream interface {
	Start() error
	Write() error
	Stop() error
	Close() error
}

// openOutputStream opens a blocking stream that plays frame on every Write.
var openOutputStream = func(params portaudio.StreamParameters, frame []float32) (outputStream, error) {
	return portaudio.OpenStream(params, frame)
}

// PlayerConfig selects the output device and buffering.
type PlayerConfig struct {
	DeviceID        int
	FramesPerBuffer int
	LowLatency      bool
}

// Player writes mono buffers to a PortAudio output device. Each Play call
// initializes and terminates PortAudio around its own stream.
type Player struct {
	config PlayerConfig
}

// NewPlayer returns a Player. FramesPerBuffer <= 0 falls back to 512.
func NewPlayer(config PlayerConfig) *Player {
	if config.FramesPerBuffer <= 0 {
		config.FramesPerBuffer = 512
	}
	return &Player{config: config}
}

// Play blocks until buf has been written to the device or ctx is cancelled.
func (p *Player) Play(ctx context.Context, buf waveform.Buffer) (err error) {
	if err := buf.Validate(); err != nil {
		return err
	}
	if err := Initialize(); err != nil {
		return err
	}
	defer func() {
		if terr := Terminate(); terr != nil && err == nil {
			err = terr
		}
	}()

	device, err := OutputDevice(p.config.DeviceID)
	if err != nil {
		return err
	}
	latency := device.DefaultHighOutputLatency
	if p.config.LowLatency {
		latency = device.DefaultLowOutputLatency
	}

	frame := make([]float32, p.config.FramesPerBuffer)
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Channels: 1,
			Device:   device,
			Latency:  latency,
		},
		FramesPerBuffer: p.config.FramesPerBuffer,
		SampleRate:      float64(buf.SampleRate),
	}

	stream, err := openOutputStream(params, frame)
	if err != nil {
		return fmt.Errorf("open output stream on %s: %w", device.Name, err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start output stream: %w", err)
	}

	applog.Infof("Audio: playing %.2fs on %s", buf.Duration(), device.Name)
	writeErr := p.write(ctx, stream, frame, buf.Samples)
	if err := stream.Stop(); err != nil && writeErr == nil {
		writeErr = fmt.Errorf("stop output stream: %w", err)
	}
	return writeErr
}

func (p *Player) write(ctx context.Context, stream outputStream, frame []float32, samples []float64) error {
	for offset := 0; offset < len(samples); offset += len(frame) {
		if err := ctx.Err(); err != nil {
			applog.Infof("Audio: playback stopped at %d of %d samples", offset, len(samples))
			return err
		}
		n := copyFrame(frame, samples[offset:])
		if err := stream.Write(); err != nil {
			return fmt.Errorf("write frame at sample %d (%d samples): %w", offset, n, err)
		}
	}
	return nil
}

// copyFrame fills frame from samples, zero-padding the tail.
func copyFrame(frame []float32, samples []float64) int {
	n := min(len(frame), len(samples))
	for i := 0; i < n; i++ {
		frame[i] = float32(samples[i])
	}
	clear(frame[n:])
	return n
}
