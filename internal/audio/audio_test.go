// SPDX-License-Identifier: MIT
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"notescope/internal/waveform"

	"github.com/gordonklaus/portaudio"
)

var fakeDevices = []*portaudio.DeviceInfo{
	{Name: "Built-in Microphone", MaxInputChannels: 2, DefaultSampleRate: 48000},
	{Name: "Built-in Output", MaxOutputChannels: 2, DefaultSampleRate: 44100,
		DefaultLowOutputLatency: 5 * time.Millisecond, DefaultHighOutputLatency: 20 * time.Millisecond},
	{Name: "USB Interface", MaxInputChannels: 2, MaxOutputChannels: 4, DefaultSampleRate: 96000},
}

// fakePortAudio swaps every PortAudio seam for the duration of the test.
func fakePortAudio(t *testing.T) {
	t.Helper()
	origInit, origTerm := paLibInitialize, paLibTerminate
	origDevices, origDefault := paLibDevicesFunc, paLibDefaultOutputDeviceFunc
	t.Cleanup(func() {
		paLibInitialize, paLibTerminate = origInit, origTerm
		paLibDevicesFunc, paLibDefaultOutputDeviceFunc = origDevices, origDefault
	})

	paLibInitialize = func() error { return nil }
	paLibTerminate = func() error { return nil }
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return fakeDevices, nil }
	paLibDefaultOutputDeviceFunc = func() (*portaudio.DeviceInfo, error) { return fakeDevices[1], nil }
}

type fakeStream struct {
	frame   []float32
	written []float32
	writes  int
	failAt  int
	onWrite func(n int)
	started bool
	stopped bool
	closed  bool
}

func (s *fakeStream) Start() error { s.started = true; return nil }
func (s *fakeStream) Stop() error  { s.stopped = true; return nil }
func (s *fakeStream) Close() error { s.closed = true; return nil }

func (s *fakeStream) Write() error {
	s.writes++
	if s.failAt > 0 && s.writes == s.failAt {
		return errors.New("device unplugged")
	}
	s.written = append(s.written, s.frame...)
	if s.onWrite != nil {
		s.onWrite(s.writes)
	}
	return nil
}

func fakeOpen(t *testing.T, stream *fakeStream, gotParams *portaudio.StreamParameters) {
	t.Helper()
	orig := openOutputStream
	t.Cleanup(func() { openOutputStream = orig })
	openOutputStream = func(params portaudio.StreamParameters, frame []float32) (outputStream, error) {
		if gotParams != nil {
			*gotParams = params
		}
		stream.frame = frame
		return stream, nil
	}
}

func TestErrorInitialize(t *testing.T) {
	orig := paLibInitialize
	defer func() { paLibInitialize = orig }()

	paLibInitialize = func() error { return nil }
	if err := Initialize(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibInitialize = func() error { return fmt.Errorf("mock init error") }
	if err := Initialize(); err == nil || !strings.Contains(err.Error(), "mock init error") {
		t.Errorf("expected mock init error, got %v", err)
	}
}

func TestErrorTerminate(t *testing.T) {
	orig := paLibTerminate
	defer func() { paLibTerminate = orig }()

	paLibTerminate = func() error { return fmt.Errorf("mock term error") }
	if err := Terminate(); err == nil || !strings.Contains(err.Error(), "mock term error") {
		t.Errorf("expected mock term error, got %v", err)
	}
}

func TestHostDevices(t *testing.T) {
	fakePortAudio(t)

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices error: %v", err)
	}
	if len(devices) != len(fakeDevices) {
		t.Fatalf("got %d devices, want %d", len(devices), len(fakeDevices))
	}
	for i, d := range devices {
		if d.ID != i || d.Name != fakeDevices[i].Name {
			t.Errorf("device %d = %+v", i, d)
		}
		if d.IsDefaultOutput != (i == 1) {
			t.Errorf("device %d IsDefaultOutput = %v", i, d.IsDefaultOutput)
		}
	}
}

func TestNilDevices(t *testing.T) {
	fakePortAudio(t)
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return nil, nil }

	devices, err := paDevices()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if devices == nil || len(devices) != 0 {
		t.Errorf("expected empty slice, got %v", devices)
	}
}

func TestOutputDevice(t *testing.T) {
	fakePortAudio(t)

	tests := []struct {
		name     string
		id       int
		wantName string
		substr   string
	}{
		{"Default", DefaultDeviceID, "Built-in Output", ""},
		{"Output only", 1, "Built-in Output", ""},
		{"Duplex", 2, "USB Interface", ""},
		{"Input only", 0, "", "does not support output"},
		{"Negative ID", -2, "", "invalid device ID"},
		{"Too high ID", 10, "", "invalid device ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, err := OutputDevice(tt.id)
			if tt.substr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.substr) {
					t.Errorf("error = %v, want substring %q", err, tt.substr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if dev.Name != tt.wantName {
				t.Errorf("device = %s, want %s", dev.Name, tt.wantName)
			}
		})
	}
}

func TestOutputDevice_paDevicesError(t *testing.T) {
	fakePortAudio(t)
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return nil, fmt.Errorf("mock error") }

	if _, err := OutputDevice(1); err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestListDevices(t *testing.T) {
	fakePortAudio(t)

	var out bytes.Buffer
	if err := ListDevices(&out); err != nil {
		t.Fatal(err)
	}
	text := out.String()
	if strings.Contains(text, "Microphone") {
		t.Error("input-only device listed")
	}
	if !strings.Contains(text, "[1] Built-in Output (default)") || !strings.Contains(text, "[2] USB Interface") {
		t.Errorf("unexpected listing:\n%s", text)
	}
}

func TestPlayerPlay(t *testing.T) {
	fakePortAudio(t)
	stream := &fakeStream{}
	var params portaudio.StreamParameters
	fakeOpen(t, stream, &params)

	samples := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}
	buf, _ := waveform.New(samples, 22050)

	if err := NewPlayer(PlayerConfig{DeviceID: DefaultDeviceID, FramesPerBuffer: 4, LowLatency: true}).Play(context.Background(), buf); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if params.SampleRate != 22050 || params.Output.Channels != 1 || params.FramesPerBuffer != 4 {
		t.Errorf("stream params = %+v", params)
	}
	if params.Output.Latency != 5*time.Millisecond {
		t.Errorf("latency = %v, want low latency", params.Output.Latency)
	}
	if stream.writes != 3 || !stream.started || !stream.stopped || !stream.closed {
		t.Errorf("stream state = %+v", stream)
	}
	if len(stream.written) != 12 {
		t.Fatalf("wrote %d frames, want 12", len(stream.written))
	}
	for i, v := range samples {
		if stream.written[i] != float32(v) {
			t.Errorf("frame %d = %v, want %v", i, stream.written[i], v)
		}
	}
	if stream.written[10] != 0 || stream.written[11] != 0 {
		t.Error("tail of last frame not zero padded")
	}
}

func TestPlayerPlayCancel(t *testing.T) {
	fakePortAudio(t)
	ctx, cancel := context.WithCancel(context.Background())
	stream := &fakeStream{onWrite: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	fakeOpen(t, stream, nil)

	buf, _ := waveform.New(make([]float64, 100), 8000)
	err := NewPlayer(PlayerConfig{FramesPerBuffer: 10}).Play(ctx, buf)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if stream.writes != 2 || !stream.closed {
		t.Errorf("writes = %d, closed = %v", stream.writes, stream.closed)
	}
}

func TestPlayerPlayWriteError(t *testing.T) {
	fakePortAudio(t)
	stream := &fakeStream{failAt: 2}
	fakeOpen(t, stream, nil)

	buf, _ := waveform.New(make([]float64, 100), 8000)
	err := NewPlayer(PlayerConfig{FramesPerBuffer: 10}).Play(context.Background(), buf)
	if err == nil || !strings.Contains(err.Error(), "device unplugged") {
		t.Errorf("error = %v, want write failure", err)
	}
}

func TestPlayerPlayInitError(t *testing.T) {
	fakePortAudio(t)
	paLibInitialize = func() error { return errors.New("no audio server") }

	buf, _ := waveform.New([]float64{1}, 8000)
	if err := NewPlayer(PlayerConfig{}).Play(context.Background(), buf); err == nil {
		t.Error("expected initialize error")
	}
}

func TestWriteWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	buf, _ := waveform.New([]float64{0, 0.5, -0.5, 1, -1, 2}, 16000)

	if err := WriteWAV(path, buf, 16); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}

	loaded, err := waveform.NewStore().Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.SampleRate != 16000 || loaded.Len() != buf.Len() {
		t.Fatalf("loaded %d samples @ %d Hz", loaded.Len(), loaded.SampleRate)
	}
	want := []float64{0, 0.5, -0.5, 1, -1, 1}
	for i := range want {
		if d := loaded.Samples[i] - want[i]; d > 1e-3 || d < -1e-3 {
			t.Errorf("sample %d = %f, want %f", i, loaded.Samples[i], want[i])
		}
	}
}

func TestWriteWAVErrors(t *testing.T) {
	buf, _ := waveform.New([]float64{0.1}, 8000)
	if err := WriteWAV(filepath.Join(t.TempDir(), "x.wav"), buf, 12); err == nil {
		t.Error("expected error for 12-bit output")
	}
	if err := WriteWAV(filepath.Join(t.TempDir(), "missing", "x.wav"), buf, 16); err == nil {
		t.Error("expected error for missing directory")
	}
}
