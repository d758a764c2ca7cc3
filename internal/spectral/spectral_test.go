// SPDX-License-Identifier: MIT
package spectral

import (
	"context"
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"notescope/internal/waveform"
	"notescope/pkg/utils"
)

const testSampleRate = 44100

func transformers() map[string]Transformer {
	return map[string]Transformer{
		"gonum": NewGonum(),
		"godsp": GoDSP{},
	}
}

func mustBuffer(t testing.TB, samples []float64, rate int) waveform.Buffer {
	t.Helper()
	buf, err := waveform.New(samples, rate)
	if err != nil {
		t.Fatalf("waveform.New: %v", err)
	}
	return buf
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	inputs := map[string][]float64{
		"Empty":        {},
		"Single":       {0.75},
		"Pair":         {1, -1},
		"Prime length": utils.GenerateNoise(97, 7),
		"Power of two": utils.GenerateComplexWave(1024, testSampleRate),
		"Odd sine":     utils.GenerateSineWave(1001, testSampleRate, 440, 0.5),
		"Long":         utils.GenerateComplexWave(22050, testSampleRate),
	}

	for tname, tr := range transformers() {
		for name, samples := range inputs {
			t.Run(tname+"/"+name, func(t *testing.T) {
				in := mustBuffer(t, samples, testSampleRate)
				spec, err := tr.Forward(ctx, in)
				if err != nil {
					t.Fatalf("Forward: %v", err)
				}
				if spec.Len() != in.Len() {
					t.Fatalf("Forward returned %d bins for %d samples", spec.Len(), in.Len())
				}
				out, err := tr.Inverse(ctx, spec)
				if err != nil {
					t.Fatalf("Inverse: %v", err)
				}
				if out.Len() != in.Len() || out.SampleRate != in.SampleRate {
					t.Fatalf("Inverse returned %d samples @ %d Hz", out.Len(), out.SampleRate)
				}
				scale := math.Max(in.Peak(), 1e-12)
				for i := range in.Samples {
					if d := math.Abs(out.Samples[i] - in.Samples[i]); d > 1e-6*scale {
						t.Fatalf("sample %d: got %g, want %g", i, out.Samples[i], in.Samples[i])
					}
				}
			})
		}
	}
}

func TestTransformersAgree(t *testing.T) {
	ctx := context.Background()
	in := mustBuffer(t, utils.GenerateNoise(300, 3), 8000)

	a, err := NewGonum().Forward(ctx, in)
	if err != nil {
		t.Fatal(err)
	}
	b, err := GoDSP{}.Forward(ctx, in)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a.Bins {
		if cmplx.Abs(a.Bins[i]-b.Bins[i]) > 1e-9*float64(in.Len()) {
			t.Fatalf("bin %d: gonum %v, go-dsp %v", i, a.Bins[i], b.Bins[i])
		}
	}
}

func TestForwardRejects(t *testing.T) {
	for name, tr := range transformers() {
		t.Run(name, func(t *testing.T) {
			_, err := tr.Forward(context.Background(), waveform.Buffer{Samples: []float64{1}})
			if !errors.Is(err, waveform.ErrInvalidSampleRate) {
				t.Errorf("Forward with zero rate: got %v", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			if _, err := tr.Forward(ctx, mustBuffer(t, []float64{1, 2}, 8000)); !errors.Is(err, context.Canceled) {
				t.Errorf("Forward with cancelled context: got %v", err)
			}
			if _, err := tr.Inverse(context.Background(), Spectrum{Bins: []complex128{1}}); !errors.Is(err, waveform.ErrInvalidSampleRate) {
				t.Errorf("Inverse with zero rate: got %v", err)
			}
		})
	}
}

func TestNewTransformer(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"", false},
		{"gonum", false},
		{"GoDSP", false},
		{"go-dsp", false},
		{"fftw", true},
	}
	for _, tt := range tests {
		tr, err := NewTransformer(tt.name)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownTransformer) {
				t.Errorf("NewTransformer(%q) error = %v, want ErrUnknownTransformer", tt.name, err)
			}
			continue
		}
		if err != nil || tr == nil {
			t.Errorf("NewTransformer(%q) = %v, %v", tt.name, tr, err)
		}
	}
}

// A 440 Hz tone over 22050 samples at 44100 Hz lands exactly on bin 220.
func TestSinePeakBin(t *testing.T) {
	const n = 22050
	in := mustBuffer(t, utils.GenerateSineWave(n, testSampleRate, 440, 0.5), testSampleRate)
	want := int(math.Round(440 * n / float64(testSampleRate)))

	for name, tr := range transformers() {
		t.Run(name, func(t *testing.T) {
			spec, err := tr.Forward(context.Background(), in)
			if err != nil {
				t.Fatal(err)
			}
			if got := PeakBin(Magnitudes(spec), 1, n/2+1); got != want {
				t.Errorf("PeakBin = %d, want %d", got, want)
			}
			freq, err := DominantFrequency(spec)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(freq-440) > 1e-9 {
				t.Errorf("DominantFrequency = %f, want 440", freq)
			}
		})
	}
}

func TestMagnitudes(t *testing.T) {
	s := Spectrum{Bins: []complex128{3 + 4i, -1, 0, 0 - 2i}, SampleRate: 4}
	want := []float64{5, 1, 0, 2}
	got := Magnitudes(s)
	if len(got) != len(want) {
		t.Fatalf("got %d magnitudes, want %d", len(got), len(want))
	}
	for i, m := range got {
		if m.Bin != i || m.Magnitude != want[i] {
			t.Errorf("magnitude %d = %+v, want {%d %f}", i, m, i, want[i])
		}
		if m.Magnitude < 0 {
			t.Errorf("negative magnitude at %d", i)
		}
	}
}

func TestPositiveFrequencies(t *testing.T) {
	// N = 8 at 800 Hz: 100 Hz per bin.
	s := Spectrum{
		Bins:       []complex128{1, 0, 2i, 0, 3, 0, -2i, 0},
		SampleRate: 800,
	}

	tests := []struct {
		name      string
		axis      Axis
		wantBins  []int
		wantFreqs []float64
	}{
		{"Hertz", AxisHertz, []int{0, 2, 4, 6}, []float64{0, 200, 400, 600}},
		{"Legacy index", AxisLegacyIndex, []int{0, 2, 4, 6}, []float64{0, 2, 4, 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, err := PositiveFrequencies(s, s.SampleRate, tt.axis)
			if err != nil {
				t.Fatal(err)
			}
			if len(points) != len(tt.wantBins) {
				t.Fatalf("got %d points, want %d: %+v", len(points), len(tt.wantBins), points)
			}
			for i, p := range points {
				if p.Bin != tt.wantBins[i] || p.Frequency != tt.wantFreqs[i] {
					t.Errorf("point %d = %+v, want bin %d at %f", i, p, tt.wantBins[i], tt.wantFreqs[i])
				}
				if !(p.Magnitude > 0) {
					t.Errorf("point %d has non-positive magnitude %f", i, p.Magnitude)
				}
			}
		})
	}

	if _, err := PositiveFrequencies(s, 0, AxisHertz); err == nil {
		t.Error("expected error for zero sample rate")
	}
	if _, err := PositiveFrequencies(s, 800, Axis(9)); err == nil {
		t.Error("expected error for unknown axis")
	}
}

func TestPositiveFrequenciesKeepsEveryPositiveBin(t *testing.T) {
	s := Spectrum{Bins: []complex128{1, 2, 3, 4, 5, 4, 3, 2}, SampleRate: 800}

	for _, axis := range []Axis{AxisHertz, AxisLegacyIndex} {
		points, err := PositiveFrequencies(s, s.SampleRate, axis)
		if err != nil {
			t.Fatal(err)
		}
		if len(points) != s.Len() {
			t.Errorf("%v: got %d points, want %d", axis, len(points), s.Len())
		}
	}
}

func TestNonAliased(t *testing.T) {
	points := []Point{{Bin: 0}, {Bin: 2}, {Bin: 4}, {Bin: 5}, {Bin: 7}}

	tests := []struct {
		name     string
		n        int
		wantBins []int
	}{
		{"Even length", 8, []int{0, 2, 4}},
		{"Odd length", 11, []int{0, 2, 4, 5}},
		{"Short", 2, []int{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NonAliased(points, tt.n)
			if len(got) != len(tt.wantBins) {
				t.Fatalf("NonAliased(n=%d) = %+v, want bins %v", tt.n, got, tt.wantBins)
			}
			for i, p := range got {
				if p.Bin != tt.wantBins[i] {
					t.Errorf("point %d bin = %d, want %d", i, p.Bin, tt.wantBins[i])
				}
			}
		})
	}
}

func TestPeaksAndThreshold(t *testing.T) {
	points := []Point{
		{Bin: 1, Magnitude: 1},
		{Bin: 2, Magnitude: 5},
		{Bin: 3, Magnitude: 2},
		{Bin: 4, Magnitude: 3},
		{Bin: 5, Magnitude: 9},
		{Bin: 6, Magnitude: 4},
		{Bin: 7, Magnitude: 6},
	}

	peaks := Peaks(points, 0)
	wantBins := []int{5, 7, 2}
	if len(peaks) != len(wantBins) {
		t.Fatalf("Peaks returned %+v, want bins %v", peaks, wantBins)
	}
	for i, p := range peaks {
		if p.Bin != wantBins[i] {
			t.Errorf("peak %d = bin %d, want %d", i, p.Bin, wantBins[i])
		}
	}

	if top := Peaks(points, 2); len(top) != 2 || top[0].Bin != 5 {
		t.Errorf("Peaks(k=2) = %+v", top)
	}
	if got := Peaks(nil, 3); len(got) != 0 {
		t.Errorf("Peaks(nil) = %+v", got)
	}

	above := AboveThreshold(points, 4)
	if len(above) != 3 {
		t.Errorf("AboveThreshold(4) returned %d points, want 3", len(above))
	}
	for _, p := range above {
		if p.Magnitude <= 4 {
			t.Errorf("AboveThreshold kept %+v", p)
		}
	}
}

func TestPeakBinRange(t *testing.T) {
	mags := []BinMagnitude{{0, 10}, {1, 1}, {2, 3}, {3, 2}}
	tests := []struct {
		lo, hi, want int
	}{
		{0, 4, 0},
		{1, 4, 2},
		{3, 100, 3},
		{-5, 2, 0},
		{2, 2, -1},
		{5, 9, -1},
	}
	for _, tt := range tests {
		if got := PeakBin(mags, tt.lo, tt.hi); got != tt.want {
			t.Errorf("PeakBin(%d, %d) = %d, want %d", tt.lo, tt.hi, got, tt.want)
		}
	}
}

func TestDominantFrequencyEmpty(t *testing.T) {
	cases := []Spectrum{
		{SampleRate: 44100},
		{Bins: []complex128{1}, SampleRate: 44100},
		{Bins: make([]complex128, 16), SampleRate: 44100},
	}
	for i, s := range cases {
		if _, err := DominantFrequency(s); !errors.Is(err, ErrEmptySpectrum) {
			t.Errorf("case %d: got %v, want ErrEmptySpectrum", i, err)
		}
	}
}

func TestParseWindowFunc(t *testing.T) {
	tests := []struct {
		name    string
		want    WindowFunc
		wantErr bool
	}{
		{"", None, false},
		{"none", None, false},
		{"Hann", Hann, false},
		{"hanning", Hann, false},
		{"HAMMING", Hamming, false},
		{"blackmannuttall", BlackmanNuttall, false},
		{"bartletthann", BartlettHann, false},
		{"lanczos", Lanczos, false},
		{"nuttall", Nuttall, false},
		{"blackman", Blackman, false},
		{"kaiser", None, true},
	}
	for _, tt := range tests {
		got, err := ParseWindowFunc(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseWindowFunc(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseWindowFunc(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestApplyWindow(t *testing.T) {
	ones := make([]float64, 64)
	for i := range ones {
		ones[i] = 1
	}
	in := mustBuffer(t, ones, 8000)

	if out := ApplyWindow(in, None); out.Peak() != 1 || out.Samples[0] != 1 {
		t.Error("None window changed the buffer")
	}

	out := ApplyWindow(in, Hann)
	if out.Samples[0] > 1e-12 || out.Samples[63] > 1e-12 {
		t.Errorf("Hann endpoints = %f, %f, want 0", out.Samples[0], out.Samples[63])
	}
	if in.Samples[0] != 1 {
		t.Error("ApplyWindow modified its input")
	}

	ham := ApplyWindow(in, Hamming)
	if math.Abs(ham.Samples[0]-0.08) > 1e-9 {
		t.Errorf("Hamming endpoint = %f, want 0.08", ham.Samples[0])
	}

	short := ApplyWindow(mustBuffer(t, []float64{0.5}, 8000), Hann)
	if short.Samples[0] != 0.5 {
		t.Errorf("single-sample window = %f, want unchanged", short.Samples[0])
	}
}

func TestBandEnergies(t *testing.T) {
	// 100 Hz per bin: bins 0..4 cover 0..400 Hz.
	s := Spectrum{Bins: []complex128{0, 2, 0, 4, 0, 0, 0, 0}, SampleRate: 800}
	bands := []FrequencyBand{
		{Name: "low", Low: 50, High: 150},
		{Name: "high", Low: 150},
	}

	got := BandEnergies(s, bands)
	if len(got) != 2 {
		t.Fatalf("got %d bands, want 2", len(got))
	}
	if got[0].Bins != 1 || got[0].Energy != 4 || got[0].Level != 2 {
		t.Errorf("low band = %+v", got[0])
	}
	// bins 2, 3, 4: (0 + 16 + 0) / 3
	if got[1].Bins != 3 || math.Abs(got[1].Energy-16.0/3) > 1e-12 {
		t.Errorf("high band = %+v", got[1])
	}
	if got[1].Name != "high" {
		t.Errorf("band name = %q", got[1].Name)
	}
}

func BenchmarkGonumForward(b *testing.B) {
	in := mustBuffer(b, utils.GenerateComplexWave(22050, testSampleRate), testSampleRate)
	tr := NewGonum()
	ctx := context.Background()

	b.ReportAllocs()
	for b.Loop() {
		_, _ = tr.Forward(ctx, in)
	}
}

func BenchmarkGoDSPForward(b *testing.B) {
	in := mustBuffer(b, utils.GenerateComplexWave(22050, testSampleRate), testSampleRate)
	ctx := context.Background()

	b.ReportAllocs()
	for b.Loop() {
		_, _ = GoDSP{}.Forward(ctx, in)
	}
}
