// SPDX-License-Identifier: MIT
package interchange

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSamplesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), RegionFile)
	want := []float64{0, 0.5, -0.25, 1e-9, -1, 0.123456789012345}

	if err := WriteSamples(path, want); err != nil {
		t.Fatalf("WriteSamples: %v", err)
	}
	got, err := ReadSamples(path)
	if err != nil {
		t.Fatalf("ReadSamples: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("read %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEncodeSamplesLayout(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeSamples(&buf, []float64{1, -0.5}); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "1\n-0.5\n" {
		t.Errorf("encoded %q", got)
	}
}

func TestDecodeSpectrum(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []complex128
		wantErr bool
	}{
		{"Spaces", "1 2\n-3.5 0\n", []complex128{1 + 2i, -3.5}, false},
		{"Tabs and blank lines", "1\t2\n\n  0.000001   -4e-3  \n", []complex128{1 + 2i, 0.000001 - 0.004i}, false},
		{"Fixed point", "440.000000 0.000000\n", []complex128{440}, false},
		{"Empty", "", []complex128{}, false},
		{"One column", "1 2\n3\n", nil, true},
		{"Three columns", "1 2 3\n", nil, true},
		{"Not a number", "1 abc\n", nil, true},
		{"NaN", "nan 0\n", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeSpectrum(strings.NewReader(tt.input), "fft_result.txt")
			if tt.wantErr {
				if !errors.Is(err, ErrFormat) {
					t.Fatalf("error = %v, want ErrFormat", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d bins, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("bin %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFormatErrorLine(t *testing.T) {
	_, err := DecodeSamples(strings.NewReader("1\n2\n\nthree\n"), "region.txt")
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FormatError", err)
	}
	if fe.Line != 4 || fe.Source != "region.txt" {
		t.Errorf("FormatError = %+v, want line 4 of region.txt", fe)
	}
	if !strings.HasPrefix(fe.Error(), "region.txt:4:") {
		t.Errorf("Error() = %q", fe.Error())
	}
}

func TestLongLineIsFormatError(t *testing.T) {
	input := "1\n" + strings.Repeat("9", maxLineBytes+1) + "\n"
	_, err := DecodeSamples(strings.NewReader(input), "region.txt")
	if !errors.Is(err, ErrFormat) {
		t.Fatalf("error = %v, want ErrFormat", err)
	}
	var fe *FormatError
	if !errors.As(err, &fe) || fe.Line != 2 {
		t.Errorf("FormatError = %+v, want line 2", fe)
	}
}

func TestSpectrumFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), SpectrumFile)
	want := []complex128{1 + 1i, -2.25 + 0.5i, 0}
	if err := WriteSpectrum(path, want); err != nil {
		t.Fatal(err)
	}
	got, err := ReadSpectrum(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bin %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSampleRateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, SampleRateFile)
	if err := WriteSampleRate(path, 44100); err != nil {
		t.Fatal(err)
	}
	raw, _ := os.ReadFile(path)
	if string(raw) != "44100\n" {
		t.Errorf("file content %q", raw)
	}
	rate, err := ReadSampleRate(path)
	if err != nil || rate != 44100 {
		t.Errorf("ReadSampleRate = %d, %v", rate, err)
	}

	cutoff := filepath.Join(dir, CutoffFile)
	if err := WriteCutoff(cutoff, 299.6); err != nil {
		t.Fatal(err)
	}
	if hz, err := ReadCutoff(cutoff); err != nil || hz != 300 {
		t.Errorf("ReadCutoff = %d, %v", hz, err)
	}
}

func TestDecodeIntErrors(t *testing.T) {
	inputs := map[string]string{
		"Empty":    "",
		"Blank":    "\n\n",
		"Float":    "44100.5\n",
		"Zero":     "0\n",
		"Negative": "-8000\n",
		"Two":      "44100\n48000\n",
		"Text":     "rate\n",
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeInt(strings.NewReader(in), "sample_rate.txt"); !errors.Is(err, ErrFormat) {
				t.Errorf("error = %v, want ErrFormat", err)
			}
		})
	}
}

func TestReadMissingFile(t *testing.T) {
	_, err := ReadSamples(filepath.Join(t.TempDir(), "missing.txt"))
	if err == nil || errors.Is(err, ErrFormat) {
		t.Errorf("error = %v, want a plain open error", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want os.ErrNotExist", err)
	}
}
