// SPDX-License-Identifier: MIT

// Package interchange reads and writes the flat text files exchanged with
// the external transform program: one sample per line, "real imag" spectrum
// lines, and single-integer handoff files.
package interchange

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Default file names used by the external transform program.
const (
	RegionFile     = "selected_audio_info.txt"
	FilteredFile   = "filtered_audio_info.txt"
	SampleRateFile = "sample_rate.txt"
	CutoffFile     = "cutoff_frequency.txt"
	SpectrumFile   = "fft_result.txt"
	InverseFile    = "inverse_fft_result.txt"
)

// ErrFormat is wrapped by every FormatError.
var ErrFormat = errors.New("malformed interchange file")

// FormatError reports the first malformed line of an interchange file.
type FormatError struct {
	Source string // file path, or "input" for readers
	Line   int    // 1-based, 0 when the file as a whole is wrong
	Reason string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Source, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Reason)
}

func (e *FormatError) Unwrap() error {
	return ErrFormat
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

// EncodeSamples writes one value per line.
func EncodeSamples(w io.Writer, samples []float64) error {
	bw := bufio.NewWriter(w)
	for _, v := range samples {
		bw.WriteString(formatFloat(v))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// DecodeSamples reads one value per line. Blank lines are skipped.
func DecodeSamples(r io.Reader, source string) ([]float64, error) {
	var samples []float64
	err := scanLines(r, source, func(line int, fields []string) error {
		if len(fields) != 1 {
			return &FormatError{Source: source, Line: line, Reason: fmt.Sprintf("want 1 value, got %d", len(fields))}
		}
		v, err := parseFloat(fields[0])
		if err != nil {
			return &FormatError{Source: source, Line: line, Reason: err.Error()}
		}
		samples = append(samples, v)
		return nil
	})
	if samples == nil {
		samples = []float64{}
	}
	return samples, err
}

// EncodeSpectrum writes "real imag" per bin.
func EncodeSpectrum(w io.Writer, bins []complex128) error {
	bw := bufio.NewWriter(w)
	for _, c := range bins {
		bw.WriteString(formatFloat(real(c)))
		bw.WriteByte(' ')
		bw.WriteString(formatFloat(imag(c)))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// DecodeSpectrum reads "real imag" lines separated by any whitespace.
func DecodeSpectrum(r io.Reader, source string) ([]complex128, error) {
	var bins []complex128
	err := scanLines(r, source, func(line int, fields []string) error {
		if len(fields) != 2 {
			return &FormatError{Source: source, Line: line, Reason: fmt.Sprintf("want 2 values, got %d", len(fields))}
		}
		re, err := parseFloat(fields[0])
		if err != nil {
			return &FormatError{Source: source, Line: line, Reason: err.Error()}
		}
		im, err := parseFloat(fields[1])
		if err != nil {
			return &FormatError{Source: source, Line: line, Reason: err.Error()}
		}
		bins = append(bins, complex(re, im))
		return nil
	})
	if bins == nil {
		bins = []complex128{}
	}
	return bins, err
}

// EncodeInt writes a single integer handoff value.
func EncodeInt(w io.Writer, v int) error {
	_, err := fmt.Fprintf(w, "%d\n", v)
	return err
}

// DecodeInt reads a file holding exactly one positive integer.
func DecodeInt(r io.Reader, source string) (int, error) {
	var (
		value int
		seen  bool
	)
	err := scanLines(r, source, func(line int, fields []string) error {
		if seen || len(fields) != 1 {
			return &FormatError{Source: source, Line: line, Reason: "want a single integer"}
		}
		v, err := strconv.Atoi(fields[0])
		if err != nil {
			return &FormatError{Source: source, Line: line, Reason: err.Error()}
		}
		if v <= 0 {
			return &FormatError{Source: source, Line: line, Reason: fmt.Sprintf("value %d must be positive", v)}
		}
		value, seen = v, true
		return nil
	})
	if err != nil {
		return 0, err
	}
	if !seen {
		return 0, &FormatError{Source: source, Reason: "empty file"}
	}
	return value, nil
}

// maxLineBytes bounds a single line of an interchange file.
const maxLineBytes = 1024 * 1024

func scanLines(r io.Reader, source string, fn func(line int, fields []string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if err := fn(line, fields); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return &FormatError{Source: source, Line: line + 1, Reason: fmt.Sprintf("line longer than %d bytes", maxLineBytes)}
		}
		return fmt.Errorf("read %s: %w", source, err)
	}
	return nil
}

func writeFile(path string, encode func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	if err := encode(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readFile[T any](path string, decode func(io.Reader, string) (T, error)) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return decode(f, path)
}

// WriteSamples writes a sample dump such as the selected region or an inverse transform.
func WriteSamples(path string, samples []float64) error {
	return writeFile(path, func(w io.Writer) error { return EncodeSamples(w, samples) })
}

// ReadSamples reads a sample dump.
func ReadSamples(path string) ([]float64, error) {
	return readFile(path, DecodeSamples)
}

// WriteSpectrum writes a spectrum dump.
func WriteSpectrum(path string, bins []complex128) error {
	return writeFile(path, func(w io.Writer) error { return EncodeSpectrum(w, bins) })
}

// ReadSpectrum reads a spectrum dump.
func ReadSpectrum(path string) ([]complex128, error) {
	return readFile(path, DecodeSpectrum)
}

// WriteSampleRate writes the sample-rate handoff file.
func WriteSampleRate(path string, rate int) error {
	return writeFile(path, func(w io.Writer) error { return EncodeInt(w, rate) })
}

// ReadSampleRate reads the sample-rate handoff file.
func ReadSampleRate(path string) (int, error) {
	return readFile(path, DecodeInt)
}

// WriteCutoff writes the cutoff handoff file, rounded to whole Hz.
func WriteCutoff(path string, hz float64) error {
	return writeFile(path, func(w io.Writer) error { return EncodeInt(w, int(math.Round(hz))) })
}

// ReadCutoff reads the cutoff handoff file.
func ReadCutoff(path string) (int, error) {
	return readFile(path, DecodeInt)
}
