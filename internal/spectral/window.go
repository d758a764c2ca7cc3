// SPDX-License-Identifier: MIT
package spectral

import (
	"fmt"
	"strings"

	applog "notescope/internal/log"
	"notescope/internal/waveform"

	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc selects a taper applied before the forward transform.
type WindowFunc int

// Available window functions. None leaves the buffer untouched and is the
// default, since the round trip through Inverse must reproduce the input.
const (
	None WindowFunc = iota
	BartlettHann
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

var windowNames = map[WindowFunc]string{
	None:            "none",
	BartlettHann:    "bartletthann",
	Blackman:        "blackman",
	BlackmanNuttall: "blackmannuttall",
	Hann:            "hann",
	Hamming:         "hamming",
	Lanczos:         "lanczos",
	Nuttall:         "nuttall",
}

func (w WindowFunc) String() string {
	if name, ok := windowNames[w]; ok {
		return name
	}
	return fmt.Sprintf("WindowFunc(%d)", int(w))
}

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc.
// Unknown names return None and an error.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "rectangular":
		return None, nil
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return None, fmt.Errorf("unknown window function name: '%s'", name)
	}
}

// ApplyWindow returns a copy of buf multiplied by the selected window.
// Buffers shorter than two samples are copied unchanged.
func ApplyWindow(buf waveform.Buffer, w WindowFunc) waveform.Buffer {
	out := buf.Clone()
	if out.Len() < 2 {
		return out
	}

	switch w {
	case None:
	case BartlettHann:
		window.BartlettHann(out.Samples)
	case Blackman:
		window.Blackman(out.Samples)
	case BlackmanNuttall:
		window.BlackmanNuttall(out.Samples)
	case Hann:
		window.Hann(out.Samples)
	case Hamming:
		window.Hamming(out.Samples)
	case Lanczos:
		window.Lanczos(out.Samples)
	case Nuttall:
		window.Nuttall(out.Samples)
	default:
		applog.Warnf("Spectral: unknown window function %d, leaving buffer unwindowed", int(w))
	}
	return out
}
