// SPDX-License-Identifier: MIT
package spectral

import (
	"math"
	"math/cmplx"
)

// FrequencyBand names a frequency range [Low, High). High <= 0 extends the
// band to the Nyquist frequency.
type FrequencyBand struct {
	Name string
	Low  float64
	High float64
}

// DefaultBands splits the audible range into the usual mixing bands.
var DefaultBands = []FrequencyBand{
	{Name: "sub", Low: 20, High: 60},
	{Name: "bass", Low: 60, High: 250},
	{Name: "lowMid", Low: 250, High: 500},
	{Name: "mid", Low: 500, High: 2000},
	{Name: "highMid", Low: 2000, High: 4000},
	{Name: "treble", Low: 4000},
}

// BandEnergy is the mean squared magnitude of the bins falling in a band,
// and its square root as a level.
type BandEnergy struct {
	FrequencyBand
	Energy float64
	Level  float64
	Bins   int
}

// BandEnergies averages |X[k]|² over bins 0..N/2 within each band. Bins
// belong to the first band that contains them.
func BandEnergies(s Spectrum, bands []FrequencyBand) []BandEnergy {
	out := make([]BandEnergy, len(bands))
	nyquist := float64(s.SampleRate) / 2
	for i, b := range bands {
		if b.High <= 0 {
			b.High = math.Nextafter(nyquist, math.Inf(1))
		}
		out[i].FrequencyBand = b
	}

	n := s.Len()
	for k := 0; k <= n/2 && k < n; k++ {
		freq := s.Frequency(k)
		for i := range out {
			if freq >= out[i].Low && freq < out[i].High {
				m := cmplx.Abs(s.Bins[k])
				out[i].Energy += m * m
				out[i].Bins++
				break
			}
		}
	}

	for i := range out {
		if out[i].Bins > 0 {
			out[i].Energy /= float64(out[i].Bins)
		}
		out[i].Level = math.Sqrt(out[i].Energy)
	}
	return out
}
