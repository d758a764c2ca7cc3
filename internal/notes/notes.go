// SPDX-License-Identifier: MIT

// Package notes maps frequencies to twelve-tone equal temperament note names
// over octaves 0 to 7, tuned to A4 = 440 Hz.
package notes

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
)

// ErrOutOfRange is returned for frequencies that are not positive and finite.
var ErrOutOfRange = errors.New("frequency out of range")

// Table layout.
const (
	ReferenceFrequency = 440.0
	ReferenceOctave    = 4
	ReferenceIndex     = 9 // A
	Octaves            = 8
	PitchClasses       = 12
	Size               = Octaves * PitchClasses
)

// PitchClassNames lists the pitch classes in table order.
var PitchClassNames = [PitchClasses]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Entry is one note of the table, e.g. {"A4", "A", 9, 4, 440}.
type Entry struct {
	Name       string
	PitchClass string
	Index      int // 0 = C ... 11 = B
	Octave     int
	Frequency  float64
}

func (e Entry) String() string {
	return fmt.Sprintf("%s (%.2f Hz)", e.Name, e.Frequency)
}

// Table is the note table in ascending frequency order.
type Table []Entry

var (
	tableOnce sync.Once
	table     Table
)

// Frequency returns the equal-temperament frequency of pitch class index in
// octave.
func Frequency(index, octave int) float64 {
	semitones := (octave-ReferenceOctave)*PitchClasses + index - ReferenceIndex
	return ReferenceFrequency * math.Pow(2, float64(semitones)/PitchClasses)
}

func shared() Table {
	tableOnce.Do(func() {
		table = make(Table, 0, Size)
		for octave := 0; octave < Octaves; octave++ {
			for index, class := range PitchClassNames {
				table = append(table, Entry{
					Name:       class + strconv.Itoa(octave),
					PitchClass: class,
					Index:      index,
					Octave:     octave,
					Frequency:  Frequency(index, octave),
				})
			}
		}
	})
	return table
}

// BuildTable returns the 96-entry table, C0 through B7. The table is
// generated once; each caller receives its own copy.
func BuildTable() Table {
	t := shared()
	out := make(Table, len(t))
	copy(out, t)
	return out
}

// Nearest returns the entry with the smallest absolute log-frequency distance
// to freq. Frequencies beyond either end of the table map to C0 or B7.
func Nearest(freq float64) (Entry, error) {
	if !(freq > 0) || math.IsInf(freq, 1) {
		return Entry{}, fmt.Errorf("%w: %v Hz", ErrOutOfRange, freq)
	}

	t := shared()
	target := math.Log2(freq)
	best, bestDist := 0, math.Inf(1)
	for i, e := range t {
		if d := math.Abs(target - math.Log2(e.Frequency)); d < bestDist {
			best, bestDist = i, d
		}
	}
	return t[best], nil
}

// Cents returns the deviation of freq from e in cents, positive when sharp.
func Cents(freq float64, e Entry) float64 {
	return 1200 * math.Log2(freq/e.Frequency)
}

// Lookup finds an entry by name, e.g. "C#3".
func (t Table) Lookup(name string) (Entry, bool) {
	for _, e := range t {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Range returns the entries with lo <= frequency <= hi.
func (t Table) Range(lo, hi float64) Table {
	out := make(Table, 0, len(t))
	for _, e := range t {
		if e.Frequency >= lo && e.Frequency <= hi {
			out = append(out, e)
		}
	}
	return out
}
