// SPDX-License-Identifier: MIT
package session

import (
	"context"
	"errors"

	applog "notescope/internal/log"
	"notescope/internal/notes"
	"notescope/internal/spectral"
	"notescope/internal/transport"
)

// Peak is a spectral peak with the note nearest to its frequency.
type Peak struct {
	spectral.Point
	Note  *notes.Entry // nil when the frequency has no note (DC)
	Cents float64
}

// Analysis is the result of Analyze.
type Analysis struct {
	Spectrum     spectral.Spectrum
	Axis         spectral.Axis
	Window       spectral.WindowFunc
	Dominant     float64      // Hz, 0 when the spectrum is flat
	DominantNote *notes.Entry // nil when Dominant is 0
	Peaks        []Peak
	Bands        []spectral.BandEnergy
}

// AnalyzeOptions overrides the analysis section of the configuration for a
// single call. The zero value uses the configuration.
type AnalyzeOptions struct {
	Window     *spectral.WindowFunc
	LegacyAxis *bool
	TopPeaks   *int
}

// Analyze windows the selection, transforms it and maps its peaks to notes.
func (s *Session) Analyze(ctx context.Context, opts AnalyzeOptions) (Analysis, error) {
	sel, err := s.Selection()
	if err != nil {
		return Analysis{}, err
	}

	ac := s.cfg.Analysis
	win, err := spectral.ParseWindowFunc(ac.Window)
	if err != nil {
		return Analysis{}, err
	}
	if opts.Window != nil {
		win = *opts.Window
	}
	axis := spectral.AxisHertz
	if ac.LegacyAxis {
		axis = spectral.AxisLegacyIndex
	}
	if opts.LegacyAxis != nil {
		axis = spectral.AxisHertz
		if *opts.LegacyAxis {
			axis = spectral.AxisLegacyIndex
		}
	}
	top := ac.TopPeaks
	if opts.TopPeaks != nil {
		top = *opts.TopPeaks
	}

	spec, err := s.transformer.Forward(ctx, spectral.ApplyWindow(sel, win))
	if err != nil {
		return Analysis{}, err
	}
	s.spectrum, s.reconstructed = &spec, nil

	points, err := spectral.PositiveFrequencies(spec, sel.SampleRate, axis)
	if err != nil {
		return Analysis{}, err
	}
	if axis == spectral.AxisLegacyIndex {
		applog.Warnf("Session %s: legacy axis labels bins by index, not Hz", s.ID)
	}

	res := Analysis{
		Spectrum: spec,
		Axis:     axis,
		Window:   win,
		Bands:    spectral.BandEnergies(spec, spectral.DefaultBands),
	}
	half := spectral.NonAliased(points, spec.Len())
	for _, p := range spectral.Peaks(spectral.AboveThreshold(half, ac.Threshold), top) {
		res.Peaks = append(res.Peaks, nearestPeak(p, spec.Frequency(p.Bin)))
	}

	dominant, err := spectral.DominantFrequency(spec)
	switch {
	case err == nil:
		res.Dominant = dominant
		if e, err := notes.Nearest(dominant); err == nil {
			res.DominantNote = &e
		}
	case !errors.Is(err, spectral.ErrEmptySpectrum):
		return Analysis{}, err
	}

	applog.Debugf("Session %s: %d bins, %d peaks, dominant %.2f Hz", s.ID, spec.Len(), len(res.Peaks), res.Dominant)
	s.publishAnalysis(res)
	return res, nil
}

// nearestPeak names p from its frequency in Hz, whatever axis labels it.
func nearestPeak(p spectral.Point, hz float64) Peak {
	peak := Peak{Point: p}
	e, err := notes.Nearest(hz)
	if err != nil {
		return peak
	}
	peak.Note = &e
	peak.Cents = notes.Cents(hz, e)
	return peak
}

// NoteInfo is one element of a transport.TypeNotes payload.
type NoteInfo struct {
	Frequency float64 `json:"frequency"`
	Magnitude float64 `json:"magnitude"`
	Note      string  `json:"note,omitempty"`
	Cents     float64 `json:"cents"`
}

func (s *Session) publishAnalysis(a Analysis) {
	if s.publisher == nil {
		return
	}
	half := a.Spectrum.Len()/2 + 1
	if half > a.Spectrum.Len() {
		half = a.Spectrum.Len()
	}
	mags := make([]float64, half)
	for i, m := range spectral.Magnitudes(a.Spectrum)[:half] {
		mags[i] = m.Magnitude
	}
	s.publish(transport.TypeSpectrum, transport.SpectrumFrame{
		SampleRate: a.Spectrum.SampleRate,
		Resolution: a.Spectrum.Resolution(),
		Magnitudes: mags,
	})

	infos := make([]NoteInfo, 0, len(a.Peaks))
	for _, p := range a.Peaks {
		info := NoteInfo{Frequency: p.Frequency, Magnitude: p.Magnitude, Cents: p.Cents}
		if p.Note != nil {
			info.Note = p.Note.Name
		}
		infos = append(infos, info)
	}
	s.publish(transport.TypeNotes, infos)
	s.publish(transport.TypeBands, a.Bands)
}
