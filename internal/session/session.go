// SPDX-License-Identifier: MIT

// Package session holds the state of one analysis run: the loaded waveform,
// the selected region and the results derived from it. Every stage is an
// explicit method call; nothing is kept in package globals.
package session

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"notescope/internal/audio"
	"notescope/internal/collaborator"
	"notescope/internal/config"
	"notescope/internal/filter"
	applog "notescope/internal/log"
	"notescope/internal/reconstruct"
	"notescope/internal/region"
	"notescope/internal/spectral"
	"notescope/internal/transport"
	"notescope/internal/waveform"
)

var (
	// ErrNoSelection is returned by stages that need a selected region.
	ErrNoSelection = errors.New("no region selected")
	// ErrNotAnalyzed is returned when no spectrum has been computed yet.
	ErrNotAnalyzed = errors.New("no spectrum computed")
)

// WaveformInfo is the payload of a transport.TypeWaveform message.
type WaveformInfo struct {
	Source     string  `json:"source"`
	SampleRate int     `json:"sampleRate"`
	Samples    int     `json:"samples"`
	Duration   float64 `json:"duration"`
}

// RegionInfo is the payload of a transport.TypeRegion message.
type RegionInfo struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Samples int     `json:"samples"`
}

// Session is one analysis run. It is not safe for concurrent use; the
// publishers it feeds are.
type Session struct {
	ID string

	cfg         config.Config
	store       *waveform.Store
	transformer spectral.Transformer
	inProcess   spectral.Transformer
	process     *collaborator.Process // nil unless the collaborator is enabled
	sink        reconstruct.Sink
	publisher   transport.Transport

	selection     *waveform.Buffer
	spectrum      *spectral.Spectrum
	reconstructed *waveform.Buffer
}

// Option customises a Session.
type Option func(*Session)

// WithPublisher sends every result to t.
func WithPublisher(t transport.Transport) Option {
	return func(s *Session) { s.publisher = t }
}

// WithSink replaces the PortAudio player used by Play.
func WithSink(sink reconstruct.Sink) Option {
	return func(s *Session) { s.sink = sink }
}

// WithTransformer replaces the transformer chosen from the configuration.
func WithTransformer(tr spectral.Transformer) Option {
	return func(s *Session) { s.transformer = tr }
}

// New creates a session from cfg.
func New(cfg config.Config, opts ...Option) (*Session, error) {
	s := &Session{
		ID:    uuid.NewString(),
		cfg:   cfg,
		store: waveform.NewStore(),
		sink: audio.NewPlayer(audio.PlayerConfig{
			DeviceID:        cfg.Playback.OutputDevice,
			FramesPerBuffer: cfg.Playback.FramesPerBuffer,
			LowLatency:      cfg.Playback.LowLatency,
		}),
	}

	inProcess, err := spectral.NewTransformer(cfg.Analysis.Transformer)
	if err != nil {
		return nil, err
	}
	s.transformer, s.inProcess = inProcess, inProcess
	if cfg.Collaborator.Enabled {
		s.process = collaborator.New(collaboratorOptions(cfg.Collaborator))
		if cfg.Collaborator.Fallback {
			s.transformer = collaborator.WithFallback(s.process, inProcess)
		} else {
			s.transformer = s.process
		}
	}

	for _, opt := range opts {
		opt(s)
	}
	applog.Debugf("Session %s: created (transformer %T)", s.ID, s.transformer)
	return s, nil
}

func collaboratorOptions(c config.CollaboratorConfig) collaborator.Options {
	return collaborator.Options{
		Path:      c.Path,
		WorkDir:   c.WorkDir,
		Timeout:   c.Timeout,
		KeepFiles: c.KeepFiles,
		Cutoff:    c.Cutoff,
		Files: collaborator.Files{
			Region:     c.Files.Region,
			SampleRate: c.Files.SampleRate,
			Cutoff:     c.Files.Cutoff,
			Filtered:   c.Files.Filtered,
			Spectrum:   c.Files.Spectrum,
			Inverse:    c.Files.Inverse,
		},
	}
}

// Config returns the configuration the session was created with.
func (s *Session) Config() config.Config {
	return s.cfg
}

// Store exposes the waveform store, e.g. for a publisher serving the
// current buffer.
func (s *Session) Store() *waveform.Store {
	return s.store
}

// Load decodes path into the store and discards every earlier result.
func (s *Session) Load(path string) (waveform.Buffer, error) {
	buf, err := s.store.Load(path)
	if err != nil {
		return waveform.Buffer{}, err
	}
	s.selection, s.spectrum, s.reconstructed = nil, nil, nil
	s.publish(transport.TypeWaveform, WaveformInfo{
		Source:     path,
		SampleRate: buf.SampleRate,
		Samples:    buf.Len(),
		Duration:   buf.Duration(),
	})
	return buf, nil
}

// Select copies the samples between the two time markers of the loaded
// waveform and makes them the current selection.
func (s *Session) Select(r region.TimeRegion) (waveform.Buffer, error) {
	buf, err := s.store.Current()
	if err != nil {
		return waveform.Buffer{}, err
	}
	sel, err := region.Select(buf, r)
	if err != nil {
		return waveform.Buffer{}, err
	}
	s.selection, s.spectrum, s.reconstructed = &sel, nil, nil
	s.publish(transport.TypeRegion, RegionInfo{Start: r.Start, End: r.End, Samples: sel.Len()})
	return sel, nil
}

// SelectAll selects the whole loaded waveform.
func (s *Session) SelectAll() (waveform.Buffer, error) {
	buf, err := s.store.Current()
	if err != nil {
		return waveform.Buffer{}, err
	}
	return s.Select(region.TimeRegion{Start: 0, End: buf.Duration()})
}

// Selection returns the current selection.
func (s *Session) Selection() (waveform.Buffer, error) {
	if s.selection == nil {
		return waveform.Buffer{}, ErrNoSelection
	}
	return *s.selection, nil
}

// Filter band-limits the selection and replaces it with the filtered,
// peak-normalised signal.
func (s *Session) Filter(spec filter.Spec) (waveform.Buffer, error) {
	sel, err := s.Selection()
	if err != nil {
		return waveform.Buffer{}, err
	}
	coeffs, err := filter.Design(spec, sel.SampleRate)
	if err != nil {
		return waveform.Buffer{}, err
	}
	out, err := filter.Apply(sel, coeffs)
	if err != nil {
		return waveform.Buffer{}, err
	}
	s.selection, s.spectrum, s.reconstructed = &out, nil, nil
	applog.Debugf("Session %s: filtered %s", s.ID, spec)
	return out, nil
}

// FilterFromConfig applies the configured filter when it is enabled and
// reports whether it ran.
func (s *Session) FilterFromConfig() (bool, error) {
	fc := s.cfg.Filter
	if !fc.Enabled {
		return false, nil
	}
	_, err := s.Filter(filter.Spec{Low: fc.Low, High: fc.High, Order: fc.Order})
	return err == nil, err
}

// Spectrum returns the last computed spectrum.
func (s *Session) Spectrum() (spectral.Spectrum, error) {
	if s.spectrum == nil {
		return spectral.Spectrum{}, ErrNotAnalyzed
	}
	return *s.spectrum, nil
}

// publish sends a message when a publisher is attached. Publishing failures
// never fail the pipeline.
func (s *Session) publish(kind string, payload any) {
	if s.publisher == nil {
		return
	}
	msg := transport.Message{Type: kind, Session: s.ID, Payload: payload}
	if err := s.publisher.Send(msg); err != nil {
		applog.Warnf("Session %s: publish %s: %v", s.ID, kind, err)
	}
}

// Close releases the publisher.
func (s *Session) Close() error {
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.Close(); err != nil {
		return fmt.Errorf("session %s: %w", s.ID, err)
	}
	return nil
}
