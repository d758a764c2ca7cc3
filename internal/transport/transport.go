// SPDX-License-Identifier: MIT

// Package transport publishes pipeline results to external consumers such
// as a browser renderer (WebSocket) or a visualiser listening on UDP.
package transport

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport closed")

// Transport defines a generic interface for sending processed results.
// Implementations must be safe for concurrent use.
type Transport interface {
	Send(data any) error
	Close() error
}

// Message types published by a session.
const (
	TypeWaveform    = "waveform"
	TypeRegion      = "region"
	TypeSpectrum    = "spectrum"
	TypeNotes       = "notes"
	TypeBands       = "band_energy"
	TypeReconstruct = "reconstruction"
)

// Message wraps a payload with its type and the session that produced it.
type Message struct {
	Type    string `json:"type"`
	Session string `json:"session"`
	Payload any    `json:"payload"`
}

// SpectrumFrame is the payload of a TypeSpectrum message: magnitudes of bins
// 0..N/2 spaced Resolution Hz apart.
type SpectrumFrame struct {
	SampleRate int       `json:"sampleRate"`
	Resolution float64   `json:"resolution"`
	Magnitudes []float64 `json:"magnitudes"`
}

// messageType returns the replay key for data.
func messageType(data any) string {
	switch m := data.(type) {
	case Message:
		return m.Type
	case *Message:
		return m.Type
	default:
		return fmt.Sprintf("%T", data)
	}
}

// Multi fans every message out to all transports. Send and Close visit every
// transport and join their errors.
type Multi []Transport

// Send implements Transport.
func (m Multi) Send(data any) error {
	var errs []error
	for _, t := range m {
		if err := t.Send(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements Transport.
func (m Multi) Close() error {
	var errs []error
	for _, t := range m {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Transport = Multi(nil)
