// SPDX-License-Identifier: MIT
package transport

import (
	applog "notescope/internal/log"
)

// LoggingTransport implements the Transport interface by logging a summary of
// each message at debug level.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Debugf("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received data.
func (lt *LoggingTransport) Send(data any) error {
	if m, ok := data.(Message); ok {
		if f, ok := m.Payload.(SpectrumFrame); ok {
			applog.Debugf("Transport: %s [%s] %d bins @ %.3f Hz", m.Type, m.Session, len(f.Magnitudes), f.Resolution)
			return nil
		}
		applog.Debugf("Transport: %s [%s] %T", m.Type, m.Session, m.Payload)
		return nil
	}
	applog.Debugf("Transport: %T", data)
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
