// SPDX-License-Identifier: MIT
package waveform

import (
	"fmt"
	"io"
	"os"
	"sync"

	applog "notescope/internal/log"
)

// Store keeps the most recently loaded recording. A new load replaces the
// previous buffer wholesale; no history is kept.
type Store struct {
	mu      sync.RWMutex
	current *Buffer
	source  string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Load decodes the file at path and makes it the current buffer.
func (s *Store) Load(path string) (Buffer, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return Buffer{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: open %s: %v", ErrDecode, path, err)
	}
	defer f.Close()

	buf, err := s.load(f, format, path)
	if err != nil {
		return Buffer{}, fmt.Errorf("load %s: %w", path, err)
	}
	return buf, nil
}

// LoadReader decodes an in-memory source and makes it the current buffer.
func (s *Store) LoadReader(r io.ReadSeeker, format string) (Buffer, error) {
	return s.load(r, format, "<reader>")
}

func (s *Store) load(r io.ReadSeeker, format, source string) (Buffer, error) {
	buf, err := Decode(r, format)
	if err != nil {
		return Buffer{}, err
	}

	s.mu.Lock()
	s.current = &buf
	s.source = source
	s.mu.Unlock()

	applog.Debugf("Waveform: loaded %s (%d samples @ %d Hz, %.2fs)",
		source, buf.Len(), buf.SampleRate, buf.Duration())
	return buf, nil
}

// Current returns the most recently loaded buffer.
func (s *Store) Current() (Buffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return Buffer{}, ErrNotLoaded
	}
	return *s.current, nil
}

// Source returns the path of the current buffer, empty before any load.
func (s *Store) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}
