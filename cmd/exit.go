// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"notescope/internal/collaborator"
	"notescope/internal/config"
	"notescope/internal/filter"
	"notescope/internal/interchange"
	"notescope/internal/notes"
	"notescope/internal/reconstruct"
	"notescope/internal/region"
	"notescope/internal/session"
	"notescope/internal/spectral"
	"notescope/internal/waveform"
)

// Exit codes, one per error kind.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitDecode      = 3
	ExitRegion      = 4
	ExitFilter      = 5
	ExitOutOfRange  = 6
	ExitSilent      = 7
	ExitExternal    = 8
	ExitFormat      = 9
	ExitConfig      = 10
	ExitInterrupted = 130
)

// errUsage marks errors caused by the command line itself.
var errUsage = errors.New("usage")

type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }
func (e *usageError) Unwrap() error { return errUsage }

func usageErrorf(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

var exitCodes = []struct {
	err  error
	code int
}{
	{errUsage, ExitUsage},
	{config.ErrInvalidConfig, ExitConfig},
	{collaborator.ErrExternalProcess, ExitExternal},
	{interchange.ErrFormat, ExitFormat},
	{waveform.ErrDecode, ExitDecode},
	{waveform.ErrNotLoaded, ExitDecode},
	{waveform.ErrInvalidSampleRate, ExitDecode},
	{region.ErrInvalidRegion, ExitRegion},
	{region.ErrEmptyRegion, ExitRegion},
	{session.ErrNoSelection, ExitRegion},
	{filter.ErrInvalidFilterSpec, ExitFilter},
	{notes.ErrOutOfRange, ExitOutOfRange},
	{reconstruct.ErrSilentBuffer, ExitSilent},
	{reconstruct.ErrInvalidGain, ExitSilent},
	{spectral.ErrUnknownTransformer, ExitConfig},
	{context.Canceled, ExitInterrupted},
}

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	for _, e := range exitCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return ExitFailure
}

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageErrorf("%v", err)
		}
		return nil
	}
}
