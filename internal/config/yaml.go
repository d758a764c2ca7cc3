// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"notescope/internal/filter"
	applog "notescope/internal/log"
	"notescope/internal/spectral"
	"notescope/internal/transport/udp"
	"notescope/pkg/bitint"
)

// FileName is the config file searched for when no path is given.
const FileName = "notescope.yaml"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

const maxFramesPerBuffer = 8192

// dotenvFiles are loaded before the ENV_ overrides. Missing files are ignored
// and variables already present in the environment win.
var dotenvFiles = []string{".env"}

// candidates lists the locations searched when LoadConfig gets an empty path.
var candidates = func() []string {
	paths := []string{FileName}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "notescope", FileName))
	}
	return paths
}

// LoadConfig loads configuration from a YAML file specified by path. If path
// is empty, it searches the default locations and falls back to built-in
// defaults. The .env file and ENV_ overrides are applied on top, then the
// result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range candidates() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		applog.Debugf("Config: loaded %s", path)
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv() error {
	for _, f := range dotenvFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
		applog.Debugf("Config: loaded environment from %s", f)
	}
	return nil
}

// Validate checks every section and reports the first problem.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok && c.LogLevel != "" {
		return fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}

	// Analysis
	if _, err := spectral.NewTransformer(c.Analysis.Transformer); err != nil {
		return fmt.Errorf("%w: analysis.transformer: %v", ErrInvalidConfig, err)
	}
	if _, err := spectral.ParseWindowFunc(c.Analysis.Window); err != nil {
		return fmt.Errorf("%w: analysis.window: %v", ErrInvalidConfig, err)
	}
	if c.Analysis.TopPeaks < 0 {
		return fmt.Errorf("%w: analysis.top_peaks must not be negative", ErrInvalidConfig)
	}
	if c.Analysis.NoteMin < 0 || c.Analysis.NoteMax < c.Analysis.NoteMin {
		return fmt.Errorf("%w: analysis note range %.1f-%.1f", ErrInvalidConfig, c.Analysis.NoteMin, c.Analysis.NoteMax)
	}

	// Filter. The Nyquist bound depends on the loaded file and is checked by
	// the filter stage itself.
	if c.Filter.Enabled {
		if c.Filter.Low <= 0 || c.Filter.High <= c.Filter.Low {
			return fmt.Errorf("%w: filter band %.1f-%.1f", ErrInvalidConfig, c.Filter.Low, c.Filter.High)
		}
		if c.Filter.Order < filter.MinOrder || c.Filter.Order > filter.MaxOrder {
			return fmt.Errorf("%w: filter.order %d outside %d-%d", ErrInvalidConfig, c.Filter.Order, filter.MinOrder, filter.MaxOrder)
		}
	}

	// Playback
	if c.Playback.Gain <= 0 {
		return fmt.Errorf("%w: playback.gain must be positive", ErrInvalidConfig)
	}
	if !bitint.IsPowerOfTwo(c.Playback.FramesPerBuffer) || c.Playback.FramesPerBuffer > maxFramesPerBuffer {
		return fmt.Errorf("%w: playback.frames_per_buffer %d must be a power of two up to %d",
			ErrInvalidConfig, c.Playback.FramesPerBuffer, maxFramesPerBuffer)
	}
	switch c.Playback.BitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("%w: playback.bit_depth %d", ErrInvalidConfig, c.Playback.BitDepth)
	}

	// Collaborator
	if c.Collaborator.Enabled && c.Collaborator.Path == "" {
		return fmt.Errorf("%w: collaborator.path must be set when enabled", ErrInvalidConfig)
	}
	if c.Collaborator.Timeout < 0 {
		return fmt.Errorf("%w: collaborator.timeout must not be negative", ErrInvalidConfig)
	}
	if c.Collaborator.Cutoff < 0 {
		return fmt.Errorf("%w: collaborator.cutoff must not be negative", ErrInvalidConfig)
	}
	files := c.Collaborator.Files
	for _, f := range []struct{ key, name string }{
		{"region", files.Region},
		{"sample_rate", files.SampleRate},
		{"cutoff", files.Cutoff},
		{"filtered", files.Filtered},
		{"spectrum", files.Spectrum},
		{"inverse", files.Inverse},
	} {
		if strings.TrimSpace(f.name) == "" {
			return fmt.Errorf("%w: collaborator.files.%s must not be empty", ErrInvalidConfig, f.key)
		}
	}

	// Transport
	if c.Transport.UDPEnabled {
		if _, _, err := net.SplitHostPort(c.Transport.UDPTargetAddress); err != nil {
			return fmt.Errorf("%w: transport.udp_target_address '%s': %v", ErrInvalidConfig, c.Transport.UDPTargetAddress, err)
		}
	}
	if _, err := udp.ParsePrecision(c.Transport.UDPPrecision); err != nil {
		return fmt.Errorf("%w: transport.udp_precision: %v", ErrInvalidConfig, err)
	}
	return nil
}

// applyEnvOverrides applies ENV_ variables on top of the file values.
// Unparsable values are ignored with a warning.
func (cfg *Config) applyEnvOverrides() {
	// ENV_{...}
	// These are general overrides.
	envBool("ENV_DEBUG", "debug", &cfg.Debug)
	envString("ENV_LOG_LEVEL", "log_level", &cfg.LogLevel)

	envString("ENV_TRANSFORMER", "analysis.transformer", &cfg.Analysis.Transformer)
	envString("ENV_WINDOW", "analysis.window", &cfg.Analysis.Window)
	envFloat("ENV_PLAYBACK_GAIN", "playback.gain", &cfg.Playback.Gain)
	envInt("ENV_OUTPUT_DEVICE", "playback.output_device", &cfg.Playback.OutputDevice)

	// ENV_COLLABORATOR_{...}
	envBool("ENV_COLLABORATOR_ENABLED", "collaborator.enabled", &cfg.Collaborator.Enabled)
	envString("ENV_COLLABORATOR_PATH", "collaborator.path", &cfg.Collaborator.Path)
	envString("ENV_COLLABORATOR_WORK_DIR", "collaborator.work_dir", &cfg.Collaborator.WorkDir)
	if val, ok := os.LookupEnv("ENV_COLLABORATOR_TIMEOUT"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Collaborator.Timeout = dur
			applog.Infof("Config: overriding collaborator.timeout from env: %s", dur)
		} else {
			applog.Warnf("Config: ignoring ENV_COLLABORATOR_TIMEOUT=%q: %v", val, err)
		}
	}

	// ENV_UDP_{...} and ENV_WS_ADDR
	// These are specific to the transport layer.
	envBool("ENV_UDP_ENABLED", "transport.udp_enabled", &cfg.Transport.UDPEnabled)
	envString("ENV_UDP_TARGET_ADDRESS", "transport.udp_target_address", &cfg.Transport.UDPTargetAddress)
	envString("ENV_UDP_PRECISION", "transport.udp_precision", &cfg.Transport.UDPPrecision)
	envString("ENV_WS_ADDR", "transport.websocket_addr", &cfg.Transport.WebSocketAddr)
}

func envString(key, field string, dst *string) {
	if val, ok := os.LookupEnv(key); ok {
		*dst = val
		applog.Infof("Config: overriding %s from env: %s", field, val)
	}
}

func envBool(key, field string, dst *bool) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		applog.Warnf("Config: ignoring %s=%q: %v", key, val, err)
		return
	}
	*dst = b
	applog.Infof("Config: overriding %s from env: %v", field, b)
}

func envInt(key, field string, dst *int) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		applog.Warnf("Config: ignoring %s=%q: %v", key, val, err)
		return
	}
	*dst = n
	applog.Infof("Config: overriding %s from env: %d", field, n)
}

func envFloat(key, field string, dst *float64) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		applog.Warnf("Config: ignoring %s=%q: %v", key, val, err)
		return
	}
	*dst = f
	applog.Infof("Config: overriding %s from env: %g", field, f)
}
