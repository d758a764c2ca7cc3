// SPDX-License-Identifier: MIT
package config

import (
	"time"

	"notescope/internal/interchange"
)

// Config represents the application configuration, loaded from YAML.
type Config struct {
	Debug        bool               `yaml:"debug"`     // Verbose logging.
	LogLevel     string             `yaml:"log_level"` // "debug", "info", "warn" or "error".
	Analysis     AnalysisConfig     `yaml:"analysis"`
	Filter       FilterConfig       `yaml:"filter"`
	Playback     PlaybackConfig     `yaml:"playback"`
	Collaborator CollaboratorConfig `yaml:"collaborator"`
	Transport    TransportConfig    `yaml:"transport"`
}

// AnalysisConfig holds the spectral analysis settings.
type AnalysisConfig struct {
	Transformer string  `yaml:"transformer"` // "gonum" or "godsp".
	Window      string  `yaml:"window"`      // Window applied before the forward transform ("none", "hamming", ...).
	LegacyAxis  bool    `yaml:"legacy_axis"` // Plot bin index as frequency, as the historical tool did.
	TopPeaks    int     `yaml:"top_peaks"`   // Number of spectral peaks reported.
	Threshold   float64 `yaml:"threshold"`   // Minimum magnitude for a reported peak.
	NoteMin     float64 `yaml:"note_min"`    // Lower bound of the note view in Hz.
	NoteMax     float64 `yaml:"note_max"`    // Upper bound of the note view in Hz.
}

// FilterConfig holds the band-pass stage settings.
type FilterConfig struct {
	Enabled bool    `yaml:"enabled"`
	Low     float64 `yaml:"low"`
	High    float64 `yaml:"high"`
	Order   int     `yaml:"order"`
}

// PlaybackConfig holds audio output and export settings.
type PlaybackConfig struct {
	Gain            float64 `yaml:"gain"`              // Applied before clipping to [-1, 1].
	OutputDevice    int     `yaml:"output_device"`     // PortAudio device index (-1 for default).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Must be a power of two.
	LowLatency      bool    `yaml:"low_latency"`
	ExportPath      string  `yaml:"export_path"` // WAV written alongside playback when set.
	BitDepth        int     `yaml:"bit_depth"`   // 16, 24 or 32.
}

// CollaboratorConfig configures the external transform program.
type CollaboratorConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Path      string        `yaml:"path"`
	WorkDir   string        `yaml:"work_dir"`
	Timeout   time.Duration `yaml:"timeout"`
	KeepFiles bool          `yaml:"keep_files"`
	Fallback  bool          `yaml:"fallback"` // Use the in-process transform when the program is missing.
	Cutoff    float64       `yaml:"cutoff"`   // Written to the cutoff file when > 0.
	Files     FilesConfig   `yaml:"files"`
}

// FilesConfig names the interchange files shared with the program.
type FilesConfig struct {
	Region     string `yaml:"region"`
	SampleRate string `yaml:"sample_rate"`
	Cutoff     string `yaml:"cutoff"`
	Filtered   string `yaml:"filtered"`
	Spectrum   string `yaml:"spectrum"`
	Inverse    string `yaml:"inverse"`
}

// TransportConfig holds settings for publishing results.
type TransportConfig struct {
	WebSocketAddr    string `yaml:"websocket_addr"`
	UDPEnabled       bool   `yaml:"udp_enabled"`
	UDPTargetAddress string `yaml:"udp_target_address"`
	UDPPrecision     string `yaml:"udp_precision"` // "float32" or "float16".
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Analysis: AnalysisConfig{
			Transformer: "gonum",
			Window:      "none",
			TopPeaks:    5,
			NoteMin:     16,
			NoteMax:     2100,
		},
		Filter: FilterConfig{
			Low:   200,
			High:  2000,
			Order: 3,
		},
		Playback: PlaybackConfig{
			Gain:            10000,
			OutputDevice:    -1,
			FramesPerBuffer: 512,
			BitDepth:        16,
		},
		Collaborator: CollaboratorConfig{
			Path:     "fft_processor",
			Timeout:  30 * time.Second,
			Fallback: true,
			Cutoff:   300,
			Files: FilesConfig{
				Region:     interchange.RegionFile,
				SampleRate: interchange.SampleRateFile,
				Cutoff:     interchange.CutoffFile,
				Filtered:   interchange.FilteredFile,
				Spectrum:   interchange.SpectrumFile,
				Inverse:    interchange.InverseFile,
			},
		},
		Transport: TransportConfig{
			WebSocketAddr:    "127.0.0.1:8080",
			UDPTargetAddress: "127.0.0.1:9090",
			UDPPrecision:     "float32",
		},
	}
}
