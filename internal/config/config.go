package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/gopxl/beep/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/llehouerou/cadence/internal/decoder"
	"github.com/llehouerou/cadence/internal/playback"
	"github.com/llehouerou/cadence/internal/sink"
	"github.com/llehouerou/cadence/internal/spectrum"
)

const appName = "cadence"

type Config struct {
	Output   OutputConfig   `koanf:"output"`
	Buffer   BufferConfig   `koanf:"buffer"`
	Playback PlaybackConfig `koanf:"playback"`
	Spectrum SpectrumConfig `koanf:"spectrum"`
	MPRIS    MPRISConfig    `koanf:"mpris"`
	Notify   NotifyConfig   `koanf:"notify"`
	Session  SessionConfig  `koanf:"session"`
	Log      LogConfig      `koanf:"log"`
}

// OutputConfig is read once, when the audio device is opened.
type OutputConfig struct {
	Backend         string `koanf:"backend"`          // "speaker", "oto" or "headless"
	SampleRate      int    `koanf:"sample_rate"`      // 0 = rate of the first track
	LatencyMs       int    `koanf:"latency_ms"`       // device buffer
	OpenTimeoutMs   int    `koanf:"open_timeout_ms"`  // give up opening the device after this
	ResampleQuality int    `koanf:"resample_quality"` // 1..64
}

type BufferConfig struct {
	CapacityMs  int `koanf:"capacity_ms"`  // decoded audio kept ahead of the device
	BlockFrames int `koanf:"block_frames"` // frames per decoded block
	PrimeMs     int `koanf:"prime_ms"`     // audio queued before output starts, 0 = first block
}

type PlaybackConfig struct {
	TickMs             int     `koanf:"tick_ms"`              // position update interval
	AutoAdvance        *bool   `koanf:"auto_advance"`         // play the next queue entry (default: true)
	RestartThresholdMs int     `koanf:"restart_threshold_ms"` // Previous restarts past this
	SeekMode           string  `koanf:"seek_mode"`            // "accurate" or "coarse"
	InitialVolume      float64 `koanf:"initial_volume"`       // 0..1
}

type SpectrumConfig struct {
	Enabled    *bool   `koanf:"enabled"` // default: true
	Window     int     `koanf:"window"`  // FFT size, power of two
	IntervalMs int     `koanf:"interval_ms"`
	Bins       int     `koanf:"bins"`
	MinFreq    float64 `koanf:"min_freq"`
	MaxFreq    float64 `koanf:"max_freq"`
	Decay      float64 `koanf:"decay"` // 0 = no smoothing
}

type MPRISConfig struct {
	Enabled  *bool  `koanf:"enabled"` // default: true
	Identity string `koanf:"identity"`
}

type NotifyConfig struct {
	Enabled bool `koanf:"enabled"` // desktop notification on track change
}

// SessionConfig controls saving the queue and volume between runs.
type SessionConfig struct {
	Restore *bool  `koanf:"restore"` // default: true
	File    string `koanf:"file"`    // default: $XDG_DATA_HOME/cadence/session.db
}

type LogConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
	File  string `koanf:"file"`  // default: $XDG_STATE_HOME/cadence/cadence.log
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			Backend:         sink.BackendSpeaker,
			LatencyMs:       100,
			OpenTimeoutMs:   3000,
			ResampleQuality: 4,
		},
		Buffer: BufferConfig{
			CapacityMs:  1000,
			BlockFrames: 1024,
		},
		Playback: PlaybackConfig{
			TickMs:             250,
			RestartThresholdMs: 3000,
			SeekMode:           decoder.SeekAccurate.String(),
			InitialVolume:      1,
		},
		Spectrum: SpectrumConfig{
			Window:     4096,
			IntervalMs: 50,
			Bins:       64,
			MinFreq:    40,
			MaxFreq:    16000,
			Decay:      0.5,
		},
		MPRIS: MPRISConfig{Identity: "Cadence"},
		Log:   LogConfig{Level: "info"},
	}
}

// Load reads the config files in order, later files overriding earlier
// ones: the XDG config file, ./config.toml, then explicit if not empty.
// Missing files are skipped, except explicit.
func Load(explicit string) (*Config, error) {
	k := koanf.New(".")

	if explicit != "" {
		explicit = expandPath(explicit)
		if _, err := os.Stat(explicit); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
	}

	for _, path := range getConfigPaths(explicit) {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

func getConfigPaths(explicit string) []string {
	paths := []string{
		filepath.Join(xdg.ConfigHome, appName, "config.toml"),
		"config.toml",
	}
	if explicit != "" {
		paths = append(paths, explicit)
	}
	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// normalize replaces out-of-range values with their defaults.
func (c *Config) normalize() {
	d := Default()

	c.Output.Backend = strings.ToLower(strings.TrimSpace(c.Output.Backend))
	switch c.Output.Backend {
	case sink.BackendSpeaker, sink.BackendOto, sink.BackendHeadless:
	default:
		c.Output.Backend = d.Output.Backend
	}
	if c.Output.SampleRate < 0 || c.Output.SampleRate > 768000 {
		c.Output.SampleRate = 0
	}
	if c.Output.LatencyMs <= 0 {
		c.Output.LatencyMs = d.Output.LatencyMs
	}
	if c.Output.OpenTimeoutMs <= 0 {
		c.Output.OpenTimeoutMs = d.Output.OpenTimeoutMs
	}
	if c.Output.ResampleQuality < 1 || c.Output.ResampleQuality > 64 {
		c.Output.ResampleQuality = d.Output.ResampleQuality
	}

	if c.Buffer.CapacityMs <= 0 {
		c.Buffer.CapacityMs = d.Buffer.CapacityMs
	}
	if c.Buffer.BlockFrames <= 0 {
		c.Buffer.BlockFrames = d.Buffer.BlockFrames
	}
	if c.Buffer.PrimeMs < 0 || c.Buffer.PrimeMs > c.Buffer.CapacityMs {
		c.Buffer.PrimeMs = 0
	}

	if c.Playback.TickMs <= 0 {
		c.Playback.TickMs = d.Playback.TickMs
	}
	if c.Playback.RestartThresholdMs < 0 {
		c.Playback.RestartThresholdMs = d.Playback.RestartThresholdMs
	}
	if mode, err := decoder.ParseSeekMode(c.Playback.SeekMode); err == nil {
		c.Playback.SeekMode = mode.String()
	} else {
		c.Playback.SeekMode = d.Playback.SeekMode
	}
	if c.Playback.InitialVolume < 0 || c.Playback.InitialVolume > 1 {
		c.Playback.InitialVolume = d.Playback.InitialVolume
	}

	if c.Spectrum.Window < 64 || bits.OnesCount(uint(c.Spectrum.Window)) != 1 {
		c.Spectrum.Window = d.Spectrum.Window
	}
	if c.Spectrum.IntervalMs <= 0 {
		c.Spectrum.IntervalMs = d.Spectrum.IntervalMs
	}
	if c.Spectrum.Bins <= 0 {
		c.Spectrum.Bins = d.Spectrum.Bins
	}
	if c.Spectrum.MinFreq <= 0 {
		c.Spectrum.MinFreq = d.Spectrum.MinFreq
	}
	if c.Spectrum.MaxFreq <= c.Spectrum.MinFreq {
		c.Spectrum.MaxFreq = d.Spectrum.MaxFreq
	}
	if c.Spectrum.Decay < 0 || c.Spectrum.Decay >= 1 {
		c.Spectrum.Decay = d.Spectrum.Decay
	}

	if strings.TrimSpace(c.MPRIS.Identity) == "" {
		c.MPRIS.Identity = d.MPRIS.Identity
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		c.Log.Level = d.Log.Level
	}
	if c.Log.File != "" {
		c.Log.File = expandPath(c.Log.File)
	}
	if c.Session.File != "" {
		c.Session.File = expandPath(c.Session.File)
	}
}

func enabled(b *bool) bool {
	return b == nil || *b
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// SinkConfig returns the audio output settings.
func (c *Config) SinkConfig() sink.Config {
	return sink.Config{
		SampleRate:      beep.SampleRate(c.Output.SampleRate),
		Latency:         ms(c.Output.LatencyMs),
		OpenTimeout:     ms(c.Output.OpenTimeoutMs),
		ResampleQuality: c.Output.ResampleQuality,
		Prime:           ms(c.Buffer.PrimeMs),
	}
}

// BufferCapacity returns how much decoded audio the stream buffer holds.
func (c *Config) BufferCapacity() time.Duration {
	return ms(c.Buffer.CapacityMs)
}

// DecoderOptions returns the decoder settings.
func (c *Config) DecoderOptions() decoder.Options {
	mode, _ := decoder.ParseSeekMode(c.Playback.SeekMode)
	return decoder.Options{
		BlockFrames: c.Buffer.BlockFrames,
		SeekMode:    mode,
	}
}

// ControllerConfig returns the playback controller settings, including
// the analyzer settings when the spectrum is enabled.
func (c *Config) ControllerConfig() playback.Config {
	cfg := playback.Config{
		Tick:             ms(c.Playback.TickMs),
		AutoAdvance:      enabled(c.Playback.AutoAdvance),
		RestartThreshold: ms(c.Playback.RestartThresholdMs),
		InitialVolume:    c.Playback.InitialVolume,
	}
	if enabled(c.Spectrum.Enabled) {
		cfg.Spectrum = &spectrum.Config{
			Window:   c.Spectrum.Window,
			Interval: ms(c.Spectrum.IntervalMs),
			Bins:     c.Spectrum.Bins,
			MinFreq:  c.Spectrum.MinFreq,
			MaxFreq:  c.Spectrum.MaxFreq,
			Decay:    c.Spectrum.Decay,
		}
	}
	return cfg
}

// MPRISEnabled reports whether the D-Bus bridge should run.
func (c *Config) MPRISEnabled() bool {
	return enabled(c.MPRIS.Enabled)
}

// SessionEnabled reports whether the session is saved and restored.
func (c *Config) SessionEnabled() bool {
	return enabled(c.Session.Restore)
}

// LogLevel returns the configured log level.
func (c *Config) LogLevel() slog.Level {
	level, _ := parseLevel(c.Log.Level)
	return level
}

// LogFile returns the log file path, creating its directory if needed.
func (c *Config) LogFile() (string, error) {
	if c.Log.File != "" {
		if err := os.MkdirAll(filepath.Dir(c.Log.File), 0o755); err != nil {
			return "", err
		}
		return c.Log.File, nil
	}
	return xdg.StateFile(filepath.Join(appName, appName+".log"))
}

var errUnknownLevel = errors.New("unknown log level")

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", errUnknownLevel, s)
	}
	return level, nil
}
