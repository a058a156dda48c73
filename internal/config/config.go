package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultBaseURL         = "http://issdaqpc:8015/"
	DefaultControlService  = "DataAcquisitionControlServer"
	DefaultSpectrumService = "SpectrumService"
	DefaultTimeout         = 10 * time.Second
	DefaultSpectrumName    = "Rate"
	DefaultSpectrumRange   = 512
	DefaultThreshold       = 10000
	DefaultLogLevel        = "warn"

	// MaxSpectrumRange keeps a base64 SpecRead1D reply within the reply
	// size limit of the soap client.
	MaxSpectrumRange = 1 << 19
)

// Output formats.
const (
	FormatText       = "text"
	FormatPrometheus = "prometheus"
)

// Color modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Config is the full daqrates configuration.
type Config struct {
	DAQ      DAQConfig      `yaml:"daq"`
	Spectrum SpectrumConfig `yaml:"spectrum"`

	// Threshold is the rate above which a channel is flagged.
	// The comparison is strict: a value equal to Threshold is not over.
	Threshold uint32 `yaml:"threshold"`

	// Interval is the repeat period. Zero polls once and exits.
	Interval time.Duration `yaml:"interval"`

	Output OutputConfig `yaml:"output"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	// Groups is the channel mapping table, printed in order.
	Groups []Group `yaml:"groups"`
}

// DAQConfig locates the DAQ control server.
type DAQConfig struct {
	// BaseURL is the server root; service names are appended verbatim.
	BaseURL string `yaml:"base_url"`

	// ControlService answers GetState.
	ControlService string `yaml:"control_service"`

	// SpectrumService answers SpecRead1D.
	SpectrumService string `yaml:"spectrum_service"`

	// Timeout bounds each HTTP request.
	Timeout time.Duration `yaml:"timeout"`
}

// ControlURL returns the full GetState endpoint.
func (d DAQConfig) ControlURL() string { return d.BaseURL + d.ControlService }

// SpectrumURL returns the full SpecRead1D endpoint.
func (d DAQConfig) SpectrumURL() string { return d.BaseURL + d.SpectrumService }

// SpectrumConfig selects the histogram read by SpecRead1D.
type SpectrumConfig struct {
	Name  string `yaml:"name"`
	Base  int    `yaml:"base"`
	Range int    `yaml:"range"`
}

// OutputConfig controls how readings are rendered.
type OutputConfig struct {
	Format string `yaml:"format"`
	Color  string `yaml:"color"`

	// File, for the prometheus format, is replaced atomically on every poll
	// instead of writing to stdout. Repeat mode requires it, since appended
	// expositions do not parse.
	File string `yaml:"file"`
}

// Group is one semantic category of channels (e.g. RecoilE, STUBL).
type Group struct {
	Name     string    `yaml:"name"`
	Channels []Channel `yaml:"channels"`
}

// Channel maps a printed label to a histogram index.
type Channel struct {
	// Label is printed as-is, including any padding spaces.
	Label string `yaml:"label"`
	Index int    `yaml:"index"`
}

// Level maps LogLevel to a slog.Level. Unknown values fall back to warn.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Load reads and parses the YAML config file at path.
// An empty path returns the validated defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	// yaml.v3 replaces slices, so a file that sets groups overrides the
	// default table entirely.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports the first invalid field. Callers that change a loaded
// Config, such as command-line overrides, validate it again.
func (c *Config) Validate() error {
	if err := validate(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Defaults returns a Config pre-populated with the ISS DAQ settings.
func Defaults() *Config {
	return &Config{
		DAQ: DAQConfig{
			BaseURL:         DefaultBaseURL,
			ControlService:  DefaultControlService,
			SpectrumService: DefaultSpectrumService,
			Timeout:         DefaultTimeout,
		},
		Spectrum: SpectrumConfig{
			Name:  DefaultSpectrumName,
			Range: DefaultSpectrumRange,
		},
		Threshold: DefaultThreshold,
		Output: OutputConfig{
			Format: FormatText,
			Color:  ColorAuto,
		},
		LogLevel: DefaultLogLevel,
		Groups:   DefaultGroups(),
	}
}

// Stub detector channel names, in histogram-table order.
var stubNames = []string{"X1", "X2", " E", " G"}

// DefaultGroups returns the MIDAS histogram / CAEN ADC channel mapping used
// at ISS: Recoil E and dE signals plus the four Stub detectors.
func DefaultGroups() []Group {
	recoil := func(name, label string, idx ...int) Group {
		g := Group{Name: name}
		for _, i := range idx {
			g.Channels = append(g.Channels, Channel{Label: label, Index: i})
		}
		return g
	}
	stub := func(name string, idx ...int) Group {
		g := Group{Name: name}
		for n, i := range idx {
			g.Channels = append(g.Channels, Channel{Label: name + " " + stubNames[n], Index: i})
		}
		return g
	}
	return []Group{
		recoil("RecoilE", "RecoilE ", 24, 26, 33, 35),
		recoil("RecoildE", "RecoildE", 25, 27, 32, 34),
		stub("STUBL", 5, 4, 7, 6),
		stub("STUBT", 9, 8, 11, 10),
		stub("STUBB", 14, 15, 12, 13),
		stub("STUBR", 18, 19, 16, 17),
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	u, err := url.Parse(cfg.DAQ.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("daq.base_url %q must be an http(s) URL", cfg.DAQ.BaseURL)
	}
	if cfg.DAQ.ControlService == "" {
		return fmt.Errorf("daq.control_service is required")
	}
	if cfg.DAQ.SpectrumService == "" {
		return fmt.Errorf("daq.spectrum_service is required")
	}
	if cfg.DAQ.Timeout <= 0 {
		return fmt.Errorf("daq.timeout must be positive")
	}
	if cfg.Spectrum.Name == "" {
		return fmt.Errorf("spectrum.name is required")
	}
	if cfg.Spectrum.Range <= 0 || cfg.Spectrum.Range > MaxSpectrumRange {
		return fmt.Errorf("spectrum.range %d must be in [1,%d]", cfg.Spectrum.Range, MaxSpectrumRange)
	}
	if cfg.Interval < 0 {
		return fmt.Errorf("interval must not be negative")
	}
	switch cfg.Output.Format {
	case FormatText:
		if cfg.Output.File != "" {
			return fmt.Errorf("output.file is only supported by the %s format", FormatPrometheus)
		}
	case FormatPrometheus:
		if cfg.Interval > 0 && cfg.Output.File == "" {
			return fmt.Errorf("output.file is required for the %s format when interval is set", FormatPrometheus)
		}
	default:
		return fmt.Errorf("output.format: unknown format %q", cfg.Output.Format)
	}
	switch cfg.Output.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("output.color: unknown mode %q", cfg.Output.Color)
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level: unknown level %q", cfg.LogLevel)
	}
	if len(cfg.Groups) == 0 {
		return fmt.Errorf("groups: at least one group is required")
	}
	for i, g := range cfg.Groups {
		if g.Name == "" {
			return fmt.Errorf("groups[%d]: name is required", i)
		}
		if len(g.Channels) == 0 {
			return fmt.Errorf("groups[%d] %q: at least one channel is required", i, g.Name)
		}
		for j, ch := range g.Channels {
			if ch.Index < 0 || ch.Index >= cfg.Spectrum.Range {
				return fmt.Errorf("groups[%d] %q channels[%d]: index %d outside spectrum range [0,%d)",
					i, g.Name, j, ch.Index, cfg.Spectrum.Range)
			}
		}
	}
	return nil
}
