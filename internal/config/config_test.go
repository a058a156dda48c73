package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") unexpected error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
	if got := cfg.DAQ.ControlURL(); got != "http://issdaqpc:8015/DataAcquisitionControlServer" {
		t.Errorf("ControlURL: got %q", got)
	}
	if got := cfg.DAQ.SpectrumURL(); got != "http://issdaqpc:8015/SpectrumService" {
		t.Errorf("SpectrumURL: got %q", got)
	}
	if cfg.Threshold != 10000 {
		t.Errorf("threshold: got %d, want 10000", cfg.Threshold)
	}
	if cfg.Spectrum.Name != "Rate" || cfg.Spectrum.Base != 0 || cfg.Spectrum.Range != 512 {
		t.Errorf("spectrum: got %+v", cfg.Spectrum)
	}
	if cfg.Interval != 0 {
		t.Errorf("interval: got %v, want 0", cfg.Interval)
	}
}

func TestDefaultGroups_Table(t *testing.T) {
	groups := DefaultGroups()
	want := []struct {
		name    string
		labels  []string
		indices []int
	}{
		{"RecoilE", []string{"RecoilE ", "RecoilE ", "RecoilE ", "RecoilE "}, []int{24, 26, 33, 35}},
		{"RecoildE", []string{"RecoildE", "RecoildE", "RecoildE", "RecoildE"}, []int{25, 27, 32, 34}},
		{"STUBL", []string{"STUBL X1", "STUBL X2", "STUBL  E", "STUBL  G"}, []int{5, 4, 7, 6}},
		{"STUBT", []string{"STUBT X1", "STUBT X2", "STUBT  E", "STUBT  G"}, []int{9, 8, 11, 10}},
		{"STUBB", []string{"STUBB X1", "STUBB X2", "STUBB  E", "STUBB  G"}, []int{14, 15, 12, 13}},
		{"STUBR", []string{"STUBR X1", "STUBR X2", "STUBR  E", "STUBR  G"}, []int{18, 19, 16, 17}},
	}
	if len(groups) != len(want) {
		t.Fatalf("groups: got %d, want %d", len(groups), len(want))
	}
	for i, w := range want {
		g := groups[i]
		if g.Name != w.name {
			t.Errorf("groups[%d].Name: got %q, want %q", i, g.Name, w.name)
		}
		if len(g.Channels) != len(w.indices) {
			t.Fatalf("groups[%d] channels: got %d, want %d", i, len(g.Channels), len(w.indices))
		}
		for j, ch := range g.Channels {
			if ch.Label != w.labels[j] || ch.Index != w.indices[j] {
				t.Errorf("groups[%d].Channels[%d]: got {%q %d}, want {%q %d}",
					i, j, ch.Label, ch.Index, w.labels[j], w.indices[j])
			}
		}
	}
}

func TestLoad_Valid(t *testing.T) {
	yaml := `
daq:
  base_url: "http://daq.local:9000/"
  timeout: 3s
spectrum:
  name: Rate2
  range: 64
threshold: 500
interval: 5s
output:
  format: prometheus
  color: never
  file: /var/lib/node_exporter/daqrates.prom
log_level: debug
groups:
  - name: Si
    channels:
      - {label: "Si 1", index: 0}
      - {label: "Si 2", index: 63}
`
	cfg := loadFromString(t, yaml)

	if cfg.DAQ.BaseURL != "http://daq.local:9000/" {
		t.Errorf("base_url: got %q", cfg.DAQ.BaseURL)
	}
	if cfg.DAQ.ControlService != DefaultControlService {
		t.Errorf("control_service default: got %q", cfg.DAQ.ControlService)
	}
	if cfg.DAQ.Timeout != 3*time.Second {
		t.Errorf("timeout: got %v", cfg.DAQ.Timeout)
	}
	if cfg.Spectrum.Name != "Rate2" || cfg.Spectrum.Range != 64 {
		t.Errorf("spectrum: got %+v", cfg.Spectrum)
	}
	if cfg.Threshold != 500 {
		t.Errorf("threshold: got %d", cfg.Threshold)
	}
	if cfg.Interval != 5*time.Second {
		t.Errorf("interval: got %v", cfg.Interval)
	}
	if cfg.Output.Format != FormatPrometheus || cfg.Output.Color != ColorNever ||
		cfg.Output.File != "/var/lib/node_exporter/daqrates.prom" {
		t.Errorf("output: got %+v", cfg.Output)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("Level(): got %v", cfg.Level())
	}
	if len(cfg.Groups) != 1 {
		t.Fatalf("groups should replace defaults: got %d groups", len(cfg.Groups))
	}
	if got := cfg.Groups[0].Channels[1]; got.Label != "Si 2" || got.Index != 63 {
		t.Errorf("channel: got %+v", got)
	}
}

func TestLoad_KeepsDefaultGroupsWhenOmitted(t *testing.T) {
	cfg := loadFromString(t, "threshold: 20000\n")
	if len(cfg.Groups) != len(DefaultGroups()) {
		t.Errorf("groups: got %d, want default %d", len(cfg.Groups), len(DefaultGroups()))
	}
	if cfg.Threshold != 20000 {
		t.Errorf("threshold: got %d", cfg.Threshold)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad scheme", "daq:\n  base_url: \"ftp://daq/\"\n"},
		{"empty control service", "daq:\n  control_service: \"\"\n"},
		{"zero timeout", "daq:\n  timeout: 0s\n"},
		{"zero range", "spectrum:\n  range: 0\n"},
		{"range beyond reply limit", "spectrum:\n  range: 524289\n"},
		{"negative interval", "interval: -1s\n"},
		{"unknown format", "output:\n  format: csv\n"},
		{"unknown color", "output:\n  color: rainbow\n"},
		{"prometheus to stdout in repeat mode", "interval: 5s\noutput:\n  format: prometheus\n"},
		{"file with text format", "output:\n  file: /tmp/daq.prom\n"},
		{"unknown log level", "log_level: chatty\n"},
		{"empty groups", "groups: []\n"},
		{"group without name", "groups:\n  - channels: [{label: a, index: 1}]\n"},
		{"group without channels", "groups:\n  - name: x\n"},
		{"index beyond range", "groups:\n  - name: x\n    channels: [{label: a, index: 512}]\n"},
		{"negative index", "groups:\n  - name: x\n    channels: [{label: a, index: -1}]\n"},
		{"malformed yaml", "threshold: [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := loadStringErr(t, tc.yaml); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLoad_PrometheusOutput(t *testing.T) {
	// A single poll may write the exposition to stdout.
	cfg := loadFromString(t, "output:\n  format: prometheus\n")
	if cfg.Output.File != "" || cfg.Interval != 0 {
		t.Errorf("output: got %+v interval %v", cfg.Output, cfg.Interval)
	}

	cfg = loadFromString(t, "spectrum:\n  range: 524288\ninterval: 1s\noutput:\n  format: prometheus\n  file: daq.prom\n")
	if cfg.Spectrum.Range != MaxSpectrumRange || cfg.Output.File != "daq.prom" {
		t.Errorf("got range %d file %q", cfg.Spectrum.Range, cfg.Output.File)
	}
}

func TestConfig_ValidateAfterChange(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate(defaults) error = %v", err)
	}
	cfg.Interval = time.Second
	cfg.Output.Format = FormatPrometheus
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject prometheus on stdout in repeat mode")
	}
	cfg.Output.File = "daq.prom"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with output.file error = %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestConfig_Level(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelWarn,
	}
	for in, want := range tests {
		c := Config{LogLevel: in}
		if got := c.Level(); got != want {
			t.Errorf("Level(%q): got %v, want %v", in, got, want)
		}
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daqrates.yaml")
	if err := os.WriteFile(path, []byte("threshold: 100\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) {
			select {
			case got <- c:
			default:
			}
		})
	}()

	// The watcher starts asynchronously; keep rewriting until a reload lands.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case c := <-got:
			// A reload can observe the file between truncate and write.
			if c.Threshold != 200 {
				continue
			}
			cancel()
			if err := <-done; err != nil {
				t.Errorf("Watch returned error: %v", err)
			}
			return
		case <-tick.C:
			if err := os.WriteFile(path, []byte("threshold: 200\n"), 0o600); err != nil {
				t.Fatalf("rewrite config: %v", err)
			}
		case <-deadline:
			t.Fatal("timed out waiting for reload")
		}
	}
}

// loadFromString writes yaml to a temp file and calls Load, failing on error.
func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, content)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	return cfg
}

// loadStringErr writes yaml to a temp file and calls Load, returning any error.
func loadStringErr(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "daqrates.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return Load(path)
}

func TestLoad_ExampleMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "daqrates.example.yaml"))
	if err != nil {
		t.Fatalf("Load(example) error = %v", err)
	}
	def := Defaults()
	if cfg.DAQ != def.DAQ || cfg.Spectrum != def.Spectrum || cfg.Threshold != def.Threshold ||
		cfg.Output != def.Output || cfg.Interval != def.Interval || cfg.LogLevel != def.LogLevel {
		t.Errorf("example scalars differ from defaults:\n got %+v\nwant %+v", cfg, def)
	}
	if len(cfg.Groups) != len(def.Groups) {
		t.Fatalf("example groups: got %d, want %d", len(cfg.Groups), len(def.Groups))
	}
	for i := range def.Groups {
		g, w := cfg.Groups[i], def.Groups[i]
		if g.Name != w.Name || len(g.Channels) != len(w.Channels) {
			t.Fatalf("example groups[%d]: got %+v, want %+v", i, g, w)
		}
		for j := range w.Channels {
			if g.Channels[j] != w.Channels[j] {
				t.Errorf("example groups[%d].Channels[%d]: got %+v, want %+v", i, j, g.Channels[j], w.Channels[j])
			}
		}
	}
}
