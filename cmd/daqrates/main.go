package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/issdaq/daqrates/internal/config"
	"github.com/issdaq/daqrates/internal/monitor"
	"github.com/issdaq/daqrates/internal/report"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults built in when empty)")
	interval := flag.Duration("interval", 0, "repeat every interval until interrupted; 0 polls once")
	format := flag.String("format", "", "output format: text | prometheus")
	noColor := flag.Bool("no-color", false, "disable colored output")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	flags := cliFlags{
		interval: *interval,
		format:   *format,
		noColor:  *noColor,
		verbose:  *verbose,
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "interval":
			flags.intervalSet = true
		case "format":
			flags.formatSet = true
		}
	})

	// stdout carries the report, so logs go to stderr.
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if err := flags.apply(cfg); err != nil {
		slog.Error("invalid command-line flags", "err", err)
		os.Exit(1)
	}
	level.Set(flags.level(cfg))

	slog.Info("config loaded",
		"config", *configPath,
		"control_url", cfg.DAQ.ControlURL(),
		"spectrum_url", cfg.DAQ.SpectrumURL(),
		"threshold", cfg.Threshold,
		"interval", cfg.Interval,
	)

	out, err := report.New(cfg.Output, os.Stdout)
	if err != nil {
		slog.Error("failed to build report writer", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := monitor.New(cfg)

	if cfg.Interval == 0 {
		if err := once(ctx, m, out); err != nil {
			slog.Error("poll failed", "err", err)
			cancel()
			os.Exit(1)
		}
		return
	}

	// Hot reload applies between cycles; the watcher only hands over configs.
	reloads := make(chan *config.Config, 1)
	if *configPath != "" {
		go func() {
			running := cfg.Interval
			err := config.Watch(ctx, *configPath, func(c *config.Config) {
				// A file without an interval keeps the loop at its current
				// period, and the output must be valid for repeat mode.
				if c.Interval == 0 {
					c.Interval = running
				}
				if err := flags.apply(c); err != nil {
					slog.Error("reloaded config rejected, keeping previous config", "err", err)
					return
				}
				running = c.Interval
				level.Set(flags.level(c))
				select {
				case <-reloads:
				default:
				}
				reloads <- c
			})
			if err != nil {
				slog.Error("config watcher stopped", "err", err)
			}
		}()
	}

	active := cfg.Output
	emit := func(s *monitor.Snapshot) error {
		if next := m.Config().Output; next != active {
			w, err := report.New(next, os.Stdout)
			if err != nil {
				slog.Warn("keeping previous output format", "err", err)
			} else {
				out, active = w, next
			}
		}
		return out.Write(s)
	}

	slog.Info("daqrates polling", "interval", cfg.Interval)
	if err := m.Run(ctx, reloads, emit); err != nil {
		slog.Error("daqrates stopped", "err", err)
		cancel()
		os.Exit(1)
	}
	slog.Info("daqrates shutting down")
}

// cliFlags holds the command-line values that take precedence over the
// config file, both at startup and on every reload.
type cliFlags struct {
	interval    time.Duration
	intervalSet bool
	format      string
	formatSet   bool
	noColor     bool
	verbose     bool
}

// apply overrides c with the flags that were given and validates the result.
func (f cliFlags) apply(c *config.Config) error {
	if f.intervalSet {
		c.Interval = f.interval
	}
	if f.formatSet {
		c.Output.Format = f.format
	}
	if f.noColor {
		c.Output.Color = config.ColorNever
	}
	return c.Validate()
}

// level returns debug under -v and the configured level otherwise.
func (f cliFlags) level(c *config.Config) slog.Level {
	if f.verbose {
		return slog.LevelDebug
	}
	return c.Level()
}

// once runs a single poll cycle. A stopped DAQ prints its banner and is not
// an error.
func once(ctx context.Context, m *monitor.Monitor, out report.Writer) error {
	snap, err := m.Poll(ctx)
	if err != nil {
		return err
	}
	if err := out.Write(snap); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
