package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/issdaq/daqrates/internal/config"
	"github.com/issdaq/daqrates/internal/daq"
	"github.com/issdaq/daqrates/internal/rates"
)

// Snapshot is the outcome of one poll cycle.
type Snapshot struct {
	Time time.Time

	// Going is the run state. Readings is empty when it is false.
	Going      bool
	StateTexts []string

	Threshold uint32
	Readings  []rates.Reading
}

// Monitor polls one DAQ with one configuration at a time.
type Monitor struct {
	cfg    *config.Config
	client *daq.Client
	hc     *http.Client
	now    func() time.Time // injectable for deterministic tests
}

// New returns a Monitor for cfg.
func New(cfg *config.Config) *Monitor {
	return &Monitor{
		cfg:    cfg,
		client: daq.New(cfg.DAQ),
		now:    time.Now,
	}
}

// WithHTTPClient routes all DAQ calls through hc, including those made
// after a config reload.
func (m *Monitor) WithHTTPClient(hc *http.Client) *Monitor {
	m.hc = hc
	m.client.WithHTTPClient(hc)
	return m
}

// Config returns the active configuration.
func (m *Monitor) Config() *config.Config { return m.cfg }

// Apply switches to cfg for subsequent cycles.
func (m *Monitor) Apply(cfg *config.Config) {
	if cfg.DAQ != m.cfg.DAQ {
		m.client = daq.New(cfg.DAQ)
		if m.hc != nil {
			m.client.WithHTTPClient(m.hc)
		}
		slog.Info("monitor: daq endpoints changed",
			"control", cfg.DAQ.ControlURL(), "spectrum", cfg.DAQ.SpectrumURL())
	}
	m.cfg = cfg
}

// Poll runs one cycle: run state first, then the histogram if the run is
// going.
func (m *Monitor) Poll(ctx context.Context) (*Snapshot, error) {
	cfg := m.cfg

	st, err := m.client.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("monitor: %w", err)
	}
	snap := &Snapshot{
		Time:       m.now(),
		Going:      st.Going,
		StateTexts: st.Texts,
		Threshold:  cfg.Threshold,
	}
	if !st.Going {
		slog.Info("monitor: daq not running", "state", st.Texts)
		return snap, nil
	}

	buf, err := m.client.ReadSpectrum(ctx, cfg.Spectrum)
	if err != nil {
		return nil, fmt.Errorf("monitor: %w", err)
	}
	snap.Readings, err = rates.Decode(buf, cfg.Groups, cfg.Threshold)
	if err != nil {
		return nil, fmt.Errorf("monitor: %w", err)
	}

	if n := rates.CountOver(snap.Readings); n > 0 {
		slog.Info("monitor: channels over threshold", "count", n, "threshold", cfg.Threshold)
	}
	return snap, nil
}

// Run polls immediately and then every cfg.Interval until ctx is cancelled.
// Each successful snapshot is passed to emit; an emit error stops Run.
// Poll errors are logged and the loop continues with the next tick.
//
// Configs received on reloads take effect from the next cycle. A reloaded
// interval of zero keeps the current one, since Run is already repeating.
func (m *Monitor) Run(ctx context.Context, reloads <-chan *config.Config, emit func(*Snapshot) error) error {
	interval := m.cfg.Interval
	if interval <= 0 {
		return fmt.Errorf("monitor: run needs a positive interval, got %v", interval)
	}

	cycle := func() error {
		snap, err := m.Poll(ctx)
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("monitor: poll failed", "err", err)
			}
			return nil
		}
		return emit(snap)
	}

	if err := cycle(); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil

		case cfg, ok := <-reloads:
			if !ok {
				reloads = nil
				continue
			}
			if cfg.Interval > 0 && cfg.Interval != interval {
				interval = cfg.Interval
				ticker.Reset(interval)
				slog.Info("monitor: interval changed", "interval", interval)
			} else if cfg.Interval <= 0 {
				c := *cfg
				c.Interval = interval
				cfg = &c
			}
			m.Apply(cfg)

		case <-ticker.C:
			if err := cycle(); err != nil {
				return err
			}
		}
	}
}
