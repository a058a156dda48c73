package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/issdaq/daqrates/internal/monitor"
)

// Metric names written by Prometheus.
const (
	MetricRunning       = "daq_running"
	MetricChannelRate   = "daq_channel_rate"
	MetricThreshold     = "daq_rate_threshold"
	MetricOverThreshold = "daq_channels_over_threshold"
	MetricPollTimestamp = "daq_poll_timestamp_seconds"
)

// Prometheus renders snapshots in the Prometheus text exposition format.
// With a file path every snapshot replaces the file, which is what the
// node_exporter textfile collector reads.
type Prometheus struct {
	w    io.Writer
	path string
}

// NewPrometheus returns a Prometheus writer on w. Each Write appends a full
// exposition, so w only holds a valid one after a single Write.
func NewPrometheus(w io.Writer) *Prometheus {
	return &Prometheus{w: w}
}

// NewPrometheusFile returns a Prometheus writer that atomically replaces
// path on each Write.
func NewPrometheusFile(path string) *Prometheus {
	return &Prometheus{path: path}
}

// Write emits the exposition for s. Channel metrics are omitted when the run
// is not going, since the histogram then holds stale values.
func (p *Prometheus) Write(s *monitor.Snapshot) error {
	if p.path == "" {
		return writeFamilies(p.w, Families(s))
	}
	return p.replaceFile(Families(s))
}

// replaceFile writes to a temp file in the target directory and renames it
// over path, so readers never see a partial exposition.
func (p *Prometheus) replaceFile(mfs []*dto.MetricFamily) error {
	tmp, err := os.CreateTemp(filepath.Dir(p.path), "."+filepath.Base(p.path)+".*")
	if err != nil {
		return fmt.Errorf("report: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	if err := writeFamilies(tmp, mfs); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("report: close temp file: %w", err)
	}
	// CreateTemp uses 0600; the collector usually runs as another user.
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("report: chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.path); err != nil {
		return fmt.Errorf("report: replace %s: %w", p.path, err)
	}
	return nil
}

func writeFamilies(w io.Writer, mfs []*dto.MetricFamily) error {
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("report: write %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Families converts a snapshot to metric families.
func Families(s *monitor.Snapshot) []*dto.MetricFamily {
	running := 0.0
	if s.Going {
		running = 1
	}
	out := []*dto.MetricFamily{
		gaugeFamily(MetricRunning, "Whether the DAQ reports a run in progress.",
			gauge(running)),
		gaugeFamily(MetricPollTimestamp, "Unix time of the last DAQ poll.",
			gauge(float64(s.Time.Unix())+float64(s.Time.Nanosecond())/1e9)),
	}
	if !s.Going {
		return out
	}

	rateMetrics := make([]*dto.Metric, 0, len(s.Readings))
	var over float64
	for _, r := range s.Readings {
		m := gauge(float64(r.Value))
		m.Label = []*dto.LabelPair{
			labelPair("channel", strconv.Itoa(r.Channel)),
			labelPair("group", r.Group),
			labelPair("label", strings.Join(strings.Fields(r.Label), " ")),
		}
		rateMetrics = append(rateMetrics, m)
		if r.Over {
			over++
		}
	}

	return append(out,
		gaugeFamily(MetricChannelRate, "Per-channel rate from the DAQ rate histogram.", rateMetrics...),
		gaugeFamily(MetricThreshold, "Rate above which a channel is flagged.",
			gauge(float64(s.Threshold))),
		gaugeFamily(MetricOverThreshold, "Number of channels strictly above the threshold.",
			gauge(over)),
	)
}

func gaugeFamily(name, help string, metrics ...*dto.Metric) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: metrics,
	}
}

func gauge(v float64) *dto.Metric {
	return &dto.Metric{Gauge: &dto.Gauge{Value: proto.Float64(v)}}
}

func labelPair(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: proto.String(name), Value: proto.String(value)}
}
