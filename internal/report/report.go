package report

import (
	"fmt"
	"io"

	"github.com/issdaq/daqrates/internal/config"
	"github.com/issdaq/daqrates/internal/monitor"
)

// Writer is implemented by every report format.
type Writer interface {
	Write(s *monitor.Snapshot) error
}

// New returns the Writer for the configured output format. w is used unless
// out names a file.
func New(out config.OutputConfig, w io.Writer) (Writer, error) {
	switch out.Format {
	case config.FormatText, "":
		return NewText(w, UseColor(out.Color)), nil
	case config.FormatPrometheus:
		if out.File != "" {
			return NewPrometheusFile(out.File), nil
		}
		return NewPrometheus(w), nil
	default:
		return nil, fmt.Errorf("report: unsupported format %q", out.Format)
	}
}
