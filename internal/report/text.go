package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/issdaq/daqrates/internal/config"
	"github.com/issdaq/daqrates/internal/daq"
	"github.com/issdaq/daqrates/internal/monitor"
)

// Title heads every text report.
const Title = "ISS DAQ Rates"

// TimeLayout formats the report timestamp.
const TimeLayout = "2006-01-02 15:04:05"

// Banner texts, printed on a colored background.
const (
	BannerGoing   = " DAQ is GOING! "
	BannerStopped = " DAQ is STOPPED !? "
)

// bannerIndent aligns the banner under the timestamp.
var bannerIndent = strings.Repeat(" ", 24)

// UseColor resolves a config color mode. Auto follows fatih/color's own
// detection: a terminal on stdout and NO_COLOR unset.
func UseColor(mode string) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	default:
		return !color.NoColor
	}
}

// Text renders snapshots as the operator console view.
type Text struct {
	w io.Writer

	title   *color.Color
	going   *color.Color
	stopped *color.Color
	over    *color.Color
	under   *color.Color
}

// NewText returns a Text writer on w. With colored false no escape
// sequences are written.
func NewText(w io.Writer, colored bool) *Text {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	return &Text{
		w:       w,
		title:   mk(color.BgBlue),
		going:   mk(color.BgGreen),
		stopped: mk(color.BgRed),
		over:    mk(color.FgRed),
		under:   mk(color.FgGreen),
	}
}

// Write prints a header for each State text, followed by the GOING banner
// when that text reports a run. A snapshot that is not going ends with the
// STOPPED banner; one that is going ends with one line per channel.
func (t *Text) Write(s *monitor.Snapshot) error {
	var b strings.Builder
	for _, st := range s.StateTexts {
		fmt.Fprintf(&b, "%s       %s\n", t.title.Sprint(Title), s.Time.Format(TimeLayout))
		if daq.IsGoing(st) {
			fmt.Fprintf(&b, "%s%s\n", bannerIndent, t.going.Sprint(BannerGoing))
		}
	}
	if !s.Going {
		fmt.Fprintf(&b, "%s%s\n", bannerIndent, t.stopped.Sprint(BannerStopped))
	} else {
		for _, r := range s.Readings {
			c := t.under
			if r.Over {
				c = t.over
			}
			fmt.Fprintf(&b, "%s (ch %3d): %s\n", r.Label, r.Channel, c.Sprint(r.Value))
		}
	}
	_, err := io.WriteString(t.w, b.String())
	return err
}
