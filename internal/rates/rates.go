// Package rates decodes per-channel counters from a DAQ rate histogram and
// classifies them against a threshold.
//
// The histogram is a flat array of little-endian uint32 values, one per
// channel; channel i lives at bytes [4i, 4i+4). Channel indices are checked
// against the buffer length.
package rates

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/issdaq/daqrates/internal/config"
)

// SampleSize is the width in bytes of one histogram bin.
const SampleSize = 4

// ErrChannelOutOfRange is returned when a channel's bin lies outside the
// histogram buffer.
var ErrChannelOutOfRange = errors.New("channel out of range")

// Reading is one decoded channel value.
type Reading struct {
	Group   string
	Label   string
	Channel int
	Value   uint32

	// Over is true when Value is strictly greater than the threshold.
	Over bool
}

// At returns the counter for channel ch in buf.
func At(buf []byte, ch int) (uint32, error) {
	if ch < 0 || ch >= len(buf)/SampleSize {
		return 0, fmt.Errorf("rates: channel %d with %d-byte histogram: %w", ch, len(buf), ErrChannelOutOfRange)
	}
	off := ch * SampleSize
	return binary.LittleEndian.Uint32(buf[off : off+SampleSize]), nil
}

// Over reports whether value exceeds threshold. Equality is not over.
func Over(value, threshold uint32) bool {
	return value > threshold
}

// Decode reads every channel in groups from buf, in table order.
// It stops at the first channel outside the buffer.
func Decode(buf []byte, groups []config.Group, threshold uint32) ([]Reading, error) {
	var out []Reading
	for _, g := range groups {
		for _, ch := range g.Channels {
			v, err := At(buf, ch.Index)
			if err != nil {
				return nil, fmt.Errorf("rates: %s %q: %w", g.Name, ch.Label, err)
			}
			out = append(out, Reading{
				Group:   g.Name,
				Label:   ch.Label,
				Channel: ch.Index,
				Value:   v,
				Over:    Over(v, threshold),
			})
		}
	}
	return out, nil
}

// CountOver returns how many readings exceed their threshold.
func CountOver(rs []Reading) int {
	var n int
	for _, r := range rs {
		if r.Over {
			n++
		}
	}
	return n
}
