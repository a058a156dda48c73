package soap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// Texts parses the XML document in data and returns the character data of
// every element whose local name is tag, in document order. Namespace
// prefixes are ignored, so both <State> and <ns:State> match.
//
// Only the text before the element's first child is collected, matching the
// usual .text view of an XML element: neither text inside children nor text
// following them is included. A document with no root element is an error.
func Texts(data []byte, tag string) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel

	// open holds, per currently open element, the index into texts of a
	// matching element or -1. Slots are reserved at the start tag so nested
	// matches keep document order. closed marks slots whose element has
	// already opened a child.
	var (
		open   []int
		texts  []*strings.Builder
		closed []bool
		sawTop bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("soap: parse reply: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			sawTop = true
			if n := len(open); n > 0 && open[n-1] >= 0 {
				closed[open[n-1]] = true
			}
			if t.Name.Local == tag {
				open = append(open, len(texts))
				texts = append(texts, &strings.Builder{})
				closed = append(closed, false)
			} else {
				open = append(open, -1)
			}
		case xml.CharData:
			if n := len(open); n > 0 && open[n-1] >= 0 && !closed[open[n-1]] {
				texts[open[n-1]].Write(t)
			}
		case xml.EndElement:
			open = open[:len(open)-1]
		}
	}

	if !sawTop {
		return nil, fmt.Errorf("soap: parse reply: no root element")
	}
	out := make([]string, len(texts))
	for i, b := range texts {
		out[i] = b.String()
	}
	return out, nil
}
