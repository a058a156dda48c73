package daq

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/issdaq/daqrates/internal/config"
	"github.com/issdaq/daqrates/internal/soap"
)

// Remote method names.
const (
	MethodGetState   = "GetState"
	MethodSpecRead1D = "SpecRead1D"
)

// goingMarker appears in the State text while a run is in progress.
const goingMarker = "going"

// ErrNoResult is returned when a SpecRead1D reply carries no result element.
var ErrNoResult = errors.New("no result element in reply")

// State is the decoded GetState reply.
type State struct {
	// Texts holds the content of every State element, in document order.
	Texts []string

	// Going is true when any State text contains "going".
	Going bool
}

// IsGoing reports whether a State text marks a running acquisition.
func IsGoing(text string) bool {
	return strings.Contains(text, goingMarker)
}

// Client wraps the control and spectrum SOAP services.
type Client struct {
	control  *soap.Client
	spectrum *soap.Client
}

// New returns a Client for the services named in cfg.
func New(cfg config.DAQConfig) *Client {
	return &Client{
		control:  soap.NewClient(cfg.ControlURL(), cfg.Timeout),
		spectrum: soap.NewClient(cfg.SpectrumURL(), cfg.Timeout),
	}
}

// WithHTTPClient routes both services through hc.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.control.WithHTTPClient(hc)
	c.spectrum.WithHTTPClient(hc)
	return c
}

// State asks the control service whether the DAQ is running.
// A reply without any State element is reported as not going.
func (c *Client) State(ctx context.Context) (State, error) {
	reply, err := c.control.Call(ctx, MethodGetState, "")
	if err != nil {
		return State{}, fmt.Errorf("daq: get state: %w", err)
	}
	texts, err := soap.Texts(reply, "State")
	if err != nil {
		return State{}, fmt.Errorf("daq: get state: %w", err)
	}

	st := State{Texts: texts}
	for _, t := range texts {
		if IsGoing(t) {
			st.Going = true
			break
		}
	}
	slog.Debug("daq: state", "texts", texts, "going", st.Going)
	return st, nil
}

// SpectrumParams returns the SpecRead1D parameter fragment. name is not
// escaped.
func SpectrumParams(name string, base, rng int) string {
	return fmt.Sprintf(`<ns:Name xsi:type="xsd:string">%s</ns:Name>`+
		`<ns:Base xsi:type="xsd:int">%d</ns:Base>`+
		`<ns:Range xsi:type="xsd:int">%d</ns:Range>`, name, base, rng)
}

// ReadSpectrum fetches the named 1D spectrum and returns its raw bytes.
// If the reply holds several result elements the last one is used.
func (c *Client) ReadSpectrum(ctx context.Context, spec config.SpectrumConfig) ([]byte, error) {
	reply, err := c.spectrum.Call(ctx, MethodSpecRead1D, SpectrumParams(spec.Name, spec.Base, spec.Range))
	if err != nil {
		return nil, fmt.Errorf("daq: read spectrum %q: %w", spec.Name, err)
	}
	results, err := soap.Texts(reply, "result")
	if err != nil {
		return nil, fmt.Errorf("daq: read spectrum %q: %w", spec.Name, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("daq: read spectrum %q: %w", spec.Name, ErrNoResult)
	}

	buf, err := DecodeBase64(results[len(results)-1])
	if err != nil {
		return nil, fmt.Errorf("daq: read spectrum %q: %w", spec.Name, err)
	}
	slog.Debug("daq: spectrum read", "name", spec.Name, "bytes", len(buf))
	return buf, nil
}

// DecodeBase64 decodes a standard base64 payload, ignoring any whitespace
// the server inserted for line wrapping.
func DecodeBase64(s string) ([]byte, error) {
	clean := strings.Join(strings.Fields(s), "")
	buf, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return buf, nil
}
