// Package daqtest provides a fake MIDAS DAQ server for tests.
package daqtest

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Service paths served by Server, matching the config defaults.
const (
	ControlPath  = "/DataAcquisitionControlServer"
	SpectrumPath = "/SpectrumService"
)

// Server answers GetState and SpecRead1D like the DAQ web services.
// Fields may be changed between requests; all access is locked.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	state    string
	payload  string
	status   int
	requests []Request
}

// Request records one call received by the fake.
type Request struct {
	Path        string
	ContentType string
	Body        string
}

// NewServer starts a fake DAQ reporting state and serving rates as the
// Rate histogram. Call Close when done.
func NewServer(state string, rates []uint32) *Server {
	s := &Server{state: state, payload: Encode(rates), status: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// BaseURL returns the server root with a trailing slash, as config expects.
func (s *Server) BaseURL() string { return s.URL + "/" }

// SetState changes the GetState reply text.
func (s *Server) SetState(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// SetRates changes the histogram served by SpecRead1D.
func (s *Server) SetRates(rates []uint32) {
	s.SetPayload(Encode(rates))
}

// SetPayload sets the raw text of the result element.
func (s *Server) SetPayload(payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payload = payload
}

// SetStatus makes every reply use the given HTTP status.
func (s *Server) SetStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = code
}

// Requests returns a copy of the calls received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Path:        r.URL.Path,
		ContentType: r.Header.Get("Content-Type"),
		Body:        string(body),
	})
	state, payload, status := s.state, s.payload, s.status
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	if status != http.StatusOK {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply("Fault", "<faultstring>fake fault</faultstring>"))
		return
	}

	switch {
	case r.Method != http.MethodPost:
		w.WriteHeader(http.StatusMethodNotAllowed)
	case strings.HasSuffix(r.URL.Path, ControlPath) && strings.Contains(string(body), "GetState"):
		_, _ = io.WriteString(w, reply("GetStateResponse", "<State>"+state+"</State>"))
	case strings.HasSuffix(r.URL.Path, SpectrumPath) && strings.Contains(string(body), "SpecRead1D"):
		_, _ = io.WriteString(w, reply("SpecRead1DResponse", "<result>"+payload+"</result>"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// Encode packs rates as little-endian uint32 values and base64-encodes them.
func Encode(rates []uint32) string {
	buf := make([]byte, 4*len(rates))
	for i, v := range rates {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func reply(method, inner string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>`+
		`<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://schemas.xmlsoap.org/soap/envelope/" xmlns:ns="urn:fake">`+
		`<SOAP-ENV:Body><ns:%[1]s>%[2]s</ns:%[1]s></SOAP-ENV:Body></SOAP-ENV:Envelope>`, method, inner)
}
