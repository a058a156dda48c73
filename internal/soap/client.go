package soap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ContentType is sent with every request.
const ContentType = "text/xml"

// maxReplySize caps the bytes read from one reply. A 512-bin uint32
// histogram is about 2.7 KiB once base64 encoded.
const maxReplySize = 4 << 20

var (
	// ErrStatus is wrapped by StatusError for non-200 replies.
	ErrStatus = errors.New("unexpected http status")

	// ErrReplyTooLarge is returned when a reply exceeds maxReplySize.
	ErrReplyTooLarge = errors.New("reply too large")
)

// StatusError reports a reply whose status was not 200 OK.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %d", ErrStatus, e.Code)
	}
	return fmt.Sprintf("%s %d: %s", ErrStatus, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// Client calls SOAP methods on one service endpoint.
type Client struct {
	url    string
	client *http.Client
}

// NewClient returns a Client for the service at url. A zero timeout leaves
// requests bounded only by the caller's context.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// WithHTTPClient replaces the underlying http.Client. Tests use it to reach
// httptest servers.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.client = hc
	return c
}

// URL returns the service endpoint. It doubles as the urn namespace.
func (c *Client) URL() string { return c.url }

// Call POSTs an envelope for method and returns the reply body.
// The service URL is used as the urn namespace, as the DAQ server expects.
func (c *Client) Call(ctx context.Context, method, params string) ([]byte, error) {
	body := Envelope(c.url, method, params)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("soap: build request: %w", err)
	}
	req.Header.Set("Content-Type", ContentType)

	slog.Debug("soap: call", "url", c.url, "method", method)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("soap: %s: http post: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize+1))
	if err != nil {
		return nil, fmt.Errorf("soap: %s: read reply: %w", method, err)
	}
	if len(data) > maxReplySize {
		return nil, fmt.Errorf("soap: %s: %w: more than %d bytes", method, ErrReplyTooLarge, maxReplySize)
	}

	if resp.StatusCode != http.StatusOK {
		// SOAP faults come back as 500 with a Fault body; keep a short excerpt.
		excerpt := string(bytes.TrimSpace(data))
		if len(excerpt) > 256 {
			excerpt = excerpt[:256]
		}
		return nil, fmt.Errorf("soap: %s: %w", method, &StatusError{Code: resp.StatusCode, Body: excerpt})
	}
	return data, nil
}
