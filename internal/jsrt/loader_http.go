package jsrt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"
)

// DefaultUserAgent is sent by HTTPLoader unless overridden.
const DefaultUserAgent = "jsop/1.0"

// HTTPLoader fetches sources over HTTP(S). Bodies are decoded to UTF-8
// according to the response Content-Type.
type HTTPLoader struct {
	client *resty.Client
}

// HTTPOption configures an HTTPLoader.
type HTTPOption func(*resty.Client)

// WithHTTPTimeout bounds each request.
func WithHTTPTimeout(d time.Duration) HTTPOption {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(c *resty.Client) {
		if ua != "" {
			c.SetHeader("User-Agent", ua)
		}
	}
}

// WithHTTPClient sets the underlying transport client, e.g. for tests.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *resty.Client) { c.SetTransport(hc.Transport) }
}

// NewHTTPLoader creates an HTTPLoader with a 30s timeout.
func NewHTTPLoader(opts ...HTTPOption) *HTTPLoader {
	c := resty.New().
		SetTimeout(30*time.Second).
		SetHeader("User-Agent", DefaultUserAgent)
	for _, opt := range opts {
		opt(c)
	}
	return &HTTPLoader{client: c}
}

// Client returns the resty client, shared with other HTTP consumers.
func (l *HTTPLoader) Client() *resty.Client {
	return l.client
}

func (l *HTTPLoader) Load(ctx context.Context, locator string) ([]byte, error) {
	resp, err := l.client.R().SetContext(ctx).Get(locator)
	if err != nil {
		return nil, fmt.Errorf("jsrt: fetch %s: %w", locator, err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, locator)
	case resp.IsError():
		return nil, fmt.Errorf("jsrt: fetch %s: %s", locator, resp.Status())
	}
	r, err := charset.NewReader(bytes.NewReader(resp.Body()), resp.Header().Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("jsrt: decode %s: %w", locator, err)
	}
	return io.ReadAll(r)
}
