package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"pricefeed/internal/metrics"
)

// DefaultTimeout bounds every outbound request when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// maxBody caps how much of a response is read. AlphaVantage full intraday
// series run to several megabytes.
const maxBody = 32 << 20

// Doer describes an HTTP client.
//
//go:generate mockgen -package=httpxmock -destination=httpxmock/mock_doer.go -source=httpx.go Doer
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a small wrapper around http.Client with sane defaults.
type Client struct {
	HTTP      Doer
	UserAgent string
	Headers   map[string]string
}

func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   3 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
	}
	return &Client{HTTP: &http.Client{Timeout: timeout, Transport: transport}, UserAgent: "pricefeed/1.0"}
}

// Do sets the default headers, performs the request and records it per upstream host.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range c.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	start := time.Now()
	res, err := c.HTTP.Do(req)
	code := "error"
	if err == nil {
		code = strconv.Itoa(res.StatusCode)
	}
	metrics.UpstreamRequests.WithLabelValues(req.URL.Host, code).Inc()
	metrics.UpstreamDuration.WithLabelValues(req.URL.Host).Observe(time.Since(start).Seconds())
	return res, err
}

// StatusError is returned by Get for a non-2xx response.
type StatusError struct {
	Code int
	Body []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// Get performs a GET against endpoint with the given query and headers and
// returns the response body.
func Get(ctx context.Context, d Doer, endpoint string, query url.Values, header http.Header) ([]byte, error) {
	u := endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", redact(err, endpoint))
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	res, err := d.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", redact(err, withoutQuery(req.URL)))
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		if len(body) > 2<<10 {
			body = body[:2<<10]
		}
		return nil, &StatusError{Code: res.StatusCode, Body: body}
	}
	return body, nil
}

// redact replaces the URL of a *url.Error so that credentials sent as query
// parameters never reach error text. The wrapped cause is kept for errors.Is.
func redact(err error, safeURL string) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	return &url.Error{Op: uerr.Op, URL: safeURL, Err: uerr.Err}
}

func withoutQuery(u *url.URL) string {
	return u.Scheme + "://" + u.Host + u.Path
}
