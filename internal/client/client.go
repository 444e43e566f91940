// Package client talks to the remote challenge server that hands out order
// sets and grades submitted ledgers.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lazypower/larder/internal/engine"
)

const (
	// DefaultEndpoint is the public challenge server.
	DefaultEndpoint = "https://api.cloudkitchens.com"

	newPath     = "/interview/challenge/new"
	solvePath   = "/interview/challenge/solve"
	testIDHdr   = "x-test-id"
	httpTimeout = 20 * time.Second
)

// Client fetches problems and submits solutions.
type Client struct {
	http       *http.Client
	ordersURL  string
	solveURL   string
	auth       string
	authHeader string
	authScheme string
}

// Option customizes a Client.
type Option func(*Client)

// WithAuthHeader sends the token in a request header instead of the auth
// query parameter. An empty header means Authorization. A non-empty scheme
// prefixes the token, as in "Bearer tok".
func WithAuthHeader(header, scheme string) Option {
	return func(c *Client) {
		if header == "" {
			header = "Authorization"
		}
		c.authHeader = header
		c.authScheme = strings.TrimSpace(scheme)
	}
}

// WithURLs replaces the fetch and solve URLs derived from the endpoint.
// Empty values keep the derived URL. Query parameters already on a URL
// are kept.
func WithURLs(ordersURL, solveURL string) Option {
	return func(c *Client) {
		if ordersURL != "" {
			c.ordersURL = ordersURL
		}
		if solveURL != "" {
			c.solveURL = solveURL
		}
	}
}

// New creates a challenge client. An empty endpoint uses DefaultEndpoint.
func New(endpoint, auth string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	endpoint = strings.TrimRight(endpoint, "/")
	c := &Client{
		http:      &http.Client{Timeout: httpTimeout},
		ordersURL: endpoint + newPath,
		solveURL:  endpoint + solvePath,
		auth:      auth,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ParseHTTPURL checks that raw is an absolute http or https URL with a
// host. label names the setting in errors.
func ParseHTTPURL(raw, label string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("missing %s", label)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", label, raw, err)
	}
	if !strings.EqualFold(u.Scheme, "http") && !strings.EqualFold(u.Scheme, "https") {
		return nil, fmt.Errorf("%s must start with http:// or https:// (got %q)", label, raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%s must include a hostname (got %q)", label, raw)
	}
	return u, nil
}

// Problem is a fetched order set. Orders is the raw payload; feed.DecodeBytes
// turns it into items.
type Problem struct {
	TestID string
	Orders []byte
}

// FetchOrders requests a new problem. name and seed are optional; a zero
// seed lets the server choose.
func (c *Client) FetchOrders(ctx context.Context, name string, seed int64) (*Problem, error) {
	q := url.Values{}
	if name != "" {
		q.Set("name", name)
	}
	if seed != 0 {
		q.Set("seed", strconv.FormatInt(seed, 10))
	}

	req, err := c.newRequest(ctx, http.MethodGet, c.ordersURL, q, nil)
	if err != nil {
		return nil, err
	}
	resp, body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return &Problem{TestID: resp.Header.Get(testIDHdr), Orders: body}, nil
}

// Options echoes the pacing a run used, in microseconds.
type Options struct {
	Rate int64 `json:"rate"`
	Min  int64 `json:"min"`
	Max  int64 `json:"max"`
}

// NewOptions converts durations to the wire representation.
func NewOptions(rate, minPickup, maxPickup time.Duration) Options {
	return Options{Rate: rate.Microseconds(), Min: minPickup.Microseconds(), Max: maxPickup.Microseconds()}
}

type solution struct {
	Options Options         `json:"options"`
	Actions []engine.Record `json:"actions"`
}

// Submit posts a ledger for grading and returns the server's verdict.
func (c *Client) Submit(ctx context.Context, testID string, opts Options, records []engine.Record) (string, error) {
	if records == nil {
		records = []engine.Record{}
	}
	payload, err := json.Marshal(solution{Options: opts, Actions: records})
	if err != nil {
		return "", fmt.Errorf("encode solution: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.solveURL, url.Values{}, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(testIDHdr, testID)

	_, body, err := c.do(req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// newRequest merges q into the query already on target and attaches the
// token, either as a header or as the auth query parameter.
func (c *Client) newRequest(ctx context.Context, method, target string, q url.Values, body io.Reader) (*http.Request, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	merged := u.Query()
	for k, vs := range q {
		merged[k] = vs
	}
	if c.auth != "" && c.authHeader == "" {
		merged.Set("auth", c.auth)
	}
	u.RawQuery = merged.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.auth != "" && c.authHeader != "" {
		value := c.auth
		if c.authScheme != "" {
			value = c.authScheme + " " + c.auth
		}
		req.Header.Set(c.authHeader, value)
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response %s: %w", req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, data, &StatusError{Method: req.Method, Path: req.URL.Path, Code: resp.StatusCode, Body: string(data)}
	}
	return resp, data, nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}
