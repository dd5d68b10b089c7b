// Package remote sends authenticated requests to the account service and
// classifies each response into an Outcome.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bdobrica/turbobot/internal/turbobot/metrics"
	"github.com/bdobrica/turbobot/internal/turbobot/observability"
)

// AuthScheme prefixes the service key in the Authorization header.
const AuthScheme = "BotKey"

// maxBodyBytes caps how much of a response is read into memory.
const maxBodyBytes = 4 << 20

// Config configures a Client.
type Config struct {
	// BaseURL is the service root, e.g. https://api.sys-allnet.com.
	BaseURL string
	// Timeout bounds each request unless Request.Timeout overrides it.
	// Defaults to 10s.
	Timeout time.Duration
	// HTTPClient replaces the default client (tests).
	HTTPClient *http.Client
	Metrics    *metrics.Metrics
}

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	metrics *metrics.Metrics
}

// Request describes one call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is JSON-encoded unless it is already []byte or json.RawMessage.
	// A nil Body sends no payload.
	Body any
	// Key is the caller's service key; empty sends no Authorization header.
	Key string
	// Timeout overrides Config.Timeout for slow calls such as avatar upload.
	Timeout time.Duration
}

// New returns a Client for cfg.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		http:    hc,
		metrics: cfg.Metrics,
	}
}

// Do performs exactly one HTTP exchange. It never returns an error: every
// failure, including a panic-free but unreadable response, is an Outcome.
func (c *Client) Do(ctx context.Context, req Request) Outcome {
	start := time.Now()
	o := c.do(ctx, req)
	c.metrics.ObserveRemote(req.Path, o.Kind.String(), time.Since(start))

	log := observability.WithTrace(ctx)
	if o.OK() {
		log.Debug("remote call", "method", req.Method, "path", req.Path, "status", o.Status)
	} else {
		log.Info("remote call failed", "method", req.Method, "path", req.Path,
			"outcome", o.Kind.String(), "status", o.Status, "err", o.Cause)
	}
	return o
}

func (c *Client) do(ctx context.Context, req Request) Outcome {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		raw, err := encodeBody(req.Body)
		if err != nil {
			return TransportFailure(fmt.Errorf("encode request body: %w", err))
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return TransportFailure(fmt.Errorf("build request: %w", err))
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json, text/plain")
	if req.Key != "" {
		httpReq.Header.Set("Authorization", AuthScheme+" "+req.Key)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return TransportFailure(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return TransportFailure(fmt.Errorf("read response: %w", err))
	}
	return Classify(resp.StatusCode, raw)
}

func encodeBody(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		return json.Marshal(v)
	}
}

// Get is shorthand for an authenticated GET.
func (c *Client) Get(ctx context.Context, path, key string, query url.Values) Outcome {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Key: key, Query: query})
}

// Post is shorthand for an authenticated POST.
func (c *Client) Post(ctx context.Context, path, key string, body any) Outcome {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Key: key, Body: body})
}

