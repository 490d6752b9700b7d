package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultResponseLimit = 1 << 20
)

// JSONClient posts JSON documents and reads bounded responses.
type JSONClient struct {
	doer          HTTPDoer
	responseLimit int64
	userAgent     string
}

type Option func(*JSONClient)

// WithResponseLimit caps how many response bytes are read. Larger bodies
// fail rather than being truncated.
func WithResponseLimit(limit int64) Option {
	return func(c *JSONClient) {
		if limit > 0 {
			c.responseLimit = limit
		}
	}
}

func WithUserAgent(agent string) Option {
	return func(c *JSONClient) {
		c.userAgent = strings.TrimSpace(agent)
	}
}

// NewJSONClient wraps doer. A nil doer gets an *http.Client with a 30s
// timeout.
func NewJSONClient(doer HTTPDoer, opts ...Option) *JSONClient {
	if doer == nil {
		doer = &http.Client{Timeout: defaultTimeout}
	}
	c := &JSONClient{doer: doer, responseLimit: defaultResponseLimit, userAgent: "go-certledger"}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// PostJSON encodes payload and posts it to endpoint. Non-2xx responses are
// returned as responses, not errors; see StatusError.
func (c *JSONClient) PostJSON(ctx context.Context, endpoint string, headers map[string]string, payload any) (Response, error) {
	if c == nil || c.doer == nil {
		return Response{}, newError("transport: json client is not configured", nil)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, wrapError(err, "transport: encode json request", map[string]any{"url": endpoint})
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSpace(endpoint), bytes.NewReader(body))
	if err != nil {
		return Response{}, wrapError(err, "transport: build request", map[string]any{"url": endpoint})
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for key, value := range headers {
		if key = strings.TrimSpace(key); key != "" {
			req.Header.Set(key, value)
		}
	}
	return c.send(req)
}

func (c *JSONClient) send(req *http.Request) (Response, error) {
	startedAt := time.Now()
	res, err := c.doer.Do(req)
	if err != nil {
		return Response{}, wrapError(err, "transport: execute request", map[string]any{"url": req.URL.String()})
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, c.responseLimit+1))
	if err != nil {
		return Response{}, wrapError(err, "transport: read response body", map[string]any{"status_code": res.StatusCode})
	}
	if int64(len(body)) > c.responseLimit {
		return Response{}, newError(fmt.Sprintf("transport: response body exceeds %d bytes", c.responseLimit), map[string]any{
			"status_code": res.StatusCode,
		})
	}
	return Response{
		StatusCode: res.StatusCode,
		Headers:    flattenHeaders(res.Header),
		Body:       body,
		Duration:   time.Since(startedAt),
	}, nil
}
