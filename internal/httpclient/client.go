package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/igwedaniel/dripper/internal/clock"
	"github.com/igwedaniel/dripper/internal/metrics"
	"github.com/igwedaniel/dripper/internal/proxy"
	"github.com/sirupsen/logrus"
)

// BrowserUserAgent is sent unless the request overrides it
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// RequestSpec describes one logical request
type RequestSpec struct {
	Method  string
	Headers map[string]string
	Body    []byte
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Attempts   int
	Proxy      *proxy.Descriptor
}

// Client issues requests through a randomly chosen proxy and rotates to a
// new one when an attempt fails with a retryable error.
type Client struct {
	pool     *proxy.Pool
	factory  proxy.TransportFactory
	sleeper  clock.Sleeper
	logger   *logrus.Logger
	defaults map[string]string
}

type Option func(*Client)

func WithTransportFactory(f proxy.TransportFactory) Option {
	return func(c *Client) { c.factory = f }
}

func WithSleeper(s clock.Sleeper) Option {
	return func(c *Client) { c.sleeper = s }
}

// WithDefaultHeaders replaces the headers merged under every request
func WithDefaultHeaders(h map[string]string) Option {
	return func(c *Client) { c.defaults = h }
}

func New(pool *proxy.Pool, logger *logrus.Logger, opts ...Option) *Client {
	c := &Client{
		pool:     pool,
		factory:  proxy.DefaultTransportFactory,
		sleeper:  clock.Real{},
		logger:   logger,
		defaults: map[string]string{"User-Agent": BrowserUserAgent},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send performs the request under policy. The proxy pool is re-read on every
// call and a proxy is chosen per attempt.
func (c *Client) Send(ctx context.Context, url string, spec RequestSpec, policy RetryPolicy) (*Response, error) {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	pool := c.pool.Load()
	current := c.pool.PickRandom(pool)

	var (
		lastErr  error
		attempts int
	)
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		attempts = attempt
		entry := c.logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"proxy":   proxy.Describe(current),
			"url":     url,
		})

		resp, err := c.do(ctx, url, spec, current, policy)
		if err == nil {
			metrics.HTTPAttempts.WithLabelValues("success").Inc()
			entry.Debugf("Request succeeded with status %d", resp.StatusCode)
			resp.Attempts = attempt
			resp.Proxy = current
			return resp, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			metrics.HTTPAttempts.WithLabelValues("cancelled").Inc()
			return nil, ctx.Err()
		}

		kind := Classify(err)
		metrics.HTTPAttempts.WithLabelValues(kind.String()).Inc()
		if !policy.retries(kind) || attempt == policy.MaxAttempts {
			entry.Warnf("Request failed: %v", err)
			break
		}

		current = c.pool.PickRandom(pool)
		entry.Warnf("Retryable failure (%s), retrying via %s in %s: %v", kind, proxy.Describe(current), policy.Delay, err)

		if err := c.sleeper.Sleep(ctx, policy.Delay); err != nil {
			return nil, err
		}
	}

	return nil, &RequestFailed{Attempts: attempts, Proxy: current, Cause: lastErr}
}

func (c *Client) do(ctx context.Context, url string, spec RequestSpec, d *proxy.Descriptor, policy RetryPolicy) (*Response, error) {
	rt, err := c.factory(d)
	if err != nil {
		return nil, fmt.Errorf("build transport: %w", err)
	}
	if closer, ok := rt.(interface{ CloseIdleConnections() }); ok {
		defer closer.CloseIdleConnections()
	}

	method := spec.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if spec.Body != nil {
		body = bytes.NewReader(spec.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range c.defaults {
		req.Header.Set(k, v)
	}
	for k, v := range spec.Headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Transport: rt, Timeout: policy.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &StatusError{Code: resp.StatusCode, Body: data}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
