// Package restclient implements the REST Data Plane Client (C2): every
// call the orchestrator, scheduler, and memory extractor make to the
// external REST Data Plane and RAG services goes through here, wrapped
// in a per-(service,endpoint_template) circuit breaker, a bounded retry
// policy, and — for read endpoints tagged cacheable — a Redis
// read-through cache with pub/sub invalidation.
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/vladmesh/secretary/internal/backoff"
	"github.com/vladmesh/secretary/internal/circuitbreaker"
	"github.com/vladmesh/secretary/internal/observability"
)

// Client is a typed HTTP client against one target service (identified
// by Name, used as the target_service label on every metric and the
// circuit breaker namespace).
type Client struct {
	Name       string
	BaseURL    string
	HTTPClient *http.Client
	Breakers   *circuitbreaker.CircuitBreakerRegistry
	Cache      *ReadThroughCache // nil disables caching entirely
	Logger     *observability.Logger
	Metrics    *observability.Metrics
	MaxRetries int
}

// Option configures a new Client.
type Option func(*Client)

// WithCache attaches a read-through cache to the client.
func WithCache(c *ReadThroughCache) Option {
	return func(cl *Client) { cl.Cache = c }
}

// WithMaxRetries overrides the default retry count.
func WithMaxRetries(n int) Option {
	return func(cl *Client) { cl.MaxRetries = n }
}

// New builds a Client for a given target service.
func New(name, baseURL string, httpClient *http.Client, logger *observability.Logger, metrics *observability.Metrics, opts ...Option) *Client {
	cl := &Client{
		Name:    name,
		BaseURL: baseURL,
		HTTPClient: httpClient,
		Breakers: circuitbreaker.NewCircuitBreakerRegistry(circuitbreaker.CircuitBreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
		}),
		Logger:     logger,
		Metrics:    metrics,
		MaxRetries: 3,
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

// CallOptions configures a single request.
type CallOptions struct {
	// EndpointTemplate is the path shape used for metric labels and the
	// circuit breaker name, e.g. "/users/{id}" rather than "/users/42" —
	// a literal ID in the label would blow up cardinality.
	EndpointTemplate string
	Method           string
	Path             string // the literal path to call
	Body             any
	// CacheKey, if non-empty and Cache is configured, makes a GET
	// response cacheable under this key with CacheTTL.
	CacheKey string
	CacheTTL time.Duration
}

// Do executes a request against the target service, decoding the JSON
// response body into out (nil to discard the body). GET calls with a
// CacheKey consult the read-through cache first.
func (c *Client) Do(ctx context.Context, opts CallOptions, out any) error {
	circuitName := c.Name + ":" + opts.EndpointTemplate
	breaker := c.Breakers.GetWithConfig(circuitName, circuitbreaker.CircuitBreakerConfig{
		Name:             circuitName,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		OnStateChange: func(from, to string) {
			if c.Metrics != nil {
				c.Metrics.RecordCircuitTransition(circuitName, from, to)
			}
			if c.Logger != nil {
				c.Logger.Warn(ctx, observability.EventError, "circuit breaker transition",
					"name", circuitName, "from", from, "to", to)
			}
		},
	})

	if opts.Method == http.MethodGet && opts.CacheKey != "" && c.Cache != nil {
		if hit, err := c.Cache.Get(ctx, opts.CacheKey, out); err == nil {
			c.recordCache(opts.CacheKey, true)
			if hit {
				return nil
			}
		}
		c.recordCache(opts.CacheKey, false)
	}

	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		start := time.Now()
		err := breaker.Execute(ctx, func(ctx context.Context) error {
			return c.doOnce(ctx, opts, out)
		})
		duration := time.Since(start).Seconds()
		if c.Metrics != nil {
			c.Metrics.RecordRESTCall(c.Name, opts.EndpointTemplate, opts.Method, duration, err)
		}
		if err == nil {
			if opts.Method == http.MethodGet && opts.CacheKey != "" && c.Cache != nil {
				_ = c.Cache.Set(ctx, opts.CacheKey, out, opts.CacheTTL)
			}
			return nil
		}
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			lastErr = &ServiceUnavailable{Service: c.Name, Endpoint: opts.EndpointTemplate, Reason: "circuit open"}
			break
		}
		lastErr = err
		if !retryable(err) {
			break
		}
		if attempt < c.MaxRetries {
			time.Sleep(backoff.ComputeBackoff(backoff.DefaultPolicy(), attempt+1))
		}
	}
	return fmt.Errorf("%s %s: %w", opts.Method, opts.Path, lastErr)
}

func (c *Client) recordCache(key string, hit bool) {
	if c.Metrics == nil {
		return
	}
	c.Metrics.RecordCacheResult(cachePrefix(key), key, hit)
}

func (c *Client) doOnce(ctx context.Context, opts CallOptions, out any) error {
	var body io.Reader
	if opts.Body != nil {
		b, err := json.Marshal(opts.Body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, c.BaseURL+opts.Path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cid := observability.CorrelationID(ctx); cid != "" {
		req.Header.Set("X-Correlation-ID", cid)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return &ServiceTimeout{Service: c.Name, Endpoint: opts.EndpointTemplate}
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return &ServiceTimeout{Service: c.Name, Endpoint: opts.EndpointTemplate}
		}
		return &ServiceUnavailable{Service: c.Name, Endpoint: opts.EndpointTemplate, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(resp.Body)
		return &ServiceResponseError{
			Service: c.Name, Endpoint: opts.EndpointTemplate,
			Status: resp.StatusCode, Detail: string(payload),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// cachePrefix derives the metric-label prefix from a cache key's first
// colon-delimited segment, e.g. "assistant:123" -> "assistant".
func cachePrefix(key string) string {
	for i, r := range key {
		if r == ':' {
			return key[:i]
		}
	}
	return key
}
