// Package httptransport is the default subgraph.Fetcher: a pooled HTTP
// client keyed by subgraph endpoint, built from an Options struct with
// functional options, a per-endpoint pool, and events emitted through the
// event bus for tracing.
package httptransport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hanpama/federon/internal/eventbus"
	"github.com/hanpama/federon/internal/events"
	"github.com/hanpama/federon/internal/subgraph"
)

// EndpointResolver maps a subgraph id to the URL configured for it in the
// supergraph SDL's join__graph(url: "...") directive.
type EndpointResolver interface {
	Endpoint(id subgraph.ID) (string, bool)
}

// StaticEndpoints is an EndpointResolver backed by an in-memory map.
type StaticEndpoints map[subgraph.ID]string

func (s StaticEndpoints) Endpoint(id subgraph.ID) (string, bool) { v, ok := s[id]; return v, ok }

// Options configures Transport. All fields are optional; zero values fall
// back to the defaults documented on each field.
type Options struct {
	// MaxConnsPerHost bounds the number of concurrent TCP connections per
	// subgraph endpoint (default: 8).
	MaxConnsPerHost int
	// DefaultTimeout is applied when a Request carries no deadline and no
	// per-call Timeout (default: timeout.subgraph-default).
	DefaultTimeout time.Duration
	// RoundTripper overrides the transport used by the underlying
	// http.Client; primarily a test seam.
	RoundTripper http.RoundTripper
}

type Option func(*Options)

func WithMaxConnsPerHost(n int) Option        { return func(o *Options) { o.MaxConnsPerHost = n } }
func WithDefaultTimeout(d time.Duration) Option { return func(o *Options) { o.DefaultTimeout = d } }
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(o *Options) { o.RoundTripper = rt }
}

// Transport is a subgraph.Fetcher backed by *http.Client, one per subgraph
// endpoint so connection-pool limits are scoped per backing service.
type Transport struct {
	resolver EndpointResolver
	opts     Options

	mu      sync.RWMutex
	clients map[string]*http.Client
	closed  atomic.Bool
}

var _ subgraph.Fetcher = (*Transport)(nil)

func New(resolver EndpointResolver, opts ...Option) *Transport {
	o := Options{MaxConnsPerHost: 8, DefaultTimeout: 5 * time.Second}
	for _, f := range opts {
		f(&o)
	}
	return &Transport{resolver: resolver, opts: o, clients: make(map[string]*http.Client)}
}

func (t *Transport) Fetch(ctx context.Context, req subgraph.Request) (subgraph.Response, error) {
	if t.closed.Load() {
		return subgraph.Response{}, &subgraph.TransportError{Err: fmt.Errorf("httptransport: closed")}
	}
	endpoint, ok := t.resolver.Endpoint(req.SubgraphID)
	if !ok {
		return subgraph.Response{}, &subgraph.TransportError{Err: fmt.Errorf("httptransport: no endpoint for subgraph %q", req.SubgraphID)}
	}
	url := req.URL
	if url == "" {
		url = endpoint
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = t.opts.DefaultTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(req.Body))
	if err != nil {
		return subgraph.Response{}, &subgraph.TransportError{Err: err}
	}
	for name, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}
	if httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	client := t.clientFor(endpoint)

	start := time.Now()
	eventbus.Publish(ctx, events.SubgraphFetchStart{SubgraphID: string(req.SubgraphID), Method: method, URL: url})
	resp, err := client.Do(httpReq)
	if err != nil {
		eventbus.Publish(ctx, events.SubgraphFetchFinish{SubgraphID: string(req.SubgraphID), Method: method, URL: url, Err: err, Duration: time.Since(start)})
		retryable := ctx.Err() == nil // a timeout we set ourselves is not retryable upstream
		return subgraph.Response{}, &subgraph.TransportError{Err: err, Retryable: retryable}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	eventbus.Publish(ctx, events.SubgraphFetchFinish{SubgraphID: string(req.SubgraphID), Method: method, URL: url, StatusCode: resp.StatusCode, Err: err, Duration: time.Since(start)})
	if err != nil {
		return subgraph.Response{}, &subgraph.TransportError{Err: err, Retryable: true}
	}
	return subgraph.Response{StatusCode: resp.StatusCode, Body: body}, nil
}

func (t *Transport) clientFor(endpoint string) *http.Client {
	t.mu.RLock()
	c := t.clients[endpoint]
	t.mu.RUnlock()
	if c != nil {
		return c
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if c = t.clients[endpoint]; c != nil {
		return c
	}
	rt := t.opts.RoundTripper
	if rt == nil {
		rt = &http.Transport{MaxConnsPerHost: t.opts.MaxConnsPerHost, MaxIdleConnsPerHost: t.opts.MaxConnsPerHost}
	}
	c = &http.Client{Transport: rt}
	t.clients[endpoint] = c
	return c
}

func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.clients {
		c.CloseIdleConnections()
	}
	t.clients = map[string]*http.Client{}
	return nil
}
