package grpctransport

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/hanpama/federon/internal/eventbus"
	"github.com/hanpama/federon/internal/events"
	"github.com/hanpama/federon/internal/subgraph"
)

// EndpointProvider resolves a subgraph id to one or more interchangeable
// gRPC endpoints (host:port), keyed by subgraph id instead of service name.
type EndpointProvider interface {
	Endpoints(ctx context.Context, id subgraph.ID) ([]string, error)
}

// StaticEndpoints is an EndpointProvider backed by an in-memory map.
type StaticEndpoints map[subgraph.ID][]string

func (s StaticEndpoints) Endpoints(ctx context.Context, id subgraph.ID) ([]string, error) {
	arr := s[id]
	if len(arr) == 0 {
		return nil, fmt.Errorf("grpctransport: no endpoints for subgraph %q", id)
	}
	return arr, nil
}

// Options configures Transport. All fields are optional; zero values fall
// back to sane defaults.
type Options struct {
	Provider            EndpointProvider
	MaxConnsPerEndpoint int
	RPCTimeout          time.Duration
	DialOptions         []grpc.DialOption
}

type Option func(*Options)

func WithProvider(p EndpointProvider) Option { return func(o *Options) { o.Provider = p } }
func WithMaxConnsPerEndpoint(n int) Option    { return func(o *Options) { o.MaxConnsPerEndpoint = n } }
func WithRPCTimeout(d time.Duration) Option   { return func(o *Options) { o.RPCTimeout = d } }
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *Options) { o.DialOptions = opts }
}

func defaultOptions() *Options {
	return &Options{MaxConnsPerEndpoint: 2, RPCTimeout: 3 * time.Second}
}

// Transport is a subgraph.Fetcher that carries the HTTP tuple over a generic
// gRPC envelope RPC, for subgraphs reachable only through a gRPC mesh.
type Transport struct {
	opts *Options

	mu     sync.RWMutex
	pools  map[string]*connPool
	closed atomic.Bool
}

var _ subgraph.Fetcher = (*Transport)(nil)

func New(opts ...Option) *Transport {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	if len(o.DialOptions) == 0 {
		o.DialOptions = []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithConnectParams(grpc.ConnectParams{Backoff: backoff.DefaultConfig}),
		}
	}
	return &Transport{opts: o, pools: make(map[string]*connPool)}
}

func (t *Transport) Fetch(ctx context.Context, req subgraph.Request) (subgraph.Response, error) {
	if t.closed.Load() {
		return subgraph.Response{}, &subgraph.TransportError{Err: fmt.Errorf("grpctransport: closed")}
	}
	if t.opts.Provider == nil {
		return subgraph.Response{}, &subgraph.TransportError{Err: fmt.Errorf("grpctransport: provider not configured")}
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = t.opts.RPCTimeout
	}
	if _, ok := ctx.Deadline(); !ok && timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	endpoints, err := t.opts.Provider.Endpoints(ctx, req.SubgraphID)
	if err != nil {
		return subgraph.Response{}, &subgraph.TransportError{Err: err}
	}
	endpoint := endpoints[rand.Intn(len(endpoints))]

	cc, err := t.getConn(ctx, endpoint)
	if err != nil {
		return subgraph.Response{}, &subgraph.TransportError{Err: err, Retryable: true}
	}
	defer t.returnConn(endpoint, cc)

	reqMsg := newRequestMessage(req.Method, req.URL, req.Header, req.Body)
	respMsg := dynamicpb.NewMessage(responseDesc)

	method := string(fetchMethod.Name())
	fullMethod := fmt.Sprintf("/%s/%s", fetchMethod.Parent().FullName(), method)

	start := time.Now()
	eventbus.Publish(ctx, events.GRPCClientStart{Service: string(fetchMethod.Parent().FullName()), Method: method, Target: endpoint})
	err = cc.Invoke(ctx, fullMethod, reqMsg, respMsg)
	eventbus.Publish(ctx, events.GRPCClientFinish{Service: string(fetchMethod.Parent().FullName()), Method: method, Target: endpoint, Err: err, Duration: time.Since(start)})
	if err != nil {
		return subgraph.Response{}, &subgraph.TransportError{Err: err, Retryable: true}
	}

	status, body := readResponseMessage(respMsg)
	return subgraph.Response{StatusCode: int(status), Body: body}, nil
}

func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.pools {
		p.close()
	}
	t.pools = map[string]*connPool{}
	return nil
}

type connPool struct {
	endpoint string
	opts     *Options
	conns    chan *grpc.ClientConn
}

func newConnPool(endpoint string, opts *Options) *connPool {
	n := opts.MaxConnsPerEndpoint
	if n <= 0 {
		n = 2
	}
	return &connPool{endpoint: endpoint, opts: opts, conns: make(chan *grpc.ClientConn, n)}
}

func (p *connPool) get(ctx context.Context) (*grpc.ClientConn, error) {
	select {
	case cc := <-p.conns:
		return cc, nil
	default:
		return grpc.DialContext(ctx, p.endpoint, p.opts.DialOptions...)
	}
}

func (p *connPool) put(cc *grpc.ClientConn) {
	select {
	case p.conns <- cc:
	default:
		_ = cc.Close()
	}
}

func (p *connPool) close() {
	close(p.conns)
	for cc := range p.conns {
		_ = cc.Close()
	}
}

func (t *Transport) getConn(ctx context.Context, endpoint string) (*grpc.ClientConn, error) {
	t.mu.RLock()
	pool := t.pools[endpoint]
	t.mu.RUnlock()
	if pool == nil {
		t.mu.Lock()
		pool = t.pools[endpoint]
		if pool == nil {
			pool = newConnPool(endpoint, t.opts)
			t.pools[endpoint] = pool
		}
		t.mu.Unlock()
	}
	return pool.get(ctx)
}

func (t *Transport) returnConn(endpoint string, cc *grpc.ClientConn) {
	t.mu.RLock()
	pool := t.pools[endpoint]
	t.mu.RUnlock()
	if pool != nil {
		pool.put(cc)
		return
	}
	_ = cc.Close()
}
