// Package config turns command-line flags into the typed configuration the
// gateway's subcommands need, using one flag.FlagSet per subcommand.
package config

import (
	"bytes"
	"flag"
	"fmt"
	"strings"
	"time"
)

// ServeUsage documents every flag ParseServe recognizes: the configuration
// surface the gateway actually enforces at runtime.
const ServeUsage = `serve FLAGS:
  -supergraph.path <file>              Composed supergraph SDL to load (required)
  -server.addr <addr>                  HTTP listen address (default: :8080)
  -server.pretty                       Pretty-print JSON responses
  -server.timeout <duration>           Per-request timeout, e.g. 10s (default: 10s)
  -server.max-body-bytes <n>           Max request body size in bytes (default: unlimited)
  -server.cors-origin <origin>         Allow this CORS origin. Repeatable
  -server.metadata-header <name>       Forward HTTP header into subgraph request metadata. Repeatable
  -server.graphiql <bool>              Serve the GraphiQL IDE (default: true)
  -operation.max-fields <n>            Reject operations selecting more than n fields (default: unlimited)
  -introspection.enabled <bool>        Enable __schema/__type (default: true)
  -mutation.enable <bool>              Allow mutations when the schema declares one (default: true)
  -traffic-shaping.inflight-dedup      Coalesce identical concurrent subgraph requests
  -timeout.subgraph-default <duration> Default per-subgraph request timeout (default: 5s)
  -transport.backend <ID=url>          Map a subgraph id to an HTTP endpoint, overriding join__graph's own url. Repeatable
  -transport.grpc-backend <ID=host:port> Route a subgraph through the gRPC-envelope transport instead of HTTP. Repeatable
  -transport.max-conns-per-endpoint N  Max concurrent connections per subgraph endpoint (default: 8)
  -otel.endpoint <addr>                OTLP collector endpoint
  -otel.service <name>                 OpenTelemetry service name (default: federon)
`

// Config is the fully parsed configuration for the "serve" subcommand.
type Config struct {
	SupergraphPath string

	Addr            string
	Pretty          bool
	Timeout         time.Duration
	MaxBodyBytes    int64
	CORSOrigins     []string
	MetadataHeaders []string
	GraphiQL        bool

	MaxFields int

	IntrospectionEnabled bool
	MutationEnable       bool

	InflightDedup          bool
	SubgraphDefaultTimeout time.Duration

	// HTTPBackends overrides a subgraph's join__graph(url:) with an
	// operator-supplied endpoint; GRPCBackends instead routes the subgraph
	// through the gRPC-envelope transport entirely.
	HTTPBackends         map[string]string
	GRPCBackends         map[string]string
	MaxConnsPerEndpoint  int

	OtelEndpoint string
	OtelService  string
}

type stringListFlag []string

func (s *stringListFlag) String() string { return "" }
func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type mapFlag map[string]string

func (m mapFlag) String() string { return "" }
func (m mapFlag) Set(v string) error {
	parts := strings.SplitN(v, "=", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid mapping %q, expected ID=value", v)
	}
	m[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	return nil
}

// ParseServe builds a Config from command-line flags. args is the argument
// list after the "serve" subcommand name.
func ParseServe(args []string) (*Config, error) {
	cfg := &Config{
		Addr:                   ":8080",
		Timeout:                10 * time.Second,
		GraphiQL:               true,
		IntrospectionEnabled:   true,
		MutationEnable:         true,
		SubgraphDefaultTimeout: 5 * time.Second,
		MaxConnsPerEndpoint:    8,
		OtelService:            "federon",
		HTTPBackends:           map[string]string{},
		GRPCBackends:           map[string]string{},
	}

	var cors, metadataHeaders stringListFlag
	httpBackends := mapFlag(cfg.HTTPBackends)
	grpcBackends := mapFlag(cfg.GRPCBackends)

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&cfg.SupergraphPath, "supergraph.path", "", "composed supergraph SDL to load")
	fs.StringVar(&cfg.Addr, "server.addr", cfg.Addr, "HTTP listen address")
	fs.BoolVar(&cfg.Pretty, "server.pretty", cfg.Pretty, "pretty-print JSON responses")
	fs.DurationVar(&cfg.Timeout, "server.timeout", cfg.Timeout, "per-request timeout")
	fs.Int64Var(&cfg.MaxBodyBytes, "server.max-body-bytes", cfg.MaxBodyBytes, "max request body size")
	fs.Var(&cors, "server.cors-origin", "allow this CORS origin")
	fs.Var(&metadataHeaders, "server.metadata-header", "forward this HTTP header into subgraph metadata")
	fs.BoolVar(&cfg.GraphiQL, "server.graphiql", cfg.GraphiQL, "serve the GraphiQL IDE")
	fs.IntVar(&cfg.MaxFields, "operation.max-fields", cfg.MaxFields, "reject operations selecting more than n fields")
	fs.BoolVar(&cfg.IntrospectionEnabled, "introspection.enabled", cfg.IntrospectionEnabled, "enable __schema/__type")
	fs.BoolVar(&cfg.MutationEnable, "mutation.enable", cfg.MutationEnable, "allow mutations")
	fs.BoolVar(&cfg.InflightDedup, "traffic-shaping.inflight-dedup", cfg.InflightDedup, "coalesce identical concurrent subgraph requests")
	fs.DurationVar(&cfg.SubgraphDefaultTimeout, "timeout.subgraph-default", cfg.SubgraphDefaultTimeout, "default per-subgraph request timeout")
	fs.Var(httpBackends, "transport.backend", "map a subgraph id to an HTTP endpoint")
	fs.Var(grpcBackends, "transport.grpc-backend", "route a subgraph through the gRPC-envelope transport")
	fs.IntVar(&cfg.MaxConnsPerEndpoint, "transport.max-conns-per-endpoint", cfg.MaxConnsPerEndpoint, "max conns per subgraph endpoint")
	fs.StringVar(&cfg.OtelEndpoint, "otel.endpoint", cfg.OtelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&cfg.OtelService, "otel.service", cfg.OtelService, "OpenTelemetry service name")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.SupergraphPath == "" {
		return nil, fmt.Errorf("-supergraph.path is required")
	}

	cfg.CORSOrigins = cors
	cfg.MetadataHeaders = metadataHeaders
	return cfg, nil
}
