package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/hanpama/federon/internal/config"
	"github.com/hanpama/federon/internal/eventbus"
	"github.com/hanpama/federon/internal/executor"
	"github.com/hanpama/federon/internal/introspection"
	"github.com/hanpama/federon/internal/otel"
	"github.com/hanpama/federon/internal/schema"
	"github.com/hanpama/federon/internal/server"
	"github.com/hanpama/federon/internal/subgraph"
	"github.com/hanpama/federon/internal/subgraph/grpctransport"
	"github.com/hanpama/federon/internal/subgraph/httptransport"
	"github.com/hanpama/federon/internal/supergraph"
)

const rootUsage = `federon — federated GraphQL gateway

USAGE:
  federon <command> [flags]

COMMANDS:
  serve               Run the HTTP gateway against a composed supergraph
  compile-supergraph   Load & validate a supergraph SDL file, reporting violations
  validate             Alias for compile-supergraph
  help                 Show help for any command
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "serve":
		return cmdServe(rest)
	case "compile-supergraph", "validate":
		return cmdValidate(rest)
	case "help":
		return cmdHelp(rest)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Print(config.ServeUsage)
	case "compile-supergraph", "validate":
		fmt.Print("compile-supergraph <supergraph.graphql>\n  Load the SDL and print any violations found; exits non-zero on error.\n")
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

func cmdValidate(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: federon compile-supergraph <supergraph.graphql>")
	}
	sch, err := supergraph.Load(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("loaded %d types across %d subgraphs\n", len(sch.Types), len(sch.Subgraphs))
	return nil
}

func cmdServe(args []string) error {
	cfg, err := config.ParseServe(args)
	if err != nil {
		fmt.Fprint(os.Stderr, config.ServeUsage)
		return err
	}

	sch, err := supergraph.Load(cfg.SupergraphPath)
	if err != nil {
		return fmt.Errorf("load supergraph: %w", err)
	}
	if !cfg.MutationEnable {
		sch.MutationType = ""
	}

	eventbus.Use(eventbus.New())
	shutdown, err := otel.Setup(cfg.OtelEndpoint, cfg.OtelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	fetcher, err := buildFetcher(sch, cfg)
	if err != nil {
		return err
	}
	fetcher = subgraph.NewDedupFetcher(fetcher, cfg.InflightDedup)

	if cfg.IntrospectionEnabled {
		sch = introspection.ExtendSchema(sch)
	}

	eng := executor.New(sch, fetcher)
	if cfg.IntrospectionEnabled {
		eng.Local = introspection.NewResolver(sch)
	}

	var sopts []server.Option
	if cfg.Pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if cfg.Timeout > 0 {
		sopts = append(sopts, server.WithTimeout(cfg.Timeout))
	}
	if cfg.MaxBodyBytes > 0 {
		sopts = append(sopts, server.WithMaxBodyBytes(cfg.MaxBodyBytes))
	}
	if len(cfg.CORSOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(cfg.CORSOrigins...))
	}
	if len(cfg.MetadataHeaders) > 0 {
		sopts = append(sopts, server.WithMetadataHeaders(cfg.MetadataHeaders...))
	}
	sopts = append(sopts, server.WithGraphiQL(cfg.GraphiQL))
	if cfg.MaxFields > 0 {
		sopts = append(sopts, server.WithLimits(executor.Limits{MaxFields: cfg.MaxFields}))
	}

	h, err := server.New(eng, sopts...)
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", h)

	log.Printf("federon gateway listening on %s", cfg.Addr)
	return http.ListenAndServe(cfg.Addr, mux)
}

// buildFetcher routes each subgraph id to the HTTP transport by default,
// using its join__graph(url:) unless overridden by -transport.backend, or
// to the gRPC-envelope transport for any subgraph named by
// -transport.grpc-backend.
func buildFetcher(sch *schema.Schema, cfg *config.Config) (subgraph.Fetcher, error) {
	httpEndpoints := httptransport.StaticEndpoints{}
	grpcEndpoints := grpctransport.StaticEndpoints{}

	for id, sg := range sch.Subgraphs {
		sgID := subgraph.ID(id)
		if ep, ok := cfg.GRPCBackends[string(id)]; ok {
			grpcEndpoints[sgID] = []string{ep}
			continue
		}
		url := sg.URL
		if ep, ok := cfg.HTTPBackends[string(id)]; ok {
			url = ep
		}
		if url == "" {
			return nil, fmt.Errorf("subgraph %q has no endpoint (no join__graph url and no -transport.backend override)", id)
		}
		httpEndpoints[sgID] = url
	}

	httpT := httptransport.New(httpEndpoints,
		httptransport.WithMaxConnsPerHost(cfg.MaxConnsPerEndpoint),
		httptransport.WithDefaultTimeout(cfg.SubgraphDefaultTimeout))

	if len(grpcEndpoints) == 0 {
		return httpT, nil
	}

	grpcT := grpctransport.New(
		grpctransport.WithProvider(grpcEndpoints),
		grpctransport.WithMaxConnsPerEndpoint(cfg.MaxConnsPerEndpoint),
		grpctransport.WithRPCTimeout(cfg.SubgraphDefaultTimeout))

	return &routedFetcher{grpcSubgraphs: grpcEndpoints, http: httpT, grpc: grpcT}, nil
}

// routedFetcher dispatches a subgraph.Request to whichever transport owns
// its subgraph id, so a single gateway can mix HTTP subgraphs with
// gRPC-envelope ones.
type routedFetcher struct {
	grpcSubgraphs grpctransport.StaticEndpoints
	http          subgraph.Fetcher
	grpc          subgraph.Fetcher
}

func (r *routedFetcher) Fetch(ctx context.Context, req subgraph.Request) (subgraph.Response, error) {
	if _, ok := r.grpcSubgraphs[req.SubgraphID]; ok {
		return r.grpc.Fetch(ctx, req)
	}
	return r.http.Fetch(ctx, req)
}
