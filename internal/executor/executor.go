// Package executor dispatches a finalized solution.Plan against live
// subgraphs and assembles the GraphQL response level by level: one subgraph
// request per solution.Partition, grouped into the plan's precomputed
// topological levels, each response merged into a shared response tree.
// A failed partition records an error and sets the fields it was
// responsible for to null at its anchor; nulls are not propagated to
// non-null parents, and no tombstone pruning is done.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	gqlerrors "github.com/hanpama/federon/internal/gqlerrors"
	schema "github.com/hanpama/federon/internal/schema"
	solution "github.com/hanpama/federon/internal/solution"
	subgraph "github.com/hanpama/federon/internal/subgraph"
)

// Engine runs a finalized plan against a schema index and a subgraph
// Fetcher (normally a subgraph.DedupFetcher wrapping a transport).
type Engine struct {
	Schema  *schema.Schema
	Fetcher subgraph.Fetcher
	// Local answers an INTROSPECTION-kind partition without a subgraph round
	// trip. Nil disables introspection.
	Local LocalResolver
}

// LocalResolver answers a partition whose resolver's subgraph is the
// synthetic introspection subgraph, without a wire call.
type LocalResolver interface {
	Resolve(ctx context.Context, roots []*solution.SelectionNode) (any, []GraphQLError)
}

func New(sch *schema.Schema, fetcher subgraph.Fetcher) *Engine {
	return &Engine{Schema: sch, Fetcher: fetcher}
}

// run holds the mutable state shared by every partition dispatched while
// executing one plan: the response tree under construction and the error
// list, both guarded by mu since partitions in the same level run
// concurrently.
type run struct {
	engine *Engine
	plan   *solution.Plan

	mu      sync.Mutex
	data    map[string]any
	errors  []GraphQLError
	results map[int]any // partition ID -> its raw entity/root value(s), for child partitions to key off
}

// Execute runs plan to completion and returns the assembled response. ctx
// cancellation stops any partition dispatch that has not yet started; a
// partition already in flight runs to completion (its Fetcher call may
// itself be de-duplicated with an unrelated request that outlives ctx,
// drive-to-completion).
func (e *Engine) Execute(ctx context.Context, plan *solution.Plan) *ExecutionResult {
	r := &run{engine: e, plan: plan, data: map[string]any{}, results: map[int]any{}}

	levels := plan.Levels
	if plan.IsMutation && len(plan.MutationRootOrder) > 0 {
		r.runMutationRoots(ctx)
	}

	for _, level := range levels {
		g, gctx := errgroup.WithContext(ctx)
		for _, pid := range level {
			p := plan.Partitions[pid]
			if plan.IsMutation && p.ParentID < 0 {
				continue // already run in source order above
			}
			g.Go(func() error {
				r.runPartition(gctx, p)
				return nil
			})
		}
		_ = g.Wait() // partition failures are recorded as GraphQLErrors, never as hard errors
	}

	return &ExecutionResult{Data: r.data, Errors: r.errors}
}

// runMutationRoots executes every root mutation partition strictly in
// declaration order, each to completion before the next starts (mirroring
// MutationExecutedAfter chains); their descendants still join the normal
// leveled fan-out afterward.
func (r *run) runMutationRoots(ctx context.Context) {
	for _, pid := range r.plan.MutationRootOrder {
		r.runPartition(ctx, r.plan.Partitions[pid])
	}
}

func (r *run) runPartition(ctx context.Context, p *solution.Partition) {
	switch {
	case p.SubgraphID == schema.IntrospectionSubgraph:
		r.runLocalPartition(ctx, p)
	case p.ParentID < 0:
		r.runRootPartition(ctx, p)
	default:
		r.runEntityPartition(ctx, p)
	}
}

func (r *run) runLocalPartition(ctx context.Context, p *solution.Partition) {
	if r.engine.Local == nil {
		r.recordPartitionError(p, gqlerrors.InternalServerError, "introspection is disabled")
		return
	}
	value, errs := r.engine.Local.Resolve(ctx, p.Roots)
	r.mu.Lock()
	defer r.mu.Unlock()
	if obj, ok := value.(map[string]any); ok {
		mergeObject(r.data, p.AnchorPath, obj)
	}
	r.errors = append(r.errors, errs...)
}

func (r *run) runRootPartition(ctx context.Context, p *solution.Partition) {
	doc := buildRootDocument(r.engine.Schema, p, r.plan.IsMutation)
	resp, err := r.fetch(ctx, p, doc)
	if err != nil {
		r.recordFetchError(p, err)
		return
	}
	data, errs, err := decodeSubgraphResponse(resp)
	if err != nil {
		r.recordFetchError(p, err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[p.ID] = data
	if data != nil {
		mergeObject(r.data, p.AnchorPath, data)
	}
	r.appendSubgraphErrors(p, errs)
}

// runEntityPartition batches one subgraph call per parent object currently
// sitting at p's anchor path across the already-merged response tree,
// scattering each aliased result back to the object it was looked up for.
func (r *run) runEntityPartition(ctx context.Context, p *solution.Partition) {
	resolver := r.engine.Schema.ResolverByID(p.ResolverID)
	if resolver == nil {
		r.recordPartitionError(p, gqlerrors.OperationPlanningError, fmt.Sprintf("no resolver registered for partition %d", p.ID))
		return
	}

	r.mu.Lock()
	objects := collectObjectsAt(r.data, p.AnchorPath)
	r.mu.Unlock()
	if len(objects) == 0 {
		return
	}

	reps := make([]map[string]any, len(objects))
	for i, obj := range objects {
		rep := make(map[string]any, len(resolver.KeyFields))
		for _, key := range resolver.KeyFields.Names() {
			argName := resolver.ArgumentMapping[key]
			if argName == "" {
				argName = key
			}
			rep[argName] = obj[key]
		}
		reps[i] = rep
	}

	doc := buildEntityDocument(r.engine.Schema, resolver, p, reps)
	resp, err := r.fetch(ctx, p, doc)
	if err != nil {
		r.recordFetchError(p, err)
		return
	}
	data, errs, err := decodeSubgraphResponse(resp)
	if err != nil {
		r.recordFetchError(p, err)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, obj := range objects {
		alias := fmt.Sprintf("e%d", i)
		entity, _ := data[alias].(map[string]any)
		if entity == nil {
			continue
		}
		for k, v := range entity {
			obj[k] = v
		}
	}
	r.appendSubgraphErrors(p, errs)
}

func (r *run) fetch(ctx context.Context, p *solution.Partition, doc string) (subgraph.Response, error) {
	body, _ := json.Marshal(map[string]any{"query": doc})
	return r.engine.Fetcher.Fetch(ctx, subgraph.Request{
		SubgraphID: subgraph.ID(p.SubgraphID),
		Method:     "POST",
		Body:       body,
	})
}

type wireResponse struct {
	Data   map[string]any  `json:"data"`
	Errors []wireGraphQLError `json:"errors"`
}

type wireGraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path"`
	Extensions map[string]any `json:"extensions"`
}

func decodeSubgraphResponse(resp subgraph.Response) (map[string]any, []wireGraphQLError, error) {
	if resp.StatusCode != 0 && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		return nil, nil, fmt.Errorf("subgraph responded with status %d", resp.StatusCode)
	}
	var w wireResponse
	if err := json.Unmarshal(resp.Body, &w); err != nil {
		return nil, nil, fmt.Errorf("decoding subgraph response: %w", err)
	}
	return w.Data, w.Errors, nil
}

func (r *run) recordFetchError(p *solution.Partition, err error) {
	code := gqlerrors.SubgraphRequestError
	if _, ok := err.(*subgraph.TransportError); !ok {
		code = gqlerrors.SubgraphError
	}
	r.recordPartitionError(p, code, err.Error())
}

func (r *run) recordPartitionError(p *solution.Partition, code gqlerrors.Code, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, GraphQLError{
		Message:    message,
		Path:       anchorAsPath(p.AnchorPath),
		Extensions: (&gqlerrors.Error{Code: code}).Extensions(),
	})
	// Null out the fields this partition was responsible for on every object
	// at its anchor (the response root itself for a root partition, since
	// collectObjectsAt with an empty path returns r.data) rather than the
	// whole anchor, so sibling data other partitions already merged in survives.
	for _, obj := range collectObjectsAt(r.data, p.AnchorPath) {
		for _, root := range p.Roots {
			obj[root.ResponseName] = nil
		}
	}
}

func (r *run) appendSubgraphErrors(p *solution.Partition, errs []wireGraphQLError) {
	for _, e := range errs {
		path := anchorAsPath(p.AnchorPath)
		for _, seg := range e.Path {
			path = append(path, seg)
		}
		ext := map[string]any{}
		for k, v := range e.Extensions {
			ext[k] = v
		}
		ext["code"] = string(gqlerrors.SubgraphError)
		r.errors = append(r.errors, GraphQLError{Message: e.Message, Path: path, Extensions: ext})
	}
}

func anchorAsPath(anchor []string) Path {
	out := make(Path, len(anchor))
	for i, s := range anchor {
		out[i] = s
	}
	return out
}
