package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	schema "github.com/hanpama/federon/internal/schema"
	solution "github.com/hanpama/federon/internal/solution"
	subgraph "github.com/hanpama/federon/internal/subgraph"
)

// fakeFetcher dispatches to a handler keyed by subgraph id so a test can
// script each partition's backing subgraph's response independently.
type fakeFetcher struct {
	handlers map[subgraph.ID]func(req subgraph.Request) (subgraph.Response, error)
	calls    []subgraph.Request
}

func (f *fakeFetcher) Fetch(ctx context.Context, req subgraph.Request) (subgraph.Response, error) {
	f.calls = append(f.calls, req)
	h, ok := f.handlers[req.SubgraphID]
	if !ok {
		return subgraph.Response{}, assertUnreachable(req.SubgraphID)
	}
	return h(req)
}

func assertUnreachable(id subgraph.ID) error {
	panic("no handler registered for subgraph " + string(id))
}

func jsonBody(body string) subgraph.Response {
	return subgraph.Response{StatusCode: 200, Body: []byte(body)}
}

func TestEngine_Execute_RootThenEntityLookup(t *testing.T) {
	sch := &schema.Schema{
		Resolvers: map[schema.ResolverID]*schema.Resolver{
			"products-reviews": {
				ID: "products-reviews", Kind: schema.ResolverKindEntityLookup,
				SubgraphID: "reviews", EntityType: "Product",
				KeyFields:       schema.FieldSet{{Name: "upc"}},
				ArgumentMapping: map[string]string{"upc": "upc"},
				LookupField:     "productByUpc",
			},
		},
	}

	plan := &solution.Plan{
		Partitions: []*solution.Partition{
			{
				ID: 0, SubgraphID: "products", ParentID: -1,
				Roots: []*solution.SelectionNode{
					{
						ResponseName: "products", Name: "products",
						Children: []*solution.SelectionNode{
							{ResponseName: "upc", Name: "upc"},
							{ResponseName: "name", Name: "name"},
						},
					},
				},
			},
			{
				ID: 1, SubgraphID: "reviews", ResolverID: "products-reviews",
				ParentID: 0, AnchorPath: []string{"products"}, KeyFields: []string{"upc"},
				DependsOn: []int{0},
				Roots: []*solution.SelectionNode{
					{ResponseName: "reviews", Name: "reviews"},
				},
			},
		},
		Levels: [][]int{{0}, {1}},
	}

	fetcher := &fakeFetcher{handlers: map[subgraph.ID]func(subgraph.Request) (subgraph.Response, error){
		"products": func(req subgraph.Request) (subgraph.Response, error) {
			return jsonBody(`{"data":{"products":[{"upc":"A1","name":"Widget"},{"upc":"A2","name":"Gadget"}]}}`), nil
		},
		"reviews": func(req subgraph.Request) (subgraph.Response, error) {
			return jsonBody(`{"data":{"e0":{"reviews":["great"]},"e1":{"reviews":["meh"]}}}`), nil
		},
	}}

	eng := New(sch, fetcher)
	result := eng.Execute(context.Background(), plan)

	require.Empty(t, result.Errors)
	data, ok := result.Data.(map[string]any)
	require.True(t, ok)
	products, ok := data["products"].([]any)
	require.True(t, ok)
	require.Len(t, products, 2)

	p0 := products[0].(map[string]any)
	assert.Equal(t, "Widget", p0["name"])
	assert.Equal(t, []any{"great"}, p0["reviews"])

	p1 := products[1].(map[string]any)
	assert.Equal(t, "Gadget", p1["name"])
	assert.Equal(t, []any{"meh"}, p1["reviews"])
}

func TestEngine_Execute_SubgraphTransportErrorNullsAnchorAndRecordsError(t *testing.T) {
	sch := &schema.Schema{Resolvers: map[schema.ResolverID]*schema.Resolver{}}
	plan := &solution.Plan{
		Partitions: []*solution.Partition{
			{ID: 0, SubgraphID: "products", ParentID: -1, Roots: []*solution.SelectionNode{
				{ResponseName: "product", Name: "product"},
			}},
		},
		Levels: [][]int{{0}},
	}
	fetcher := &fakeFetcher{handlers: map[subgraph.ID]func(subgraph.Request) (subgraph.Response, error){
		"products": func(req subgraph.Request) (subgraph.Response, error) {
			return subgraph.Response{}, &subgraph.TransportError{Err: assertUnreachableErr("boom")}
		},
	}}

	eng := New(sch, fetcher)
	result := eng.Execute(context.Background(), plan)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "SUBGRAPH_REQUEST_ERROR", result.Errors[0].Extensions["code"])
	data := result.Data.(map[string]any)
	val, ok := data["product"]
	require.True(t, ok)
	assert.Nil(t, val)
}

type assertUnreachableErr string

func (e assertUnreachableErr) Error() string { return string(e) }
