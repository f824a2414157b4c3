package solution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	binder "github.com/hanpama/federon/internal/binder"
	language "github.com/hanpama/federon/internal/language"
	opgraph "github.com/hanpama/federon/internal/opgraph"
	schema "github.com/hanpama/federon/internal/schema"
	steiner "github.com/hanpama/federon/internal/steiner"
)

// buildEntityLookupGraph wires Query.product (PRODUCTS) -> Product.name
// (also PRODUCTS, rides along) and Product.reviewCount/reviewSummary, both
// resolved by a REVIEWS entity lookup keyed on id: the canonical shape a
// federation jump takes.
func buildEntityLookupGraph(t *testing.T) *opgraph.Graph {
	t.Helper()

	productField := &schema.Field{
		Name: "product",
		Type: schema.NamedType("Product"),
		Resolutions: []*schema.FieldResolution{
			{ResolverID: "root:PRODUCTS"},
		},
	}
	nameField := &schema.Field{
		Name: "name",
		Type: schema.NamedType("String"),
		Resolutions: []*schema.FieldResolution{
			{ResolverID: "root:PRODUCTS"},
		},
	}
	reviewCountField := &schema.Field{
		Name: "reviewCount",
		Type: schema.NamedType("Int"),
		Resolutions: []*schema.FieldResolution{
			{ResolverID: "lookup:Product:REVIEWS", Requires: schema.FieldSet{{Name: "id"}}},
		},
	}
	reviewSummaryField := &schema.Field{
		Name: "reviewSummary",
		Type: schema.NamedType("String"),
		Resolutions: []*schema.FieldResolution{
			{ResolverID: "lookup:Product:REVIEWS", Requires: schema.FieldSet{{Name: "id"}}},
		},
	}

	queryType := &schema.Type{Name: "Query", Kind: schema.TypeKindObject, Fields: []*schema.Field{productField}}
	productType := &schema.Type{Name: "Product", Kind: schema.TypeKindObject, Fields: []*schema.Field{nameField, reviewCountField, reviewSummaryField}}

	s := &schema.Schema{
		QueryType: "Query",
		Types: map[string]*schema.Type{
			"Query":   queryType,
			"Product": productType,
		},
		Resolvers: map[schema.ResolverID]*schema.Resolver{
			"root:PRODUCTS": {ID: "root:PRODUCTS", Kind: schema.ResolverKindRootQuery, SubgraphID: "PRODUCTS"},
			"lookup:Product:REVIEWS": {
				ID: "lookup:Product:REVIEWS", Kind: schema.ResolverKindEntityLookup,
				SubgraphID: "REVIEWS", EntityType: "Product", KeyFields: schema.FieldSet{{Name: "id"}},
			},
		},
	}

	op := &binder.BoundOperation{
		Type:     language.Query,
		RootType: queryType,
		Selection: &binder.BoundSelectionSet{
			Groups: []*binder.BoundFieldGroup{
				{
					ResponseName: "product",
					Name:         "product",
					FieldDef:     productField,
					Selection: &binder.BoundSelectionSet{
						Groups: []*binder.BoundFieldGroup{
							{ResponseName: "name", Name: "name", FieldDef: nameField},
							{ResponseName: "reviewCount", Name: "reviewCount", FieldDef: reviewCountField},
							{ResponseName: "reviewSummary", Name: "reviewSummary", FieldDef: reviewSummaryField},
						},
					},
				},
			},
		},
	}

	return opgraph.Build(s, op)
}

func findChild(n *SelectionNode, name string) *SelectionNode {
	for _, c := range n.Children {
		if c.ResponseName == name {
			return c
		}
	}
	return nil
}

func TestBuild_SplitsAcrossPartitionsOnResolverChange(t *testing.T) {
	g := buildEntityLookupGraph(t)
	sol, err := steiner.Solve(g)
	require.NoError(t, err)

	plan := Build(g, sol, false)
	require.Len(t, plan.Partitions, 2)

	root := plan.Partitions[0]
	assert.Equal(t, schema.ResolverID("root:PRODUCTS"), root.ResolverID)
	assert.Equal(t, -1, root.ParentID)

	lookup := plan.Partitions[1]
	assert.Equal(t, schema.ResolverID("lookup:Product:REVIEWS"), lookup.ResolverID)
	assert.Equal(t, 0, lookup.ParentID)
	assert.Equal(t, []int{0}, lookup.DependsOn)
	assert.Equal(t, []string{"id"}, lookup.KeyFields)
	assert.Equal(t, []string{"product"}, lookup.AnchorPath)
}

func TestBuild_KeyFieldIsNestedUnderTriggeringFieldNotAtPartitionRoot(t *testing.T) {
	g := buildEntityLookupGraph(t)
	sol, err := steiner.Solve(g)
	require.NoError(t, err)

	plan := Build(g, sol, false)
	root := plan.Partitions[0]

	require.Len(t, root.Roots, 1)
	product := root.Roots[0]
	assert.Equal(t, "product", product.ResponseName)

	// The id key field REVIEWS needs must be requested as a sibling of
	// "name" inside "product", not as a stray root-level field.
	idField := findChild(product, "id")
	require.NotNil(t, idField, "expected id to be nested under product")
	assert.NotNil(t, findChild(product, "name"))

	for _, r := range root.Roots {
		assert.NotEqual(t, "id", r.ResponseName, "id must not be attached at the partition document root")
	}
}

func TestBuild_LookupPartitionRootsAreTheRequestedFieldsThemselves(t *testing.T) {
	g := buildEntityLookupGraph(t)
	sol, err := steiner.Solve(g)
	require.NoError(t, err)

	plan := Build(g, sol, false)
	lookup := plan.Partitions[1]

	names := map[string]bool{}
	for _, r := range lookup.Roots {
		names[r.ResponseName] = true
	}
	assert.True(t, names["reviewCount"])
	assert.True(t, names["reviewSummary"])
}

func TestFinalize_LevelizesByDependency(t *testing.T) {
	g := buildEntityLookupGraph(t)
	sol, err := steiner.Solve(g)
	require.NoError(t, err)

	plan := Finalize(Build(g, sol, false), false)

	require.Len(t, plan.Levels, 2)
	assert.Equal(t, []int{0}, plan.Levels[0])
	assert.Equal(t, []int{1}, plan.Levels[1])
	assert.False(t, plan.IsMutation)
	assert.Nil(t, plan.MutationRootOrder)
}

// buildRequiresBeyondKeyGraph wires a lookup resolver whose field needs a
// sibling scalar the parent partition already has, beyond the entity's
// base @key — the common shape of a real @requires directive.
func buildRequiresBeyondKeyGraph(t *testing.T) *opgraph.Graph {
	t.Helper()

	priceField := &schema.Field{
		Name: "price",
		Type: schema.NamedType("Float"),
		Resolutions: []*schema.FieldResolution{
			{ResolverID: "root:PRODUCTS"},
		},
	}
	shippingEstimateField := &schema.Field{
		Name: "shippingEstimate",
		Type: schema.NamedType("Float"),
		Resolutions: []*schema.FieldResolution{
			{ResolverID: "lookup:Product:SHIPPING", Requires: schema.FieldSet{{Name: "id"}, {Name: "price"}}},
		},
	}

	queryType := &schema.Type{Name: "Query", Kind: schema.TypeKindObject, Fields: []*schema.Field{{
		Name: "product", Type: schema.NamedType("Product"),
		Resolutions: []*schema.FieldResolution{{ResolverID: "root:PRODUCTS"}},
	}}}
	productType := &schema.Type{Name: "Product", Kind: schema.TypeKindObject, Fields: []*schema.Field{priceField, shippingEstimateField}}

	s := &schema.Schema{
		QueryType: "Query",
		Types:     map[string]*schema.Type{"Query": queryType, "Product": productType},
		Resolvers: map[schema.ResolverID]*schema.Resolver{
			"root:PRODUCTS": {ID: "root:PRODUCTS", Kind: schema.ResolverKindRootQuery, SubgraphID: "PRODUCTS"},
			"lookup:Product:SHIPPING": {
				ID: "lookup:Product:SHIPPING", Kind: schema.ResolverKindEntityLookup,
				SubgraphID: "SHIPPING", EntityType: "Product", KeyFields: schema.FieldSet{{Name: "id"}},
			},
		},
	}

	op := &binder.BoundOperation{
		Type:     language.Query,
		RootType: queryType,
		Selection: &binder.BoundSelectionSet{
			Groups: []*binder.BoundFieldGroup{
				{
					ResponseName: "product", Name: "product", FieldDef: queryType.Fields[0],
					Selection: &binder.BoundSelectionSet{
						Groups: []*binder.BoundFieldGroup{
							{ResponseName: "shippingEstimate", Name: "shippingEstimate", FieldDef: shippingEstimateField},
						},
					},
				},
			},
		},
	}
	return opgraph.Build(s, op)
}

func TestBuild_PartitionKeyFieldsIncludeRequiresBeyondTheEntityKey(t *testing.T) {
	g := buildRequiresBeyondKeyGraph(t)
	sol, err := steiner.Solve(g)
	require.NoError(t, err)

	plan := Build(g, sol, false)
	require.Len(t, plan.Partitions, 2)

	shipping := plan.Partitions[1]
	assert.Equal(t, schema.ResolverID("lookup:Product:SHIPPING"), shipping.ResolverID)
	assert.ElementsMatch(t, []string{"id", "price"}, shipping.KeyFields)

	product := plan.Partitions[0].Roots[0]
	assert.NotNil(t, findChild(product, "price"), "price must be requested from the parent partition")
}

func buildTwoRootMutationGraph(t *testing.T) *opgraph.Graph {
	t.Helper()

	m1 := &schema.Field{Name: "m1", Type: schema.NamedType("String"), Resolutions: []*schema.FieldResolution{{ResolverID: "root:A"}}}
	m2 := &schema.Field{Name: "m2", Type: schema.NamedType("String"), Resolutions: []*schema.FieldResolution{{ResolverID: "root:B"}}}
	mutationType := &schema.Type{Name: "Mutation", Kind: schema.TypeKindObject, Fields: []*schema.Field{m1, m2}}

	s := &schema.Schema{
		MutationType: "Mutation",
		Types:        map[string]*schema.Type{"Mutation": mutationType},
		Resolvers: map[schema.ResolverID]*schema.Resolver{
			"root:A": {ID: "root:A", Kind: schema.ResolverKindRootQuery, SubgraphID: "A"},
			"root:B": {ID: "root:B", Kind: schema.ResolverKindRootQuery, SubgraphID: "B"},
		},
	}

	op := &binder.BoundOperation{
		Type:     language.Mutation,
		RootType: mutationType,
		Selection: &binder.BoundSelectionSet{
			Groups: []*binder.BoundFieldGroup{
				{ResponseName: "m1", Name: "m1", FieldDef: m1},
				{ResponseName: "m2", Name: "m2", FieldDef: m2},
			},
		},
	}
	return opgraph.Build(s, op)
}

func TestFinalize_MutationRootOrderFollowsDeclarationOrder(t *testing.T) {
	g := buildTwoRootMutationGraph(t)
	sol, err := steiner.Solve(g)
	require.NoError(t, err)

	plan := Finalize(Build(g, sol, true), true)

	require.Len(t, plan.Partitions, 2)
	assert.True(t, plan.IsMutation)
	assert.Equal(t, []int{0, 1}, plan.MutationRootOrder)
	assert.Equal(t, [][]int{{0, 1}}, plan.Levels)
}

// buildThreeSameResolverMutationGraph wires three mutation root fields all
// resolved by the same subgraph, the shape spec §8 scenario S7 describes:
// a, b, c all on S must still yield three sequential partitions, not one
// merged call, so their side effects run in declaration order.
func buildThreeSameResolverMutationGraph(t *testing.T) *opgraph.Graph {
	t.Helper()

	a := &schema.Field{Name: "a", Type: schema.NamedType("String"), Resolutions: []*schema.FieldResolution{{ResolverID: "root:S"}}}
	b := &schema.Field{Name: "b", Type: schema.NamedType("String"), Resolutions: []*schema.FieldResolution{{ResolverID: "root:S"}}}
	c := &schema.Field{Name: "c", Type: schema.NamedType("String"), Resolutions: []*schema.FieldResolution{{ResolverID: "root:S"}}}
	mutationType := &schema.Type{Name: "Mutation", Kind: schema.TypeKindObject, Fields: []*schema.Field{a, b, c}}

	s := &schema.Schema{
		MutationType: "Mutation",
		Types:        map[string]*schema.Type{"Mutation": mutationType},
		Resolvers: map[schema.ResolverID]*schema.Resolver{
			"root:S": {ID: "root:S", Kind: schema.ResolverKindRootQuery, SubgraphID: "S"},
		},
	}

	op := &binder.BoundOperation{
		Type:     language.Mutation,
		RootType: mutationType,
		Selection: &binder.BoundSelectionSet{
			Groups: []*binder.BoundFieldGroup{
				{ResponseName: "a", Name: "a", FieldDef: a},
				{ResponseName: "b", Name: "b", FieldDef: b},
				{ResponseName: "c", Name: "c", FieldDef: c},
			},
		},
	}
	return opgraph.Build(s, op)
}

func TestFinalize_SameResolverMutationRootsGetSeparatePartitions(t *testing.T) {
	g := buildThreeSameResolverMutationGraph(t)
	sol, err := steiner.Solve(g)
	require.NoError(t, err)

	plan := Finalize(Build(g, sol, true), true)

	require.Len(t, plan.Partitions, 3)
	for _, p := range plan.Partitions {
		assert.Equal(t, schema.ResolverID("root:S"), p.ResolverID)
	}
	assert.Equal(t, []int{0, 1, 2}, plan.MutationRootOrder)
	assert.Equal(t, -1, plan.Partitions[0].MutationExecutedAfter)
	assert.Equal(t, 0, plan.Partitions[1].MutationExecutedAfter)
	assert.Equal(t, 1, plan.Partitions[2].MutationExecutedAfter)
}
