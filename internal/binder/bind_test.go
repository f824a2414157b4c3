package binder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	language "github.com/hanpama/federon/internal/language"
	schema "github.com/hanpama/federon/internal/schema"
	supergraph "github.com/hanpama/federon/internal/supergraph"
)

const testSDL = `
directive @join__graph(name: String!, url: String!) on ENUM_VALUE
directive @join__type(graph: join__Graph!, key: String) repeatable on OBJECT | INTERFACE
directive @join__field(graph: join__Graph!, requires: String, provides: String) repeatable on FIELD_DEFINITION
directive @composite__lookup(graph: join__Graph!, key: String, map: [String!]) on FIELD_DEFINITION
directive @composite__is(field: String!) on ARGUMENT_DEFINITION

enum join__Graph {
  CATALOG @join__graph(name: "catalog", url: "http://catalog.internal")
}

interface Node @join__type(graph: CATALOG) {
  id: ID!
}

type Product implements Node @join__type(graph: CATALOG, key: "id") {
  id: ID! @join__field(graph: CATALOG)
  name: String @join__field(graph: CATALOG)
  price: Float @join__field(graph: CATALOG)
}

type Category implements Node @join__type(graph: CATALOG, key: "id") {
  id: ID! @join__field(graph: CATALOG)
  title: String @join__field(graph: CATALOG)
}

type Query @join__type(graph: CATALOG) {
  node(id: ID!): Node @join__field(graph: CATALOG)
  product(id: ID!): Product @join__field(graph: CATALOG)
  products: [Product!]! @join__field(graph: CATALOG)
}
`

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := supergraph.LoadSDL("test.graphql", testSDL)
	require.NoError(t, err)
	return s
}

func bindQuery(t *testing.T, s *schema.Schema, query string, vars map[string]any) (*BoundOperation, []*Error) {
	t.Helper()
	doc, err := language.ParseQuery(query)
	require.NoError(t, err)
	return Bind(s, doc, "", vars, Limits{})
}

func TestBind_SimpleQueryBindsFieldDefs(t *testing.T) {
	s := testSchema(t)
	op, errs := bindQuery(t, s, `{ product(id: "1") { id name } }`, nil)
	require.Empty(t, errs)
	require.NotNil(t, op)

	require.Len(t, op.Selection.Groups, 1)
	product := op.Selection.Groups[0]
	assert.Equal(t, "product", product.ResponseName)
	require.NotNil(t, product.FieldDef)
	assert.Equal(t, map[string]any{"id": "1"}, product.Arguments)

	require.Len(t, product.Selection.Groups, 2)
	assert.Equal(t, "id", product.Selection.Groups[0].ResponseName)
	assert.Equal(t, "name", product.Selection.Groups[1].ResponseName)
}

func TestBind_AliasesGroupByResponseName(t *testing.T) {
	s := testSchema(t)
	op, errs := bindQuery(t, s, `{ p1: product(id: "1") { id } p2: product(id: "2") { id } }`, nil)
	require.Empty(t, errs)

	require.Len(t, op.Selection.Groups, 2)
	assert.Equal(t, "p1", op.Selection.Groups[0].ResponseName)
	assert.Equal(t, "p2", op.Selection.Groups[1].ResponseName)
}

func TestBind_DuplicateFieldSameResponseNameMerges(t *testing.T) {
	s := testSchema(t)
	op, errs := bindQuery(t, s, `{ product(id: "1") { id } product(id: "1") { name } }`, nil)
	require.Empty(t, errs)

	require.Len(t, op.Selection.Groups, 1)
	require.Len(t, op.Selection.Groups[0].Selection.Groups, 2)
}

func TestBind_UnknownFieldIsError(t *testing.T) {
	s := testSchema(t)
	_, errs := bindQuery(t, s, `{ product(id: "1") { bogus } }`, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, UnknownField, errs[0].Code)
}

func TestBind_LeafWithSelectionSetIsError(t *testing.T) {
	s := testSchema(t)
	_, errs := bindQuery(t, s, `{ product(id: "1") { name { x } } }`, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, CannotHaveSelectionSet, errs[0].Code)
}

func TestBind_CompositeWithoutSelectionSetIsError(t *testing.T) {
	s := testSchema(t)
	_, errs := bindQuery(t, s, `{ product(id: "1") }`, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, LeafMustBeAScalarOrEnum, errs[0].Code)
}

func TestBind_InterfaceFragmentBecomesConditionalBranch(t *testing.T) {
	s := testSchema(t)
	op, errs := bindQuery(t, s, `{
		node(id: "1") {
			id
			... on Product { name price }
			... on Category { title }
		}
	}`, nil)
	require.Empty(t, errs)

	node := op.Selection.Groups[0]
	require.Len(t, node.Selection.Groups, 1) // id
	require.Len(t, node.Selection.Conditional, 2)

	byType := map[string]*BoundConditionalSelection{}
	for _, c := range node.Selection.Conditional {
		byType[c.TypeCondition] = c
	}
	require.Contains(t, byType, "Product")
	require.Contains(t, byType, "Category")
	assert.Equal(t, []string{"Product"}, byType["Product"].PossibleTypes)
	require.Len(t, byType["Product"].Selection.Groups, 2)
}

func TestBind_DisjointTypeConditionIsError(t *testing.T) {
	s := testSchema(t)
	_, errs := bindQuery(t, s, `{ product(id: "1") { ... on Category { title } } }`, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, DisjointTypeCondition, errs[0].Code)
}

func TestBind_UnknownFragmentTypeConditionIsError(t *testing.T) {
	s := testSchema(t)
	_, errs := bindQuery(t, s, `{ node(id: "1") { ... on Bogus { id } } }`, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, UnknownType, errs[0].Code)
}

func TestBind_UnionStyleDirectFieldOnInterfaceIsAllowed(t *testing.T) {
	// Selecting a field an interface actually declares is fine without a
	// fragment; this is not the UNION_HAVE_NO_FIELDS case.
	s := testSchema(t)
	_, errs := bindQuery(t, s, `{ node(id: "1") { id } }`, nil)
	require.Empty(t, errs)
}

func TestBind_SkipDirectiveExcludesField(t *testing.T) {
	s := testSchema(t)
	op, errs := bindQuery(t, s, `{ product(id: "1") { id name @skip(if: true) } }`, nil)
	require.Empty(t, errs)
	require.Len(t, op.Selection.Groups[0].Selection.Groups, 1)
	assert.Equal(t, "id", op.Selection.Groups[0].Selection.Groups[0].ResponseName)
}

func TestBind_IncludeDirectiveFalseExcludesField(t *testing.T) {
	s := testSchema(t)
	op, errs := bindQuery(t, s, `{ product(id: "1") { id name @include(if: false) } }`, nil)
	require.Empty(t, errs)
	require.Len(t, op.Selection.Groups[0].Selection.Groups, 1)
}

func TestBind_FragmentSpreadCycleIsError(t *testing.T) {
	s := testSchema(t)
	_, errs := bindQuery(t, s, `
		{ product(id: "1") { ...A } }
		fragment A on Product { ...B }
		fragment B on Product { ...A }
	`, nil)
	require.NotEmpty(t, errs)
	assert.Equal(t, FragmentCycle, errs[len(errs)-1].Code)
}

func TestBind_UnknownFragmentSpreadIsError(t *testing.T) {
	s := testSchema(t)
	_, errs := bindQuery(t, s, `{ product(id: "1") { ...Missing } }`, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, UnknownFragment, errs[0].Code)
}

func TestBind_UnusedVariableIsError(t *testing.T) {
	s := testSchema(t)
	doc, err := language.ParseQuery(`query($id: ID!) { products { id } }`)
	require.NoError(t, err)
	_, errs := Bind(s, doc, "", map[string]any{"id": "1"}, Limits{})
	require.Len(t, errs, 1)
	assert.Equal(t, UnusedVariable, errs[0].Code)
}

func TestBind_VariableUsedInArgumentIsBound(t *testing.T) {
	s := testSchema(t)
	doc, err := language.ParseQuery(`query($id: ID!) { product(id: $id) { id } }`)
	require.NoError(t, err)
	op, errs := Bind(s, doc, "", map[string]any{"id": "42"}, Limits{})
	require.Empty(t, errs)
	assert.Equal(t, map[string]any{"id": "42"}, op.Selection.Groups[0].Arguments)
}

func TestBind_TooManyFieldsIsError(t *testing.T) {
	s := testSchema(t)
	_, errs := bindQuery(t, s, `{ product(id: "1") { id name price } }`, nil)
	require.Empty(t, errs)

	doc, err := language.ParseQuery(`{ product(id: "1") { id name price } }`)
	require.NoError(t, err)
	_, errs = Bind(s, doc, "", nil, Limits{MaxFields: 2})
	require.NotEmpty(t, errs)
	assert.Equal(t, TooManyFields, errs[len(errs)-1].Code)
}

func TestBind_NoMutationDefinedIsError(t *testing.T) {
	s := testSchema(t)
	doc, err := language.ParseQuery(`mutation { doesNotExist }`)
	require.NoError(t, err)
	_, errs := Bind(s, doc, "", nil, Limits{})
	require.Len(t, errs, 1)
	assert.Equal(t, NoMutationDefined, errs[0].Code)
}

func TestBind_TypenameFieldNeedsNoFieldDef(t *testing.T) {
	s := testSchema(t)
	op, errs := bindQuery(t, s, `{ product(id: "1") { __typename id } }`, nil)
	require.Empty(t, errs)
	typename := op.Selection.Groups[0].Selection.Groups[0]
	assert.Equal(t, "__typename", typename.Name)
	assert.Nil(t, typename.FieldDef)
}
