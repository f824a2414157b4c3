package introspection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	schema "github.com/hanpama/federon/internal/schema"
	solution "github.com/hanpama/federon/internal/solution"
)

func baseSchema() *schema.Schema {
	queryFields := []*schema.Field{{Name: "hello", Type: schema.NamedType("String")}}
	return &schema.Schema{
		QueryType: "Query",
		Types: map[string]*schema.Type{
			"Query":  {Name: "Query", Kind: schema.TypeKindObject, Fields: queryFields},
			"String": {Name: "String", Kind: schema.TypeKindScalar},
		},
	}
}

func TestExtendSchema_AddsIntrospectionFieldsAndResolver(t *testing.T) {
	base := baseSchema()
	extended := ExtendSchema(base)

	require.NotNil(t, extended.Types["__Schema"])
	require.NotNil(t, extended.Types["__Type"])

	query := extended.GetQueryType()
	schemaField := query.FieldByName("__schema")
	require.NotNil(t, schemaField)
	require.Len(t, schemaField.Resolutions, 1)
	assert.Equal(t, schema.ResolverID("introspection"), schemaField.Resolutions[0].ResolverID)

	resolver := extended.ResolverByID("introspection")
	require.NotNil(t, resolver)
	assert.Equal(t, schema.ResolverKindIntrospection, resolver.Kind)
	assert.Equal(t, schema.IntrospectionSubgraph, resolver.SubgraphID)

	// The original schema's own Query type is left untouched.
	assert.Nil(t, base.GetQueryType().FieldByName("__schema"))
}

func TestResolver_Resolve_SchemaQueryType(t *testing.T) {
	extended := ExtendSchema(baseSchema())
	r := NewResolver(extended)

	roots := []*solution.SelectionNode{
		{
			ResponseName: "__schema", Name: "__schema",
			Children: []*solution.SelectionNode{
				{
					ResponseName: "queryType", Name: "queryType",
					Children: []*solution.SelectionNode{{ResponseName: "name", Name: "name"}},
				},
			},
		},
	}

	data, errs := r.Resolve(context.Background(), roots)
	require.Empty(t, errs)

	out := data.(map[string]any)
	schemaObj := out["__schema"].(map[string]any)
	queryType := schemaObj["queryType"].(map[string]any)
	assert.Equal(t, "Query", queryType["name"])
}

func TestResolver_Resolve_TypeLookupByName(t *testing.T) {
	extended := ExtendSchema(baseSchema())
	r := NewResolver(extended)

	roots := []*solution.SelectionNode{
		{
			ResponseName: "t", Name: "__type", Arguments: map[string]any{"name": "Query"},
			Children: []*solution.SelectionNode{
				{ResponseName: "name", Name: "name"},
				{
					ResponseName: "fields", Name: "fields",
					Children: []*solution.SelectionNode{{ResponseName: "name", Name: "name"}},
				},
			},
		},
	}

	data, errs := r.Resolve(context.Background(), roots)
	require.Empty(t, errs)

	out := data.(map[string]any)
	typeObj := out["t"].(map[string]any)
	assert.Equal(t, "Query", typeObj["name"])
	fields := typeObj["fields"].([]any)
	require.Len(t, fields, 1)
	assert.Equal(t, "hello", fields[0].(map[string]any)["name"])
}

func TestResolver_Resolve_TypeLookupMissingNameIsNull(t *testing.T) {
	extended := ExtendSchema(baseSchema())
	r := NewResolver(extended)

	roots := []*solution.SelectionNode{
		{ResponseName: "t", Name: "__type", Arguments: map[string]any{"name": "DoesNotExist"}},
	}

	data, errs := r.Resolve(context.Background(), roots)
	require.Empty(t, errs)

	out := data.(map[string]any)
	val, ok := out["t"]
	require.True(t, ok)
	assert.Nil(t, val)
}
