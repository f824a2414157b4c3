package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeRef_IsNonNull(t *testing.T) {
	assert.True(t, NonNullType(NamedType("String")).IsNonNull())
	assert.False(t, NamedType("String").IsNonNull())
	assert.False(t, (*TypeRef)(nil).IsNonNull())
}

func TestTypeRef_IsList(t *testing.T) {
	assert.True(t, ListType(NamedType("String")).IsList())
	assert.True(t, NonNullType(ListType(NamedType("String"))).IsList())
	assert.False(t, NamedType("String").IsList())
	assert.False(t, NonNullType(NamedType("String")).IsList())
}

func TestTypeRef_Unwrap(t *testing.T) {
	inner := NamedType("String")
	assert.Same(t, inner, NonNullType(inner).Unwrap())
	assert.Same(t, inner, ListType(inner).Unwrap())
	assert.Same(t, inner, inner.Unwrap())
}

func TestTypeRef_GetNamedType(t *testing.T) {
	assert.Equal(t, "String", NonNullType(ListType(NamedType("String"))).GetNamedType())
	assert.Equal(t, "String", NamedType("String").GetNamedType())
	assert.Equal(t, "", (*TypeRef)(nil).GetNamedType())
}

func TestTypeRef_WrappingDepth(t *testing.T) {
	assert.Equal(t, 0, NamedType("String").WrappingDepth())
	assert.Equal(t, 1, NonNullType(NamedType("String")).WrappingDepth())
	assert.Equal(t, 3, NonNullType(ListType(NonNullType(NamedType("String")))).WrappingDepth())
}

func TestPackageLevelHelpers_DelegateToTypeRefMethods(t *testing.T) {
	ty := NonNullType(ListType(NamedType("ID")))
	assert.True(t, IsNonNull(ty))
	assert.True(t, IsList(ty))
	assert.Equal(t, "ID", GetNamedType(ty))
	assert.Equal(t, ListType(NamedType("ID")), Unwrap(ty))

	assert.False(t, IsNonNull(nil))
	assert.False(t, IsList(nil))
}

func TestFieldSet_Names(t *testing.T) {
	fs := FieldSet{{Name: "id"}, {Name: "sku", Sub: FieldSet{{Name: "region"}}}}
	assert.Equal(t, []string{"id", "sku"}, fs.Names())
	assert.Equal(t, []string{}, FieldSet(nil).Names())
}

func TestSchema_ResolverByID(t *testing.T) {
	s := &Schema{Resolvers: map[ResolverID]*Resolver{
		"root:PRODUCTS": {ID: "root:PRODUCTS", Kind: ResolverKindRootQuery},
	}}
	assert.Equal(t, ResolverID("root:PRODUCTS"), s.ResolverByID("root:PRODUCTS").ID)
	assert.Nil(t, s.ResolverByID("missing"))
}

func TestSchema_RootTypeGetters(t *testing.T) {
	query := &Type{Name: "Query", Kind: TypeKindObject}
	mutation := &Type{Name: "Mutation", Kind: TypeKindObject}
	s := &Schema{
		QueryType:    "Query",
		MutationType: "Mutation",
		Types:        map[string]*Type{"Query": query, "Mutation": mutation},
	}
	assert.Same(t, query, s.GetQueryType())
	assert.Same(t, mutation, s.GetMutationType())
	assert.Nil(t, s.GetSubscriptionType())
}

func TestSchema_IsComposite(t *testing.T) {
	s := &Schema{Types: map[string]*Type{
		"Product":  {Name: "Product", Kind: TypeKindObject},
		"Node":     {Name: "Node", Kind: TypeKindInterface},
		"Search":   {Name: "Search", Kind: TypeKindUnion},
		"Status":   {Name: "Status", Kind: TypeKindEnum},
		"String_":  {Name: "String_", Kind: TypeKindScalar},
	}}
	assert.True(t, s.IsComposite("Product"))
	assert.True(t, s.IsComposite("Node"))
	assert.True(t, s.IsComposite("Search"))
	assert.False(t, s.IsComposite("Status"))
	assert.False(t, s.IsComposite("String_"))
	assert.False(t, s.IsComposite("Missing"))
}

func TestType_FieldByName(t *testing.T) {
	name := &Field{Name: "name"}
	price := &Field{Name: "price"}
	ty := &Type{Name: "Product", Fields: []*Field{name, price}}

	assert.Same(t, name, ty.FieldByName("name"))
	assert.Same(t, price, ty.FieldByName("price"))
	assert.Nil(t, ty.FieldByName("__typename"))
	assert.Nil(t, ty.FieldByName("missing"))
}

func TestType_PossibleTypeIndex_BeforeFinalizeIsAlwaysMinusOne(t *testing.T) {
	ty := &Type{Name: "Node", Kind: TypeKindInterface, PossibleTypes: []string{"Product", "Category"}}
	assert.Equal(t, -1, ty.PossibleTypeIndex("Product"))
}

func TestSchema_Finalize_BuildsPossibleTypeIndex(t *testing.T) {
	node := &Type{Name: "Node", Kind: TypeKindInterface, PossibleTypes: []string{"Product", "Category"}}
	scalar := &Type{Name: "String", Kind: TypeKindScalar}
	s := &Schema{Types: map[string]*Type{"Node": node, "String": scalar}}

	s.Finalize()

	assert.Equal(t, 0, node.PossibleTypeIndex("Product"))
	assert.Equal(t, 1, node.PossibleTypeIndex("Category"))
	assert.Equal(t, -1, node.PossibleTypeIndex("Missing"))
	// A type with no PossibleTypes (e.g. a scalar) gets no index at all,
	// not an empty-but-non-nil one; PossibleTypeIndex must still report -1.
	assert.Equal(t, -1, scalar.PossibleTypeIndex("Product"))
}
