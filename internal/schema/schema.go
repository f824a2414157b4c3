// Package schema is the immutable, post-composition view of a supergraph:
// types, fields, subgraph membership, resolver definitions, and the
// requires/provides field-sets that drive planning.
package schema

// SubgraphID identifies a backing GraphQL service. IntrospectionSubgraph is
// synthetic: it never reaches a subgraph.Fetcher, since the introspection
// engine answers __schema/__type locally.
type SubgraphID string

const IntrospectionSubgraph SubgraphID = "Introspection"

// Subgraph is one backing GraphQL service as declared by join__graph.
type Subgraph struct {
	ID  SubgraphID
	Name string
	URL string
}

// Schema represents the complete, composed GraphQL schema served by the
// gateway, plus the federation metadata needed to plan requests across
// subgraphs.
type Schema struct {
	QueryType        string
	MutationType     string
	SubscriptionType string
	Types            map[string]*Type // All named types keyed by name
	Directives       map[string]*Directive
	Subgraphs        map[SubgraphID]*Subgraph
	Resolvers        map[ResolverID]*Resolver
	Description      string
}

// ResolverByID looks up a resolver definition, or nil if unknown.
func (s *Schema) ResolverByID(id ResolverID) *Resolver { return s.Resolvers[id] }

// GetQueryType returns the root query type (may be nil if absent)
func (s *Schema) GetQueryType() *Type { return s.Types[s.QueryType] }

// GetMutationType returns the root mutation type (may be nil if absent)
func (s *Schema) GetMutationType() *Type { return s.Types[s.MutationType] }

// GetSubscriptionType returns the root subscription type (may be nil if absent)
func (s *Schema) GetSubscriptionType() *Type { return s.Types[s.SubscriptionType] }

// Type is a named GraphQL type (object, interface, union, scalar, enum, input)
type Type struct {
	Name           string
	Kind           TypeKind
	Description    string
	Fields         []*Field      // For OBJECT and INTERFACE
	Interfaces     []string      // For OBJECT and INTERFACE (implemented/extended)
	PossibleTypes  []string      // For INTERFACE and UNION
	EnumValues     []*EnumValue  // For ENUM
	InputFields    []*InputValue // For INPUT_OBJECT
	SpecifiedByURL *string
	OneOf          bool

	// Subgraphs lists the ids of every subgraph this type is defined (or
	// extended) in. For entities this is typically more than one.
	Subgraphs []SubgraphID
	// Keys maps a subgraph id to the field-set (from @key) that subgraph
	// uses to look the entity back up. Only set for entity types.
	Keys map[SubgraphID]FieldSet

	// possibleTypeIndex is a derived cache built once by
	// the supergraph loader so type-condition intersection checks and
	// object-id bitset math (internal/shapes) don't recompute them per
	// request. Populated by Finalize.
	possibleTypeIndex map[string]int
}

// Finalize precomputes derived indices. Called once by the supergraph
// loader after all types are registered.
func (s *Schema) Finalize() {
	for _, t := range s.Types {
		if len(t.PossibleTypes) == 0 {
			continue
		}
		t.possibleTypeIndex = make(map[string]int, len(t.PossibleTypes))
		for i, name := range t.PossibleTypes {
			t.possibleTypeIndex[name] = i
		}
	}
}

// PossibleTypeIndex returns the position of objectType within t.PossibleTypes
// (interfaces/unions only), or -1 if t does not include it.
func (t *Type) PossibleTypeIndex(objectType string) int {
	if t.possibleTypeIndex == nil {
		return -1
	}
	if i, ok := t.possibleTypeIndex[objectType]; ok {
		return i
	}
	return -1
}

// FieldSet is a parsed @requires/@provides/@key field-set: a (possibly
// nested) list of field selections on a single parent type.
type FieldSet []FieldSetSelection

type FieldSetSelection struct {
	Name string
	Sub  FieldSet // non-nil when the field set descends into a sub-selection
}

// Names returns the top-level field names in the set.
func (fs FieldSet) Names() []string {
	out := make([]string, len(fs))
	for i, s := range fs {
		out[i] = s.Name
	}
	return out
}

// Field represents a field on an object or interface.
type Field struct {
	Name              string
	Description       string
	Type              *TypeRef
	Arguments         []*InputValue
	IsDeprecated      bool
	DeprecationReason string

	// Resolutions lists every (resolver, requires, provides) triple able to
	// produce this field — the schema-index analogue of operation-graph
	// ProvidableField nodes before any request-specific selection exists.
	Resolutions []*FieldResolution
}

// FieldResolution is one way a field can be resolved: by a specific
// resolver, after the fields in Requires are available on the same parent
// entity, additionally supplying the fields in Provides on the field's own
// (composite) return type without a further subgraph hop.
type FieldResolution struct {
	ResolverID ResolverID
	Requires   FieldSet
	Provides   FieldSet
	External   bool
}

// ResolverID uniquely identifies a resolver definition within the schema.
type ResolverID string

// ResolverKind is the closed sum of ways a resolver can produce data.
type ResolverKind string

const (
	ResolverKindRootQuery      ResolverKind = "ROOT_QUERY"
	ResolverKindEntityLookup   ResolverKind = "ENTITY_LOOKUP"
	ResolverKindIntrospection  ResolverKind = "INTROSPECTION"
)

// Resolver is either a root-query resolver on subgraph S, an entity lookup
// on S by key K, or the synthetic introspection resolver.
type Resolver struct {
	ID         ResolverID
	Kind       ResolverKind
	SubgraphID SubgraphID

	// EntityType is the entity type name this resolver looks up. Only set
	// for ResolverKindEntityLookup.
	EntityType string
	// KeyFields is the supergraph key field-set used to look the entity up.
	KeyFields FieldSet
	// ArgumentMapping maps a supergraph key field name to the subgraph's
	// lookup input argument name, e.g. {"id": "id"} or {"sku": "upc"}.
	ArgumentMapping map[string]string
	// LookupField is the name of the Query-type field on SubgraphID that
	// performs this lookup, e.g. "productByUpc". Only set for
	// ResolverKindEntityLookup; a ResolverKindRootQuery resolver is invoked
	// through the operation's own field name instead.
	LookupField string
}

// TypeKind represents the kind of GraphQL type
type TypeKind string

const (
	TypeKindScalar      TypeKind = "SCALAR"
	TypeKindObject      TypeKind = "OBJECT"
	TypeKindInterface   TypeKind = "INTERFACE"
	TypeKindUnion       TypeKind = "UNION"
	TypeKindEnum        TypeKind = "ENUM"
	TypeKindInputObject TypeKind = "INPUT_OBJECT"
)

// TypeRef represents a reference to a type (can be wrapped)
type TypeRef struct {
	Kind   TypeRefKind
	OfType *TypeRef // For List and NonNull
	Named  string   // For named types
}

type TypeRefKind string

const (
	TypeRefKindNamed   TypeRefKind = "NAMED"
	TypeRefKindList    TypeRefKind = "LIST"
	TypeRefKindNonNull TypeRefKind = "NON_NULL"
)

// Helper functions for TypeRef
func (t *TypeRef) IsNonNull() bool {
	return t != nil && t.Kind == TypeRefKindNonNull
}

func (t *TypeRef) IsList() bool {
	if t.Kind == TypeRefKindList {
		return true
	}
	if t.Kind == TypeRefKindNonNull && t.OfType != nil {
		return t.OfType.Kind == TypeRefKindList
	}
	return false
}

func (t *TypeRef) Unwrap() *TypeRef {
	if t.Kind == TypeRefKindNonNull || t.Kind == TypeRefKindList {
		return t.OfType
	}
	return t
}

func (t *TypeRef) GetNamedType() string {
	current := t
	for current != nil {
		if current.Named != "" {
			return current.Named
		}
		current = current.OfType
	}
	return ""
}

// WrappingDepth counts List/NonNull layers, used by the supergraph loader to
// validate @composite__is wrapping compatibility.
func (t *TypeRef) WrappingDepth() int {
	n := 0
	for cur := t; cur != nil && cur.Kind != TypeRefKindNamed; cur = cur.OfType {
		n++
	}
	return n
}

type EnumValue struct {
	Name              string
	Description       string
	IsDeprecated      bool
	DeprecationReason string
}

type InputValue struct {
	Name              string
	Description       string
	Type              *TypeRef
	DefaultValue      any
	IsDeprecated      bool
	DeprecationReason string
}

type Directive struct {
	Name         string
	Description  string
	Locations    []string
	Arguments    []*InputValue
	IsRepeatable bool
}

func NonNullType(t *TypeRef) *TypeRef { return &TypeRef{Kind: TypeRefKindNonNull, OfType: t} }
func ListType(t *TypeRef) *TypeRef    { return &TypeRef{Kind: TypeRefKindList, OfType: t} }
func NamedType(name string) *TypeRef  { return &TypeRef{Kind: TypeRefKindNamed, Named: name} }

// IsNonNull reports whether the type is wrapped with Non-Null.
func IsNonNull(t *TypeRef) bool { return t != nil && t.IsNonNull() }

// IsList reports whether the type is (or is wrapped by) a list type.
func IsList(t *TypeRef) bool { return t != nil && t.IsList() }

// Unwrap removes one layer of Non-Null or List wrapping and returns the inner type.
func Unwrap(t *TypeRef) *TypeRef { return t.Unwrap() }

// GetNamedType returns the innermost named type for the given reference.
func GetNamedType(t *TypeRef) string { return t.GetNamedType() }

// IsComposite reports whether name refers to an object/interface/union in s.
func (s *Schema) IsComposite(name string) bool {
	t := s.Types[name]
	if t == nil {
		return false
	}
	switch t.Kind {
	case TypeKindObject, TypeKindInterface, TypeKindUnion:
		return true
	default:
		return false
	}
}

// FieldByName returns the field definition named fieldName on parentType, or
// nil if absent (e.g. for "__typename", which every composite type accepts
// but which is not listed among Fields).
func (t *Type) FieldByName(fieldName string) *Field {
	for _, f := range t.Fields {
		if f.Name == fieldName {
			return f
		}
	}
	return nil
}
