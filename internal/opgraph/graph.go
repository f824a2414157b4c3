// Package opgraph builds the operation graph: a bipartite arena of
// query-field nodes (what the operation asked for) and provider nodes
// (resolvers and the fields they can produce), the input to the Steiner
// solver.
//
// Nodes and edges are addressed by integer id into flat slices, never by
// pointer, so the graph can be serialized, deduplicated, and walked without
// pinning memory across requests.
package opgraph

import (
	binder "github.com/hanpama/federon/internal/binder"
	schema "github.com/hanpama/federon/internal/schema"
)

type NodeID int32

const NoNode NodeID = -1

type NodeKind uint8

const (
	NodeRoot NodeKind = iota
	NodeQueryField
	NodeProvidableField
	NodeResolver
)

// Node is the tagged union of every node kind. Only the fields relevant to
// Kind are populated, matching the discriminant-field convention used
// throughout this codebase instead of an interface hierarchy.
type Node struct {
	ID   NodeID
	Kind NodeKind

	// NodeQueryField / NodeRoot
	Parent       NodeID // owning QueryField or Root this selection lives under
	ResponseName string
	FieldDef     *schema.Field // nil for "__typename" and for NodeRoot
	Bound        *binder.BoundFieldGroup
	ParentType   *schema.Type // concrete or abstract type the field is selected against
	// TypeCondition is non-empty when this field only applies at runtime if
	// the enclosing abstract-typed parent resolves to a type within
	// ConditionPossibleTypes — the operation-graph trace of a
	// BoundConditionalSelection.
	TypeCondition          string
	ConditionPossibleTypes []string

	// NodeQueryField flags, mirroring the spec's TYPENAME / EXTRA /
	// IS_COMPOSITE_TYPE / PROVIDABLE_BY_INTROSPECTION bits.
	Flags QueryFieldFlag
	// MatchingRequirementID is set only when Flags has FlagExtra: the
	// NodeProvidableField whose Requires set this field was synthesized to
	// satisfy, so a later pass can tell whether the requirement is still
	// live once the solver has picked a resolution.
	MatchingRequirementID NodeID

	// NodeProvidableField
	Query      NodeID // the QueryField this can provide
	ResolverID schema.ResolverID
	Requires   schema.FieldSet
	Provides   schema.FieldSet

	// NodeResolver
	Resolver *schema.Resolver
}

// QueryFieldFlag is a bitmask of the operation-level flags a QueryField
// node carries, matching the flag set the operation binder tracks per
// bound field plus the ones only the graph builder can determine (EXTRA,
// since it depends on what the operation already selected).
type QueryFieldFlag uint8

const (
	FlagTypename QueryFieldFlag = 1 << iota
	// FlagExtra marks a QueryField synthesized by the builder to carry a
	// Requires target the operation did not itself select.
	FlagExtra
	FlagIsCompositeType
	FlagProvidableByIntrospection
)

// Has reports whether f includes flag.
func (f QueryFieldFlag) Has(flag QueryFieldFlag) bool { return f&flag != 0 }

type EdgeKind uint8

const (
	EdgeField              EdgeKind = iota // parent QueryField/Root -> child QueryField
	EdgeTypenameField                      // parent QueryField/Root -> synthetic __typename QueryField
	EdgeCanProvide                         // QueryField -> ProvidableField (a candidate to satisfy it)
	EdgeProvides                           // ProvidableField -> Resolver (the resolver producing it)
	EdgeRequires                           // ProvidableField -> QueryField (sibling field it needs first)
	EdgeCreateChildResolver                // ProvidableField -> entity-lookup Resolver (subgraph-boundary jump)
)

type Edge struct {
	Kind EdgeKind
	From NodeID
	To   NodeID
}

// Graph is the full arena for one bound operation.
type Graph struct {
	Nodes []Node
	Edges []Edge

	Root NodeID

	// extras memoizes synthesized EXTRA QueryField nodes by (parent, field
	// name) so two resolvers requiring the same sibling field share one
	// synthetic node instead of each growing their own. Build-time only.
	extras map[extraKey]NodeID
}

type extraKey struct {
	parent NodeID
	name   string
}

func (g *Graph) addNode(n Node) NodeID {
	n.ID = NodeID(len(g.Nodes))
	g.Nodes = append(g.Nodes, n)
	return n.ID
}

func (g *Graph) addEdge(kind EdgeKind, from, to NodeID) {
	g.Edges = append(g.Edges, Edge{Kind: kind, From: from, To: to})
}

func (g *Graph) Node(id NodeID) *Node { return &g.Nodes[id] }

// OutEdges returns every edge with the given Kind originating at from.
func (g *Graph) OutEdges(from NodeID, kind EdgeKind) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.From == from && e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
