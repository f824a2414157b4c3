// Package solution turns a steiner.Solution over an opgraph.Graph into an
// executable plan: a DAG of subgraph partitions, each an independent
// GraphQL document to send to one resolver's subgraph, ordered so a child
// partition's entity-lookup keys are always available before it runs.
package solution

import (
	"sort"
	"strconv"

	opgraph "github.com/hanpama/federon/internal/opgraph"
	schema "github.com/hanpama/federon/internal/schema"
	steiner "github.com/hanpama/federon/internal/steiner"
)

// introspectionResolverID mirrors the synthetic resolver id
// internal/introspection registers for __schema/__type, used only when a
// root-level __typename needs a partition of its own because no other root
// field exists to carry it.
const introspectionResolverID schema.ResolverID = "introspection"

// SelectionNode is one field in a partition's outbound selection set, a
// response-key-ordered tree mirroring what that partition's subgraph call
// must ask for.
type SelectionNode struct {
	ResponseName string
	Name         string
	Arguments    map[string]any
	// FieldDef is nil for "__typename" and carries the schema field
	// definition otherwise, so the executor's document renderer can look up
	// each argument's declared type (to tell an enum literal from a string
	// literal) without re-walking the schema index itself.
	FieldDef *schema.Field
	Children []*SelectionNode
	// TypeCondition is non-empty when this field (and its Children) must be
	// wrapped in `... on TypeCondition { }` in the outbound document because
	// it only applies when the enclosing abstract value resolves to one of
	// the concrete types the binder recorded for it (opgraph.Node.TypeCondition).
	TypeCondition string
	// IsExtra marks a field the operation never selected itself, synthesized
	// by the operation graph builder to carry a @requires dependency.
	IsExtra bool
	// RequirementSatisfied is meaningful only when IsExtra is set: true once
	// the Steiner solution actually picked the provider this extra field was
	// synthesized for. An unsatisfied extra is dead weight pruned before
	// execution.
	RequirementSatisfied bool
}

// Partition is one subgraph round trip: either a root-field batch (ParentID
// < 0) or an entity lookup keyed off fields a parent partition already
// fetched.
type Partition struct {
	ID         int
	ResolverID schema.ResolverID
	SubgraphID schema.SubgraphID
	Kind       schema.ResolverKind

	ParentID int // -1 for root partitions
	// AnchorPath is the response path, relative to the overall response
	// root, of the object this partition's result is merged into.
	AnchorPath []string
	// KeyFields are the supergraph key fields read off the parent partition's
	// already-fetched value and sent as lookup arguments to this partition's
	// resolver (empty for root partitions).
	KeyFields []string

	Roots []*SelectionNode

	// DependsOn lists partition IDs (beyond ParentID) this partition's
	// arguments are computed from; currently always {ParentID} or empty.
	DependsOn []int

	// MutationExecutedAfter is the partition ID that must complete before
	// this one may run, purely to preserve GraphQL mutation root-field
	// order; -1 when this partition carries no such ordering constraint.
	// Set only on mutation root partitions (ParentID < 0).
	MutationExecutedAfter int
}

// Plan is the finalized, topologically ordered solution.
type Plan struct {
	Partitions []*Partition
	// Levels groups partition IDs into dependency-respecting execution
	// batches: every partition in Levels[i] only depends on partitions in
	// Levels[0..i-1].
	Levels [][]int
	// MutationRootOrder, when the operation is a mutation, lists root
	// partition IDs in strict left-to-right declaration order; the executor
	// must run each to completion before starting the next, per GraphQL's
	// mutation root-field ordering rule.
	MutationRootOrder []int
	// IsMutation records the operation kind so the executor knows whether a
	// root partition's outbound document opens with "query" or "mutation".
	IsMutation bool
}

type builder struct {
	graph      *opgraph.Graph
	sol        *steiner.Solution
	parts      []*Partition
	byKey      map[partitionKey]int // (parentPartitionID, resolverID, splitTag) -> partition index, reused for sibling fields
	isMutation bool
}

type partitionKey struct {
	parent   int
	resolver schema.ResolverID
	// splitTag, when non-empty, forces a distinct partition even for a
	// (parent, resolver) pair that would otherwise be reused: mutation root
	// fields each get a unique tag so that a, b, c on the same subgraph
	// still yield three separately-ordered round trips instead of one.
	splitTag string
}

// Build constructs an unfinalized Plan; call Finalize before executing it.
// isMutation must reflect the bound operation's kind: mutation root fields
// are placed one partition each, regardless of resolver sharing, so
// declaration order survives as a MutationExecutedAfter chain.
func Build(g *opgraph.Graph, sol *steiner.Solution, isMutation bool) *Plan {
	b := &builder{graph: g, sol: sol, byKey: map[partitionKey]int{}, isMutation: isMutation}

	rootEdges := g.OutEdges(g.Root, opgraph.EdgeField)
	for i, e := range rootEdges {
		tag := ""
		if isMutation {
			tag = "root:" + strconv.Itoa(i)
		}
		b.placeField(e.To, -1, nil, nil, nil, tag)
	}
	// __typename is attached after root fields so a partition already
	// exists to carry it; only when the operation is bare __typename does
	// this need to synthesize one of its own.
	for _, e := range g.OutEdges(g.Root, opgraph.EdgeTypenameField) {
		b.attachRootTypename(e.To)
	}

	chainMutationRoots(b.parts, isMutation)

	return &Plan{Partitions: b.parts}
}

// chainMutationRoots links each mutation root partition, in declaration
// order, after its predecessor so field order survives even when several
// root fields end up on separate partitions for the same subgraph.
func chainMutationRoots(parts []*Partition, isMutation bool) {
	if !isMutation {
		return
	}
	order := rootOrder(parts)
	for i := 1; i < len(order); i++ {
		parts[order[i]].MutationExecutedAfter = order[i-1]
	}
}

// placeField assigns the QueryField node qf (and its subtree) to a
// partition. parentPartition is the partition the enclosing selection
// belongs to (-1 at the root); anchorPath is qf's response path prefix
// within that partition's own outbound document (reset at every partition
// boundary); globalAnchor is the same prefix expressed relative to the
// overall response root instead (never reset), used to stamp a freshly
// created partition's AnchorPath so the executor knows where in the
// assembled response its result belongs. containerPath is qf's own path
// within parentPartition's document regardless of where qf itself ends up
// placed — the path requestKeyFields needs to attach a jumped-to
// partition's key fields as qf's siblings back in parentPartition.
// splitTag, non-empty only for mutation root fields, forces a fresh
// partition even when parentPartition/resolver match a partition already in
// use.
func (b *builder) placeField(qf opgraph.NodeID, parentPartition int, anchorPath, globalAnchor, containerPath []string, splitTag string) {
	node := b.graph.Node(qf)
	provider, ok := b.sol.Provider[qf]
	if !ok {
		// Unplanned (e.g. a leaf synthetic node with no resolver candidates);
		// nothing to dispatch.
		return
	}
	pf := b.graph.Node(provider)
	resolverNode := b.resolverOf(provider)

	samePartition := splitTag == "" && parentPartition >= 0 && b.parts[parentPartition].ResolverID == pf.ResolverID
	var partIdx int
	if samePartition {
		partIdx = parentPartition
	} else {
		partIdx = b.partitionFor(parentPartition, pf.ResolverID, resolverNode, pf.Requires, splitTag)
		b.parts[partIdx].AnchorPath = append([]string(nil), globalAnchor...)
		if parentPartition >= 0 {
			b.requestKeyFields(parentPartition, containerPath, b.parts[partIdx].KeyFields)
		}
	}

	b.attachSelection(partIdx, append(append([]string{}, anchorPath...), node.ResponseName), node)
	childGlobalAnchor := append(append([]string{}, globalAnchor...), node.ResponseName)
	childContainerPath := append(append([]string{}, anchorPath...), node.ResponseName)

	for _, ce := range b.graph.OutEdges(qf, opgraph.EdgeTypenameField) {
		b.addTypenameChild(partIdx, append(anchorPath, node.ResponseName), ce.To)
	}
	for _, ce := range b.graph.OutEdges(qf, opgraph.EdgeField) {
		childAnchor := anchorPath
		if !samePartitionChild(b, partIdx, ce.To) {
			childAnchor = nil // new partition restarts its own relative path
		} else {
			childAnchor = childContainerPath
		}
		b.placeField(ce.To, partIdx, childAnchor, childGlobalAnchor, childContainerPath, "")
	}
	b.splitCycles(qf, partIdx, childContainerPath)
}

// requestKeyFields ensures the parent partition's own outbound selection
// asks for every supergraph key field a freshly created child partition
// will need to build its entity-lookup representation, as siblings of the
// field that triggered the jump (the implicit @key field-requirement every
// entity boundary carries as a Requires edge).
func (b *builder) requestKeyFields(parentPartition int, containerPath []string, keyFields []string) {
	for _, name := range keyFields {
		path := append(append([]string{}, containerPath...), name)
		b.attachSelection(parentPartition, path, &opgraph.Node{ResponseName: name})
	}
}

func samePartitionChild(b *builder, parentPartIdx int, child opgraph.NodeID) bool {
	provider, ok := b.sol.Provider[child]
	if !ok {
		return true
	}
	pf := b.graph.Node(provider)
	return b.parts[parentPartIdx].ResolverID == pf.ResolverID
}

func (b *builder) resolverOf(providable opgraph.NodeID) opgraph.NodeID {
	edges := b.graph.OutEdges(providable, opgraph.EdgeProvides)
	if len(edges) == 0 {
		return opgraph.NoNode
	}
	return edges[0].To
}

// splitCycles checks parent's direct fields that landed in partIdx for a
// same-subgraph Requires cycle — two fields that each need the other's
// output, which no single subgraph call can satisfy — and moves the
// offending fields into a fresh partition chained off partIdx.
// containerPath is parent's own path within partIdx's document, the anchor
// the split fields (and their surviving key requests) are placed at.
func (b *builder) splitCycles(parent opgraph.NodeID, partIdx int, containerPath []string) {
	cyclic := b.detectSiblingCycles(parent, partIdx)
	if len(cyclic) == 0 {
		return
	}
	p := b.parts[partIdx]
	newIdx := -1
	for child := range cyclic {
		provider, ok := b.sol.Provider[child]
		if !ok {
			continue
		}
		pf := b.graph.Node(provider)
		n := b.graph.Node(child)

		if newIdx < 0 {
			rn := b.graph.Node(b.resolverOf(provider))
			np := &Partition{
				ID:                    len(b.parts),
				ResolverID:            pf.ResolverID,
				ParentID:              partIdx,
				DependsOn:             []int{partIdx},
				AnchorPath:            append([]string(nil), containerPath...),
				MutationExecutedAfter: -1,
			}
			if rn.Resolver != nil {
				np.SubgraphID = rn.Resolver.SubgraphID
				np.Kind = rn.Resolver.Kind
			}
			b.parts = append(b.parts, np)
			newIdx = np.ID
			p = b.parts[partIdx]
		}
		newPart := b.parts[newIdx]

		if moved := removeSelectionNode(&p.Roots, n.ResponseName); moved != nil {
			newPart.Roots = append(newPart.Roots, moved)
		}

		for _, name := range pf.Requires.Names() {
			b.mergeKeyFields(newPart, schema.FieldSet{{Name: name}})
			if sibling := findSiblingByName(b, parent, name); !cyclic[sibling] {
				path := append(append([]string{}, containerPath...), name)
				b.attachSelection(partIdx, path, &opgraph.Node{ResponseName: name})
			}
		}
	}
}

// detectSiblingCycles scans parent's direct EdgeField children that are
// placed in partIdx and finds those connected by a Requires relationship
// among themselves, a dependency a single subgraph call cannot satisfy.
func (b *builder) detectSiblingCycles(parent opgraph.NodeID, partIdx int) map[opgraph.NodeID]bool {
	children := b.graph.OutEdges(parent, opgraph.EdgeField)
	byName := map[string]opgraph.NodeID{}
	inPartition := map[opgraph.NodeID]bool{}
	for _, e := range children {
		if !samePartitionChild(b, partIdx, e.To) {
			continue
		}
		n := b.graph.Node(e.To)
		byName[n.ResponseName] = e.To
		inPartition[e.To] = true
	}

	adj := map[opgraph.NodeID][]opgraph.NodeID{}
	for _, e := range children {
		if !inPartition[e.To] {
			continue
		}
		provider, ok := b.sol.Provider[e.To]
		if !ok {
			continue
		}
		pf := b.graph.Node(provider)
		for _, name := range pf.Requires.Names() {
			if dep, ok := byName[name]; ok && dep != e.To {
				adj[e.To] = append(adj[e.To], dep)
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[opgraph.NodeID]int{}
	cyclic := map[opgraph.NodeID]bool{}
	var stack []opgraph.NodeID
	var visit func(n opgraph.NodeID)
	visit = func(n opgraph.NodeID) {
		color[n] = gray
		stack = append(stack, n)
		for _, dep := range adj[n] {
			if color[dep] == gray {
				for _, s := range stack {
					cyclic[s] = true
				}
				cyclic[dep] = true
				continue
			}
			if color[dep] == white {
				visit(dep)
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
	}
	for _, e := range children {
		if inPartition[e.To] && color[e.To] == white {
			visit(e.To)
		}
	}
	return cyclic
}

func removeSelectionNode(list *[]*SelectionNode, name string) *SelectionNode {
	for i, s := range *list {
		if s.ResponseName == name {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return s
		}
	}
	return nil
}

func findSiblingByName(b *builder, parent opgraph.NodeID, name string) opgraph.NodeID {
	for _, e := range b.graph.OutEdges(parent, opgraph.EdgeField) {
		if n := b.graph.Node(e.To); n.ResponseName == name {
			return e.To
		}
	}
	return opgraph.NoNode
}

// partitionFor returns the index of the partition for (parentPartition,
// resolverID), creating one anchored at the triggering field if needed.
// requires is the triggering field's own FieldResolution.Requires, folded
// into the partition's KeyFields alongside the resolver's base @key: a
// @requires field beyond the entity key (e.g. a computed field that also
// needs a sibling scalar already available on the parent partition) is
// requested from the parent the same way a key field is, since both are
// just "fetch this from wherever the parent object already lives." A field
// resolver with an empty Requires set (the common, non-@requires case)
// leaves KeyFields untouched beyond the resolver's own key.
func (b *builder) partitionFor(parentPartition int, resolverID schema.ResolverID, resolverNode opgraph.NodeID, requires schema.FieldSet, splitTag string) int {
	key := partitionKey{parent: parentPartition, resolver: resolverID, splitTag: splitTag}
	if idx, ok := b.byKey[key]; ok {
		if parentPartition >= 0 {
			b.mergeKeyFields(b.parts[idx], requires)
		}
		return idx
	}
	rn := b.graph.Node(resolverNode)
	p := &Partition{
		ID:                    len(b.parts),
		ResolverID:            resolverID,
		ParentID:              parentPartition,
		MutationExecutedAfter: -1,
	}
	if rn.Resolver != nil {
		p.SubgraphID = rn.Resolver.SubgraphID
		p.Kind = rn.Resolver.Kind
		p.KeyFields = rn.Resolver.KeyFields.Names()
	}
	if parentPartition >= 0 {
		p.DependsOn = []int{parentPartition}
		b.mergeKeyFields(p, requires)
	}
	b.parts = append(b.parts, p)
	idx := p.ID
	b.byKey[key] = idx
	return idx
}

// mergeKeyFields adds any name in requires not already present in p's
// KeyFields, preserving the resolver's own key order first.
func (b *builder) mergeKeyFields(p *Partition, requires schema.FieldSet) {
	for _, name := range requires.Names() {
		found := false
		for _, existing := range p.KeyFields {
			if existing == name {
				found = true
				break
			}
		}
		if !found {
			p.KeyFields = append(p.KeyFields, name)
		}
	}
}

// attachSelection inserts (or reuses) the SelectionNode for path within
// partition partIdx's outbound document, returning the leaf node so the
// caller can attach children to it directly.
func (b *builder) attachSelection(partIdx int, path []string, node *opgraph.Node) *SelectionNode {
	p := b.parts[partIdx]
	var siblings *[]*SelectionNode = &p.Roots
	var leaf *SelectionNode
	for i, name := range path {
		var found *SelectionNode
		for _, s := range *siblings {
			if s.ResponseName == name {
				found = s
				break
			}
		}
		if found == nil {
			wire := name
			var args map[string]any
			var typeCondition string
			var fieldDef *schema.Field
			if i == len(path)-1 {
				if node.Bound != nil {
					wire = node.Bound.Name
					args = node.Bound.Arguments
				}
				typeCondition = node.TypeCondition
				fieldDef = node.FieldDef
			}
			isExtra := node.Flags.Has(opgraph.FlagExtra)
			found = &SelectionNode{
				ResponseName: name, Name: wire, Arguments: args, FieldDef: fieldDef, TypeCondition: typeCondition,
				IsExtra:              i == len(path)-1 && isExtra,
				RequirementSatisfied: i != len(path)-1 || !isExtra || b.requirementSatisfied(node),
			}
			*siblings = append(*siblings, found)
		}
		leaf = found
		siblings = &found.Children
	}
	return leaf
}

// requirementSatisfied reports whether n, an EXTRA QueryField, was actually
// needed: true once the Steiner solution picked n.MatchingRequirementID (the
// ProvidableField it was synthesized for) as the provider of that
// ProvidableField's own QueryField.
func (b *builder) requirementSatisfied(n *opgraph.Node) bool {
	if n.MatchingRequirementID == opgraph.NoNode {
		return true
	}
	req := b.graph.Node(n.MatchingRequirementID)
	return b.sol.Provider[req.Query] == n.MatchingRequirementID
}

// pruneDeadExtras removes EXTRA fields from p's selection tree whose
// requirement turned out never to be satisfied by the chosen solution — the
// builder synthesizes them eagerly for every resolver candidate it
// considers, but only the candidate the solver actually picked needs them
// sent over the wire.
func pruneDeadExtras(p *Partition) {
	p.Roots = pruneExtraList(p.Roots)
}

func pruneExtraList(nodes []*SelectionNode) []*SelectionNode {
	kept := nodes[:0:0]
	for _, n := range nodes {
		if n.IsExtra && !n.RequirementSatisfied {
			continue
		}
		n.Children = pruneExtraList(n.Children)
		kept = append(kept, n)
	}
	return kept
}

// attachRootTypename places a root-level __typename field on the first
// query partition, by partition id, synthesizing a dedicated introspection
// partition if the operation selected nothing else at the root.
func (b *builder) attachRootTypename(ty opgraph.NodeID) {
	idx := b.firstRootPartition()
	if idx < 0 {
		idx = b.newIntrospectionPartition()
	}
	p := b.parts[idx]
	for _, s := range p.Roots {
		if s.Name == "__typename" {
			return
		}
	}
	node := b.graph.Node(ty)
	p.Roots = append(p.Roots, &SelectionNode{ResponseName: node.ResponseName, Name: "__typename"})
}

func (b *builder) firstRootPartition() int {
	best := -1
	for _, p := range b.parts {
		if p.ParentID < 0 && (best < 0 || p.ID < b.parts[best].ID) {
			best = p.ID
		}
	}
	return best
}

func (b *builder) newIntrospectionPartition() int {
	p := &Partition{
		ID:                    len(b.parts),
		ResolverID:            introspectionResolverID,
		SubgraphID:            schema.IntrospectionSubgraph,
		Kind:                  schema.ResolverKindIntrospection,
		ParentID:              -1,
		MutationExecutedAfter: -1,
	}
	b.parts = append(b.parts, p)
	return p.ID
}

func (b *builder) addTypenameChild(partIdx int, path []string, ty opgraph.NodeID) {
	p := b.parts[partIdx]
	var siblings *[]*SelectionNode = &p.Roots
	for _, name := range path {
		var found *SelectionNode
		for _, s := range *siblings {
			if s.ResponseName == name {
				found = s
				break
			}
		}
		if found == nil {
			return // parent not placed in this partition; nothing to attach to
		}
		siblings = &found.Children
	}
	node := b.graph.Node(ty)
	for _, s := range *siblings {
		if s.Name == "__typename" {
			return
		}
	}
	*siblings = append(*siblings, &SelectionNode{ResponseName: node.ResponseName, Name: "__typename"})
}

// Finalize runs the ordering and bookkeeping passes that turn a raw
// partition set into something safe to execute: dead EXTRA-field pruning,
// topological leveling, and mutation root ordering. It adds no __typename
// selections; the root __typename is attached by Build.
func Finalize(p *Plan, isMutation bool) *Plan {
	for _, part := range p.Partitions {
		pruneDeadExtras(part)
	}
	p.IsMutation = isMutation
	p.Levels = levelize(p.Partitions)
	if isMutation {
		p.MutationRootOrder = rootOrder(p.Partitions)
	}
	return p
}

func levelize(parts []*Partition) [][]int {
	depth := make([]int, len(parts))
	for i, p := range parts {
		depth[i] = computeDepth(parts, p, map[int]bool{})
	}
	maxDepth := 0
	for _, d := range depth {
		if d > maxDepth {
			maxDepth = d
		}
	}
	levels := make([][]int, maxDepth+1)
	for i, d := range depth {
		levels[d] = append(levels[d], parts[i].ID)
	}
	for _, lvl := range levels {
		sort.Ints(lvl)
	}
	return levels
}

func computeDepth(parts []*Partition, p *Partition, visiting map[int]bool) int {
	if p.ParentID < 0 {
		return 0
	}
	if visiting[p.ID] {
		return 0 // defensive: a real cycle would be a builder bug, not a valid plan
	}
	visiting[p.ID] = true
	return 1 + computeDepth(parts, parts[p.ParentID], visiting)
}

func rootOrder(parts []*Partition) []int {
	var order []int
	for _, p := range parts {
		if p.ParentID < 0 {
			order = append(order, p.ID)
		}
	}
	sort.Ints(order)
	return order
}
