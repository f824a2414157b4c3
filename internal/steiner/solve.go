// Package steiner picks, for every query field in an operation graph, the
// cheapest combination of resolvers able to produce it: a greedy worklist
// approximation of minimum Steiner-tree cover over the bipartite graph
// opgraph builds. Cost is 1 per newly-activated resolver node and 0 for
// reusing one already selected elsewhere in the plan, which minimizes the
// number of distinct subgraph round trips.
package steiner

import (
	"container/heap"
	"fmt"

	opgraph "github.com/hanpama/federon/internal/opgraph"
)

// CouldNotPlanAnyField is returned when a query field has no candidate
// resolver capable of producing it at all.
type CouldNotPlanAnyField struct {
	Missing   string
	QueryPath []string
}

func (e *CouldNotPlanAnyField) Error() string {
	return fmt.Sprintf("could not plan field %q (path %v): no subgraph can provide it", e.Missing, e.QueryPath)
}

// Solution assigns exactly one ProvidableField node to every QueryField node
// that needed one, plus the set of Resolver nodes activated to produce them.
type Solution struct {
	Provider  map[opgraph.NodeID]opgraph.NodeID // QueryField -> chosen ProvidableField
	Resolvers map[opgraph.NodeID]bool           // activated Resolver node ids
}

type workItem struct {
	cost  int
	query opgraph.NodeID
	cand  opgraph.NodeID
	seq   int // insertion order, breaks ties deterministically
}

type workHeap []workItem

func (h workHeap) Len() int { return len(h) }
func (h workHeap) Less(i, j int) bool {
	if h[i].cost != h[j].cost {
		return h[i].cost < h[j].cost
	}
	if h[i].query != h[j].query {
		return h[i].query < h[j].query
	}
	if h[i].cand != h[j].cand {
		return h[i].cand < h[j].cand
	}
	return h[i].seq < h[j].seq
}
func (h workHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *workHeap) Push(x any)        { *h = append(*h, x.(workItem)) }
func (h *workHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Solve runs the worklist algorithm over g, returning a Solution or the
// first CouldNotPlanAnyField encountered in deterministic (node-id) order.
func Solve(g *opgraph.Graph) (*Solution, error) {
	sol := &Solution{Provider: map[opgraph.NodeID]opgraph.NodeID{}, Resolvers: map[opgraph.NodeID]bool{}}

	h := &workHeap{}
	heap.Init(h)
	seq := 0
	seeded := map[opgraph.NodeID]bool{}

	seedField := func(qf opgraph.NodeID) error {
		if seeded[qf] {
			return nil
		}
		seeded[qf] = true
		candidates := g.OutEdges(qf, opgraph.EdgeCanProvide)
		if len(candidates) == 0 {
			node := g.Node(qf)
			if node.FieldDef == nil {
				return nil // synthetic/__typename fields need no resolver
			}
			return &CouldNotPlanAnyField{Missing: node.ResponseName, QueryPath: queryPath(g, qf)}
		}
		for _, e := range candidates {
			heap.Push(h, workItem{cost: candidateCost(g, sol, e.To), query: qf, cand: e.To, seq: seq})
			seq++
		}
		return nil
	}

	// Seed every QueryField reachable from Root.
	var queue []opgraph.NodeID
	for _, e := range g.OutEdges(g.Root, opgraph.EdgeField) {
		queue = append(queue, e.To)
	}
	for len(queue) > 0 {
		qf := queue[0]
		queue = queue[1:]
		if err := seedField(qf); err != nil {
			return nil, err
		}
		for _, e := range g.OutEdges(qf, opgraph.EdgeField) {
			queue = append(queue, e.To)
		}
	}

	for h.Len() > 0 {
		item := heap.Pop(h).(workItem)
		if _, done := sol.Provider[item.query]; done {
			continue
		}
		// Recompute cost lazily: a cheaper resolver may have been activated
		// by a different field since this item was pushed.
		fresh := candidateCost(g, sol, item.cand)
		if fresh != item.cost {
			item.cost = fresh
			heap.Push(h, item)
			continue
		}

		sol.Provider[item.query] = item.cand
		for _, e := range g.OutEdges(item.cand, opgraph.EdgeProvides) {
			sol.Resolvers[e.To] = true
		}
		// A chosen candidate may need sibling fields the operation never
		// selected itself (the builder's synthesized EXTRA fields); push
		// them onto the frontier so they get planned too.
		for _, e := range g.OutEdges(item.cand, opgraph.EdgeRequires) {
			if err := seedField(e.To); err != nil {
				return nil, err
			}
		}
	}

	return sol, nil
}

// candidateCost is 0 when the candidate's resolver is already active in the
// partial solution, 1 when it would need to be newly activated.
func candidateCost(g *opgraph.Graph, sol *Solution, candidate opgraph.NodeID) int {
	for _, e := range g.OutEdges(candidate, opgraph.EdgeProvides) {
		if sol.Resolvers[e.To] {
			return 0
		}
	}
	return 1
}

func queryPath(g *opgraph.Graph, qf opgraph.NodeID) []string {
	var path []string
	for cur := qf; cur != opgraph.NoNode && cur != g.Root; {
		n := g.Node(cur)
		if n.ResponseName != "" {
			path = append([]string{n.ResponseName}, path...)
		}
		cur = n.Parent
	}
	return path
}
