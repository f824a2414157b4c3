// Package shapes implements the response-shape planner: a pure projection
// over sorted object-id sets that splits the runtime possible types of an
// interface/union selection set into disjoint partitions, each carrying the
// exact union of selection bits that applies when a subgraph response's
// __typename falls into it. This drives zero-lookup deserialization of
// polymorphic subgraph responses instead of re-walking the schema on every
// object the executor completes.
//
// The function operates purely on integers and *big.Int bitsets; it knows
// nothing about GraphQL types, selection sets, or the schema index. Object
// identity, field identity, and the bitset width are all caller-assigned.
package shapes

import "math/big"

// ObjectID identifies one concrete object type, stable for the lifetime of
// one planning pass. Caller-assigned (typically the object's index within
// the schema index's possible-types list for the polymorphic parent type).
type ObjectID int

// Condition is one `(type_condition_possible_types, fields_bitset)` pair:
// a fragment's type condition, already resolved to the concrete object ids
// it can apply to, paired with the bitset of fields it selects.
type Condition struct {
	// PossibleTypes must be sorted ascending and free of duplicates.
	PossibleTypes []ObjectID
	Fields        *big.Int
}

// PartitionKind distinguishes a single-object partition from a
// multi-object one; both carry the same information, but callers (and
// tests) often want to assert on cardinality directly, matching the
// `Partition::One` / `Partition::Many` / `Partition::Remaining` variants
// a response-shape plan distinguishes.
type PartitionKind uint8

const (
	KindOne PartitionKind = iota
	KindMany
	KindRemaining
)

// Partition is one disjoint block of the output possible types sharing the
// same effective field selection.
type Partition struct {
	Kind PartitionKind
	// Objects is sorted ascending, non-empty, and disjoint from every other
	// partition returned by the same Plan call.
	Objects []ObjectID
	Fields  *big.Int
}

// Plan computes the disjoint partitioning of outputPossibleTypes implied by
// conditions. outputPossibleTypes must be sorted ascending and
// duplicate-free; conditions may be supplied in any order.
//
// Invariants upheld:
//   - partitions are pairwise disjoint over outputPossibleTypes (P2)
//   - the union of partition object-sets is a subset of outputPossibleTypes
//     (P3); when some condition is a superset, the output objects no narrower
//     condition touched form the Remaining partition, so the union equals
//     outputPossibleTypes; without a superset, objects no condition names
//     are left out and no Remaining partition is emitted
//   - if every condition is a superset of outputPossibleTypes, Plan returns
//     nil (P5)
func Plan(outputPossibleTypes []ObjectID, conditions []Condition) []Partition {
	supersets, remaining := splitSupersets(outputPossibleTypes, conditions)
	if len(remaining) == 0 {
		return nil
	}

	supersetBits := unionFields(supersets)

	var blocks []block
	if allSingleObject(remaining) {
		blocks = bucketSingleObjects(remaining)
		// Output objects no condition names form one zero-field block, which
		// finalize folds into the Remaining tail when supersets apply.
		named := make(map[ObjectID]bool, len(blocks))
		for _, b := range blocks {
			named[b.objects[0]] = true
		}
		var rest []ObjectID
		for _, o := range outputPossibleTypes {
			if !named[o] {
				rest = append(rest, o)
			}
		}
		if len(rest) > 0 {
			blocks = append(blocks, block{objects: rest, fields: big.NewInt(0)})
		}
	} else {
		blocks = refine(outputPossibleTypes, remaining)
	}

	return finalize(outputPossibleTypes, blocks, supersetBits, len(supersets) > 0)
}

type block struct {
	objects []ObjectID // sorted ascending, non-empty
	fields  *big.Int   // nil means "no condition has touched this block yet"
}

// splitSupersets partitions conditions into those whose possible-type set
// is a superset of outputPossibleTypes (apply unconditionally to every
// runtime object) and the rest.
func splitSupersets(output []ObjectID, conditions []Condition) (supersets, remaining []Condition) {
	outSet := toSet(output)
	for _, c := range conditions {
		if isSuperset(outSet, c.PossibleTypes) {
			supersets = append(supersets, c)
		} else {
			remaining = append(remaining, c)
		}
	}
	return supersets, remaining
}

func isSuperset(outSet map[ObjectID]bool, candidate []ObjectID) bool {
	if len(candidate) < len(outSet) {
		// A proper subset of |outSet| elements can never cover every member
		// of outSet; cheap rejection before the full membership scan.
		return false
	}
	cset := toSet(candidate)
	for o := range outSet {
		if !cset[o] {
			return false
		}
	}
	return true
}

func toSet(ids []ObjectID) map[ObjectID]bool {
	m := make(map[ObjectID]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func allSingleObject(conditions []Condition) bool {
	for _, c := range conditions {
		if len(c.PossibleTypes) != 1 {
			return false
		}
	}
	return true
}

// bucketSingleObjects groups conditions by their (sole) object id, OR-ing
// bitsets for conditions that name the same object more than once.
func bucketSingleObjects(conditions []Condition) []block {
	order := make([]ObjectID, 0, len(conditions))
	byObject := make(map[ObjectID]*big.Int, len(conditions))
	for _, c := range conditions {
		obj := c.PossibleTypes[0]
		if bits, ok := byObject[obj]; ok {
			bits.Or(bits, c.Fields)
			continue
		}
		order = append(order, obj)
		byObject[obj] = new(big.Int).Set(c.Fields)
	}
	blocks := make([]block, 0, len(order))
	for _, obj := range order {
		blocks = append(blocks, block{objects: []ObjectID{obj}, fields: byObject[obj]})
	}
	return blocks
}

// refine is the general iterative intersection algorithm: start from one
// block covering the whole output set with no fields, then for every
// remaining condition, split every existing block into its intersection
// with (gaining the condition's fields) and its difference from (keeping
// its own fields) the condition's possible-type set.
func refine(output []ObjectID, conditions []Condition) []block {
	blocks := []block{{objects: append([]ObjectID(nil), output...), fields: big.NewInt(0)}}
	for _, c := range conditions {
		cset := toSet(c.PossibleTypes)
		var next []block
		for _, b := range blocks {
			var inter, diff []ObjectID
			for _, o := range b.objects {
				if cset[o] {
					inter = append(inter, o)
				} else {
					diff = append(diff, o)
				}
			}
			if len(inter) > 0 {
				f := new(big.Int).Set(b.fields)
				f.Or(f, c.Fields)
				next = append(next, block{objects: inter, fields: f})
			}
			if len(diff) > 0 {
				next = append(next, block{objects: diff, fields: b.fields})
			}
		}
		blocks = next
	}
	return blocks
}

func unionFields(conditions []Condition) *big.Int {
	out := big.NewInt(0)
	for _, c := range conditions {
		out.Or(out, c.Fields)
	}
	return out
}

// finalize folds the superset bits into every block, drops blocks that end
// up with no fields at all (they carry no selection and no Remaining tail
// is needed for them unless a superset applies), and emits the Remaining
// tail folding any leftover zero-field, no-superset objects together.
func finalize(output []ObjectID, blocks []block, supersetBits *big.Int, hasSupersets bool) []Partition {
	var out []Partition
	var remainingObjects []ObjectID

	for _, b := range blocks {
		fields := new(big.Int)
		if b.fields != nil {
			fields.Set(b.fields)
		}
		touched := fields.Sign() != 0
		fields.Or(fields, supersetBits)

		if !touched && !hasSupersets {
			// No condition ever touched this block and there is nothing
			// universal to fall back on: these objects are simply not
			// covered (P3 equality fails, which is expected here).
			continue
		}
		if !touched {
			// Only supersets apply to this block; fold it into the
			// Remaining tail rather than emitting it as its own partition.
			remainingObjects = append(remainingObjects, b.objects...)
			continue
		}
		kind := KindMany
		if len(b.objects) == 1 {
			kind = KindOne
		}
		out = append(out, Partition{Kind: kind, Objects: b.objects, Fields: fields})
	}

	if len(remainingObjects) > 0 {
		out = append(out, Partition{Kind: KindRemaining, Objects: sortedCopy(remainingObjects), Fields: new(big.Int).Set(supersetBits)})
	}

	return out
}

func sortedCopy(ids []ObjectID) []ObjectID {
	out := append([]ObjectID(nil), ids...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// FieldsFor returns the OR of every partition's Fields whose Objects
// contains obj — the independent reference computation named in property
// P4, used by tests to check Plan's output without relying on Plan's own
// partitioning logic.
func FieldsFor(partitions []Partition, obj ObjectID) *big.Int {
	out := big.NewInt(0)
	for _, p := range partitions {
		for _, o := range p.Objects {
			if o == obj {
				out.Or(out, p.Fields)
				break
			}
		}
	}
	return out
}
