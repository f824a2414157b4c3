package shapes

import (
	"math/big"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bits(n int64) *big.Int { return big.NewInt(n) }

// S5 — disjoint interface implementers, no superset condition.
func TestPlan_DisjointInterfaces(t *testing.T) {
	output := []ObjectID{1, 2, 3, 4}
	conditions := []Condition{
		{PossibleTypes: []ObjectID{1, 2}, Fields: bits(0b01)},
		{PossibleTypes: []ObjectID{3, 4}, Fields: bits(0b10)},
	}

	got := Plan(output, conditions)

	require.Len(t, got, 2)
	byObjects := indexByFirstObject(got)
	p12 := byObjects[1]
	require.NotNil(t, p12)
	assert.Equal(t, KindMany, p12.Kind)
	assert.Equal(t, []ObjectID{1, 2}, p12.Objects)
	assert.Equal(t, int64(0b01), p12.Fields.Int64())

	p34 := byObjects[3]
	require.NotNil(t, p34)
	assert.Equal(t, KindMany, p34.Kind)
	assert.Equal(t, []ObjectID{3, 4}, p34.Objects)
	assert.Equal(t, int64(0b10), p34.Fields.Int64())

	assertNoRemaining(t, got)
	assertCoversExactly(t, got, output)
}

// S6 — superset plus per-object refinement.
func TestPlan_SupersetPlusObjectRefinement(t *testing.T) {
	output := []ObjectID{1, 2}
	conditions := []Condition{
		{PossibleTypes: []ObjectID{1, 2}, Fields: bits(0b001)},
		{PossibleTypes: []ObjectID{2}, Fields: bits(0b010)},
		{PossibleTypes: []ObjectID{1}, Fields: bits(0b100)},
	}

	got := Plan(output, conditions)

	require.Len(t, got, 2)
	byObjects := indexByFirstObject(got)

	one1 := byObjects[1]
	require.NotNil(t, one1)
	assert.Equal(t, KindOne, one1.Kind)
	assert.Equal(t, int64(0b101), one1.Fields.Int64())

	one2 := byObjects[2]
	require.NotNil(t, one2)
	assert.Equal(t, KindOne, one2.Kind)
	assert.Equal(t, int64(0b011), one2.Fields.Int64())

	assertNoRemaining(t, got)
}

// P5 — superset-only conditions emit zero partitions.
func TestPlan_SupersetOnly_NoPartitions(t *testing.T) {
	output := []ObjectID{1, 2, 3}
	conditions := []Condition{
		{PossibleTypes: []ObjectID{1, 2, 3}, Fields: bits(0b1)},
		{PossibleTypes: []ObjectID{1, 2, 3, 4}, Fields: bits(0b10)}, // strict superset too
	}

	got := Plan(output, conditions)
	assert.Empty(t, got)
}

// Remaining tail: a superset condition plus a narrower one that doesn't
// cover every output object emits a Remaining partition for the rest.
func TestPlan_RemainingTail(t *testing.T) {
	output := []ObjectID{1, 2, 3}
	conditions := []Condition{
		{PossibleTypes: []ObjectID{1, 2, 3}, Fields: bits(0b01)}, // superset
		{PossibleTypes: []ObjectID{1}, Fields: bits(0b10)},
	}

	got := Plan(output, conditions)
	require.Len(t, got, 2)

	var one, remaining *Partition
	for i := range got {
		switch got[i].Kind {
		case KindOne:
			one = &got[i]
		case KindRemaining:
			remaining = &got[i]
		}
	}
	require.NotNil(t, one)
	require.NotNil(t, remaining)
	assert.Equal(t, []ObjectID{1}, one.Objects)
	assert.Equal(t, int64(0b11), one.Fields.Int64())
	assert.Equal(t, []ObjectID{2, 3}, remaining.Objects)
	assert.Equal(t, int64(0b01), remaining.Fields.Int64())

	assertCoversExactly(t, got, output)
}

// No superset, and some output object matched by no condition at all: that
// object is simply not covered (P3 is an inequality here, not an error).
func TestPlan_UncoveredObjectWithoutSuperset(t *testing.T) {
	output := []ObjectID{1, 2, 3}
	conditions := []Condition{
		{PossibleTypes: []ObjectID{1}, Fields: bits(0b1)},
	}

	got := Plan(output, conditions)
	require.Len(t, got, 1)
	assert.Equal(t, []ObjectID{1}, got[0].Objects)
	assertNoRemaining(t, got)

	covered := coveredSet(got)
	assert.True(t, covered[1])
	assert.False(t, covered[2])
	assert.False(t, covered[3])
}

// P2/P3 property check across a handful of hand-built scenarios: partitions
// are pairwise disjoint and their union is a subset of the output set.
func TestPlan_DisjointAndSubsetProperty(t *testing.T) {
	scenarios := [][]Condition{
		{
			{PossibleTypes: []ObjectID{1, 2, 3}, Fields: bits(0b1)},
			{PossibleTypes: []ObjectID{2, 3, 4}, Fields: bits(0b10)},
			{PossibleTypes: []ObjectID{4}, Fields: bits(0b100)},
		},
		{
			{PossibleTypes: []ObjectID{1}, Fields: bits(0b1)},
			{PossibleTypes: []ObjectID{2}, Fields: bits(0b10)},
			{PossibleTypes: []ObjectID{3}, Fields: bits(0b100)},
		},
	}
	output := []ObjectID{1, 2, 3, 4}

	for _, conditions := range scenarios {
		got := Plan(output, conditions)
		seen := map[ObjectID]bool{}
		for _, p := range got {
			for _, o := range p.Objects {
				require.Falsef(t, seen[o], "object %d appears in more than one partition", o)
				seen[o] = true
				require.Contains(t, output, o)
			}
		}
	}
}

// P4 — FieldsFor (an independent reference computation) agrees with what a
// caller would compute by hand: the OR of every matching condition's bits
// plus every matching superset.
func TestFieldsFor_MatchesIndependentOr(t *testing.T) {
	output := []ObjectID{1, 2}
	conditions := []Condition{
		{PossibleTypes: []ObjectID{1, 2}, Fields: bits(0b001)},
		{PossibleTypes: []ObjectID{2}, Fields: bits(0b010)},
		{PossibleTypes: []ObjectID{1}, Fields: bits(0b100)},
	}
	got := Plan(output, conditions)

	for _, obj := range output {
		want := big.NewInt(0)
		for _, c := range conditions {
			for _, o := range c.PossibleTypes {
				if o == obj {
					want.Or(want, c.Fields)
					break
				}
			}
		}
		assert.Equal(t, want.Int64(), FieldsFor(got, obj).Int64(), "object %d", obj)
	}
}

func indexByFirstObject(partitions []Partition) map[ObjectID]*Partition {
	out := make(map[ObjectID]*Partition, len(partitions))
	for i := range partitions {
		if len(partitions[i].Objects) == 0 {
			continue
		}
		out[partitions[i].Objects[0]] = &partitions[i]
	}
	return out
}

func assertNoRemaining(t *testing.T, partitions []Partition) {
	t.Helper()
	for _, p := range partitions {
		assert.NotEqual(t, KindRemaining, p.Kind)
	}
}

func coveredSet(partitions []Partition) map[ObjectID]bool {
	out := map[ObjectID]bool{}
	for _, p := range partitions {
		for _, o := range p.Objects {
			out[o] = true
		}
	}
	return out
}

func assertCoversExactly(t *testing.T, partitions []Partition, output []ObjectID) {
	t.Helper()
	covered := coveredSet(partitions)
	want := append([]ObjectID(nil), output...)
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	var got []ObjectID
	for o := range covered {
		got = append(got, o)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	assert.Equal(t, want, got)
}
