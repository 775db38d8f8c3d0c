// Package index implements the secondary indices of spec §4.C: an ordered
// property index per (Label, property) pair, and an HNSW vector index per
// (Label, property) pair.
//
// Grounded on _examples/original_source/src/index/property_index.rs
// (BTreeMap<PropertyValue, HashSet<NodeId>>) and src/index/manager.rs
// (IndexManager keyed by (Label, property)). No ordered-map/B-tree library
// appears anywhere in the example pack, so the ordered structure is a
// hand-rolled sorted slice with binary search, matching the pack's general
// posture of hand-rolling small data structures (e.g. the teacher's own
// apoc/algo/algo.go priority queue over container/heap) rather than pulling
// in an exotic container dependency.
package index

import (
	"sort"

	"github.com/samyama-ai/samyama-graph-sub000/pkg/graph"
)

// bucket is one distinct PropertyValue and the node ids that hold it.
type bucket struct {
	value graph.PropertyValue
	nodes map[graph.NodeID]struct{}
}

// PropertyIndex is an ordered value -> set<NodeID> index for one
// (Label, property) pair (spec §4.C). The reverse mapping is kept exactly
// in sync with every Insert/Remove call — there is no staleness window.
type PropertyIndex struct {
	buckets []bucket // sorted ascending by graph.Compare(value)
}

// NewPropertyIndex returns an empty index.
func NewPropertyIndex() *PropertyIndex {
	return &PropertyIndex{}
}

func (idx *PropertyIndex) find(value graph.PropertyValue) (int, bool) {
	i := sort.Search(len(idx.buckets), func(i int) bool {
		return graph.Compare(idx.buckets[i].value, value) >= 0
	})
	if i < len(idx.buckets) && idx.buckets[i].value.Equal(value) {
		return i, true
	}
	return i, false
}

// Insert adds node to the bucket for value, creating the bucket if needed.
func (idx *PropertyIndex) Insert(value graph.PropertyValue, node graph.NodeID) {
	i, ok := idx.find(value)
	if !ok {
		idx.buckets = append(idx.buckets, bucket{})
		copy(idx.buckets[i+1:], idx.buckets[i:])
		idx.buckets[i] = bucket{value: value, nodes: make(map[graph.NodeID]struct{})}
	}
	idx.buckets[i].nodes[node] = struct{}{}
}

// Remove removes node from value's bucket, dropping the bucket once empty.
// Removing a node that isn't present, or a value with no bucket, is a
// silent no-op — required for the consumer's idempotence contract
// (spec §4.D: reapplying a PropertySet after its effect must be harmless).
func (idx *PropertyIndex) Remove(value graph.PropertyValue, node graph.NodeID) {
	i, ok := idx.find(value)
	if !ok {
		return
	}
	delete(idx.buckets[i].nodes, node)
	if len(idx.buckets[i].nodes) == 0 {
		idx.buckets = append(idx.buckets[:i], idx.buckets[i+1:]...)
	}
}

// PointLookup returns every node holding exactly value.
func (idx *PropertyIndex) PointLookup(value graph.PropertyValue) []graph.NodeID {
	i, ok := idx.find(value)
	if !ok {
		return nil
	}
	return setToSlice(idx.buckets[i].nodes)
}

// RangeLookup returns every node whose indexed value falls within
// [lo, hi] (inclusivity controlled by loIncl/hiIncl). A nil lo/hi means
// unbounded on that side.
func (idx *PropertyIndex) RangeLookup(lo, hi *graph.PropertyValue, loIncl, hiIncl bool) []graph.NodeID {
	start := 0
	if lo != nil {
		start = sort.Search(len(idx.buckets), func(i int) bool {
			c := graph.Compare(idx.buckets[i].value, *lo)
			if loIncl {
				return c >= 0
			}
			return c > 0
		})
	}
	var out []graph.NodeID
	for i := start; i < len(idx.buckets); i++ {
		if hi != nil {
			c := graph.Compare(idx.buckets[i].value, *hi)
			if (hiIncl && c > 0) || (!hiIncl && c >= 0) {
				break
			}
		}
		out = append(out, setToSlice(idx.buckets[i].nodes)...)
	}
	return out
}

func setToSlice(set map[graph.NodeID]struct{}) []graph.NodeID {
	out := make([]graph.NodeID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// DistinctValueCount feeds the planner's statistics surface (spec §4.F:
// "per-(label, key) distinct-value count").
func (idx *PropertyIndex) DistinctValueCount() int { return len(idx.buckets) }
