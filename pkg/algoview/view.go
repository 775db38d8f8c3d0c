// Package algoview builds a dense, CSR-encoded projection of a store's
// topology for external graph-algorithm collaborators (spec §4.H / §1
// "Non-goals: graph algorithms beyond their GraphView input contract").
//
// Grounded on _examples/original_source/src/algo/common.rs's GraphView,
// generalized from its Vec<Vec<usize>> adjacency lists to a flat
// compressed-sparse-row layout (offsets + targets), which is the
// dense-iteration-friendly shape algorithms like PageRank or connected
// components actually want, and which the spec names explicitly
// (out_offsets/out_targets, in_offsets/in_sources).
package algoview

import (
	"github.com/samyama-ai/samyama-graph-sub000/pkg/graph"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/store"
)

// GraphView is a read-only, integer-indexed projection of a store's
// topology, optionally filtered by node label and/or edge type.
type GraphView struct {
	NodeCount int

	// IndexToNode/NodeToIndex translate between the dense [0, NodeCount)
	// index space and NodeIDs.
	IndexToNode []graph.NodeID
	NodeToIndex map[graph.NodeID]int

	// CSR adjacency: OutOffsets has NodeCount+1 entries; node i's outgoing
	// targets are OutTargets[OutOffsets[i]:OutOffsets[i+1]].
	OutOffsets []int
	OutTargets []int

	// InOffsets/InSources are the CSR encoding of incoming adjacency.
	InOffsets []int
	InSources []int

	// Weights holds one float64 per edge position in OutTargets, aligned
	// 1:1, only populated when WithWeightProperty is given. nil otherwise.
	Weights []float64
}

// Option configures Build.
type Option func(*buildConfig)

type buildConfig struct {
	label          graph.Label
	hasLabel       bool
	edgeType       graph.EdgeType
	hasEdgeType    bool
	weightProperty string
}

// WithLabelFilter restricts the view to nodes carrying label.
func WithLabelFilter(label graph.Label) Option {
	return func(c *buildConfig) { c.label, c.hasLabel = label, true }
}

// WithEdgeTypeFilter restricts the view to edges of the given type.
func WithEdgeTypeFilter(edgeType graph.EdgeType) Option {
	return func(c *buildConfig) { c.edgeType, c.hasEdgeType = edgeType, true }
}

// WithWeightProperty populates Weights from each edge's numeric property
// named key; edges missing the property or holding a non-numeric value get
// weight 1.0.
func WithWeightProperty(key string) Option {
	return func(c *buildConfig) { c.weightProperty = key }
}

// Build projects s into a CSR GraphView (spec §4.H).
func Build(s *store.Store, opts ...Option) *GraphView {
	cfg := buildConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	var nodes []*graph.Node
	if cfg.hasLabel {
		nodes = s.GetNodesByLabel(cfg.label)
	} else {
		nodes = s.AllNodes()
	}

	indexToNode := make([]graph.NodeID, len(nodes))
	nodeToIndex := make(map[graph.NodeID]int, len(nodes))
	for i, n := range nodes {
		indexToNode[i] = n.ID
		nodeToIndex[n.ID] = i
	}
	n := len(indexToNode)

	outBuckets := make([][]int, n)
	inBuckets := make([][]int, n)
	var weightBuckets [][]float64
	if cfg.weightProperty != "" {
		weightBuckets = make([][]float64, n)
	}

	for uIdx, id := range indexToNode {
		for _, e := range s.GetOutgoingEdges(id) {
			if cfg.hasEdgeType && e.Type != cfg.edgeType {
				continue
			}
			vIdx, ok := nodeToIndex[e.Target]
			if !ok {
				continue
			}
			outBuckets[uIdx] = append(outBuckets[uIdx], vIdx)
			inBuckets[vIdx] = append(inBuckets[vIdx], uIdx)
			if weightBuckets != nil {
				weightBuckets[uIdx] = append(weightBuckets[uIdx], edgeWeight(e, cfg.weightProperty))
			}
		}
	}

	view := &GraphView{
		NodeCount:   n,
		IndexToNode: indexToNode,
		NodeToIndex: nodeToIndex,
	}
	view.OutOffsets, view.OutTargets = flatten(outBuckets)
	view.InOffsets, view.InSources = flatten(inBuckets)
	if weightBuckets != nil {
		_, view.Weights = flattenWeights(weightBuckets)
	}
	return view
}

func edgeWeight(e *graph.Edge, key string) float64 {
	v, ok := e.Properties[key]
	if !ok {
		return 1.0
	}
	if f, ok := v.AsNumeric(); ok {
		return f
	}
	return 1.0
}

func flatten(buckets [][]int) ([]int, []int) {
	offsets := make([]int, len(buckets)+1)
	total := 0
	for i, b := range buckets {
		offsets[i] = total
		total += len(b)
	}
	offsets[len(buckets)] = total
	flat := make([]int, 0, total)
	for _, b := range buckets {
		flat = append(flat, b...)
	}
	return offsets, flat
}

func flattenWeights(buckets [][]float64) ([]int, []float64) {
	offsets := make([]int, len(buckets)+1)
	total := 0
	for i, b := range buckets {
		offsets[i] = total
		total += len(b)
	}
	offsets[len(buckets)] = total
	flat := make([]float64, 0, total)
	for _, b := range buckets {
		flat = append(flat, b...)
	}
	return offsets, flat
}

// OutDegree returns the out-degree of node idx.
func (v *GraphView) OutDegree(idx int) int { return v.OutOffsets[idx+1] - v.OutOffsets[idx] }

// InDegree returns the in-degree of node idx.
func (v *GraphView) InDegree(idx int) int { return v.InOffsets[idx+1] - v.InOffsets[idx] }

// Out returns the slice of target indices for node idx's outgoing edges.
func (v *GraphView) Out(idx int) []int { return v.OutTargets[v.OutOffsets[idx]:v.OutOffsets[idx+1]] }

// In returns the slice of source indices for node idx's incoming edges.
func (v *GraphView) In(idx int) []int { return v.InSources[v.InOffsets[idx]:v.InOffsets[idx+1]] }
