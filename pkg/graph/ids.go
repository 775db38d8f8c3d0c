// Package graph holds the primitive types of the property-graph model:
// identifiers, labels, edge types, and the PropertyValue tagged union.
//
// Label and EdgeType are comparable by value and usable as map keys, and
// NodeID and EdgeID compare with ==. PropertyValue can hold lists and maps,
// so it is not comparable with ==; use its Equal, Compare and Hash instead.
package graph

import "fmt"

// NodeID is an opaque, monotonically increasing identifier allocated by the
// store. IDs are never reused within a process lifetime, and a recovered ID
// must be >= the highest ID observed during WAL/snapshot replay.
type NodeID uint64

// EdgeID is the edge analogue of NodeID.
type EdgeID uint64

func (id NodeID) String() string { return fmt.Sprintf("n%d", uint64(id)) }
func (id EdgeID) String() string { return fmt.Sprintf("e%d", uint64(id)) }

// Label is an interned short string tag on a node. Labels compare by value
// and order lexicographically.
type Label string

// EdgeType is the edge analogue of Label: the symbolic relation name on a
// directed edge.
type EdgeType string

// IDAllocator hands out strictly increasing NodeID/EdgeID values. It is not
// itself synchronized — the store guards it along with everything else, the
// same way the teacher's storage engines leave locking to their caller.
type IDAllocator struct {
	nextNode NodeID
	nextEdge EdgeID
}

// NewIDAllocator returns an allocator that will hand out ids starting at 1
// (0 is reserved as the zero value / "no id").
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{nextNode: 1, nextEdge: 1}
}

// NextNodeID returns the next node id and advances the counter.
func (a *IDAllocator) NextNodeID() NodeID {
	id := a.nextNode
	a.nextNode++
	return id
}

// NextEdgeID returns the next edge id and advances the counter.
func (a *IDAllocator) NextEdgeID() EdgeID {
	id := a.nextEdge
	a.nextEdge++
	return id
}

// ObserveNodeID advances the node counter so that it exceeds id, used during
// WAL replay and recovered-entity ingestion to guarantee spec §3's
// "a recovered id must be >= max-seen-id after replay" invariant.
func (a *IDAllocator) ObserveNodeID(id NodeID) {
	if id >= a.nextNode {
		a.nextNode = id + 1
	}
}

// ObserveEdgeID is the edge analogue of ObserveNodeID.
func (a *IDAllocator) ObserveEdgeID(id EdgeID) {
	if id >= a.nextEdge {
		a.nextEdge = id + 1
	}
}
