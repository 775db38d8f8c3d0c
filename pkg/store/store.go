// Package store implements the in-memory property-graph store (spec §3/§4.B):
// nodes, edges, adjacency, and the label/edge-type indices that are always
// kept synchronously consistent with the graph.
//
// Store is not internally synchronized, the same posture as the teacher's
// storage.Engine implementations (pkg/storage/memory.go in the reference
// repo): callers share it behind a single reader/writer lock (see pkg/db).
package store

import (
	"time"

	"github.com/samyama-ai/samyama-graph-sub000/pkg/graph"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/indexbus"
)

// Store owns the nodes, edges, and adjacency of one tenant's graph, plus the
// label and edge-type indices (spec §3's "GraphStore invariants" 1-3).
// Secondary (property/vector) indices live outside Store, maintained
// out-of-band by pkg/indexbus from the events Store emits.
type Store struct {
	tenant string
	ids    *graph.IDAllocator

	nodes map[graph.NodeID]*graph.Node
	edges map[graph.EdgeID]*graph.Edge

	outgoing map[graph.NodeID][]graph.EdgeID
	incoming map[graph.NodeID][]graph.EdgeID

	labelIndex    map[graph.Label]map[graph.NodeID]struct{}
	edgeTypeIndex map[graph.EdgeType]map[graph.EdgeID]struct{}

	// Sink receives an IndexEvent after every mutation. It is nil-safe: a
	// nil Sink means "no one is listening" (e.g. recovery ingestion before
	// the event bus is wired up).
	Sink indexbus.Sink
}

// New creates an empty store for the given tenant.
func New(tenant string) *Store {
	return &Store{
		tenant:        tenant,
		ids:           graph.NewIDAllocator(),
		nodes:         make(map[graph.NodeID]*graph.Node),
		edges:         make(map[graph.EdgeID]*graph.Edge),
		outgoing:      make(map[graph.NodeID][]graph.EdgeID),
		incoming:      make(map[graph.NodeID][]graph.EdgeID),
		labelIndex:    make(map[graph.Label]map[graph.NodeID]struct{}),
		edgeTypeIndex: make(map[graph.EdgeType]map[graph.EdgeID]struct{}),
	}
}

func (s *Store) Tenant() string { return s.tenant }

func (s *Store) emit(ev indexbus.IndexEvent) {
	if s.Sink != nil {
		s.Sink.Publish(ev)
	}
}

func copyProps(props map[string]graph.PropertyValue) map[string]graph.PropertyValue {
	cp := make(map[string]graph.PropertyValue, len(props))
	for k, v := range props {
		cp[k] = v
	}
	return cp
}

// CreateNode allocates a new node id, inserts the node, updates the label
// index, and emits NodeCreated. Spec §4.B requires at least one label.
func (s *Store) CreateNode(labels []graph.Label, properties map[string]graph.PropertyValue) (*graph.Node, error) {
	if len(labels) == 0 {
		return nil, ErrNodeNeedsLabel
	}
	now := time.Now()
	n := &graph.Node{
		ID:         s.ids.NextNodeID(),
		Version:    1,
		Labels:     append([]graph.Label(nil), labels...),
		Properties: copyProps(properties),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.insertNode(n)
	s.emit(indexbus.IndexEvent{
		Kind: indexbus.NodeCreated, Tenant: s.tenant, NodeID: n.ID,
		Labels: n.Labels, Properties: n.Properties,
	})
	return n.Clone(), nil
}

// InsertRecoveredNode ingests a node during WAL/snapshot replay, preserving
// its original id and bypassing allocation, but still advancing the id
// counter past it (spec §4.B recovery ingestion operations).
func (s *Store) InsertRecoveredNode(n *graph.Node) {
	s.ids.ObserveNodeID(n.ID)
	s.insertNode(n.Clone())
}

func (s *Store) insertNode(n *graph.Node) {
	s.nodes[n.ID] = n
	for _, l := range n.Labels {
		s.addToLabelIndex(l, n.ID)
	}
	if _, ok := s.outgoing[n.ID]; !ok {
		s.outgoing[n.ID] = nil
	}
	if _, ok := s.incoming[n.ID]; !ok {
		s.incoming[n.ID] = nil
	}
}

func (s *Store) addToLabelIndex(l graph.Label, id graph.NodeID) {
	set, ok := s.labelIndex[l]
	if !ok {
		set = make(map[graph.NodeID]struct{})
		s.labelIndex[l] = set
	}
	set[id] = struct{}{}
}

func (s *Store) removeFromLabelIndex(l graph.Label, id graph.NodeID) {
	if set, ok := s.labelIndex[l]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(s.labelIndex, l)
		}
	}
}

// GetNode returns an immutable snapshot of the node, or (nil, false) if
// absent (spec §4.B: "None (returns absent)").
func (s *Store) GetNode(id graph.NodeID) (*graph.Node, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// HasNode reports existence without allocating a clone.
func (s *Store) HasNode(id graph.NodeID) bool {
	_, ok := s.nodes[id]
	return ok
}

func (s *Store) HasEdge(id graph.EdgeID) bool {
	_, ok := s.edges[id]
	return ok
}

// DeleteNode removes the node and every incident edge from every index,
// emitting NodeDeleted with the labels/properties captured at the moment of
// deletion (spec §4.B).
func (s *Store) DeleteNode(id graph.NodeID) error {
	n, ok := s.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	for _, eid := range append([]graph.EdgeID(nil), s.outgoing[id]...) {
		_ = s.deleteEdge(eid)
	}
	for _, eid := range append([]graph.EdgeID(nil), s.incoming[id]...) {
		_ = s.deleteEdge(eid)
	}
	for _, l := range n.Labels {
		s.removeFromLabelIndex(l, id)
	}
	delete(s.nodes, id)
	delete(s.outgoing, id)
	delete(s.incoming, id)

	s.emit(indexbus.IndexEvent{
		Kind: indexbus.NodeDeleted, Tenant: s.tenant, NodeID: id,
		Labels: n.Labels, Properties: n.Properties,
	})
	return nil
}

// AddLabel adds L to the node's label set and updates the label index.
func (s *Store) AddLabel(id graph.NodeID, l graph.Label) error {
	n, ok := s.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	if n.HasLabel(l) {
		return nil
	}
	n.Labels = append(n.Labels, l)
	n.UpdatedAt = time.Now()
	s.addToLabelIndex(l, id)
	s.emit(indexbus.IndexEvent{
		Kind: indexbus.LabelAdded, Tenant: s.tenant, NodeID: id,
		Label: l, Labels: n.Labels, Properties: copyProps(n.Properties),
	})
	return nil
}

// RemoveLabel removes L from the node's label set and updates the index.
func (s *Store) RemoveLabel(id graph.NodeID, l graph.Label) error {
	n, ok := s.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	out := n.Labels[:0]
	removed := false
	for _, have := range n.Labels {
		if have == l {
			removed = true
			continue
		}
		out = append(out, have)
	}
	n.Labels = out
	if removed {
		n.UpdatedAt = time.Now()
		s.removeFromLabelIndex(l, id)
	}
	return nil
}

// SetNodeProperty replaces property k on node id, returning the old value
// (Null if previously unset) and emitting PropertySet.
func (s *Store) SetNodeProperty(id graph.NodeID, key string, value graph.PropertyValue) (graph.PropertyValue, error) {
	n, ok := s.nodes[id]
	if !ok {
		return graph.Null, ErrNodeNotFound
	}
	old, existed := n.Properties[key]
	if !existed {
		old = graph.Null
	}
	n.Properties[key] = value
	n.UpdatedAt = time.Now()

	var oldPtr *graph.PropertyValue
	if existed {
		oldPtr = &old
	}
	s.emit(indexbus.IndexEvent{
		Kind: indexbus.PropertySet, Tenant: s.tenant, NodeID: id,
		Labels: append([]graph.Label(nil), n.Labels...), Key: key,
		OldValue: oldPtr, NewValue: value,
	})
	return old, nil
}

// RemoveNodeProperty deletes property k, returning whether it existed.
func (s *Store) RemoveNodeProperty(id graph.NodeID, key string) (bool, error) {
	n, ok := s.nodes[id]
	if !ok {
		return false, ErrNodeNotFound
	}
	_, existed := n.Properties[key]
	delete(n.Properties, key)
	if existed {
		n.UpdatedAt = time.Now()
	}
	return existed, nil
}

// CreateEdge allocates a new edge between existing nodes and updates
// adjacency + the edge-type index (spec §4.B). Both endpoints must exist.
func (s *Store) CreateEdge(source, target graph.NodeID, edgeType graph.EdgeType, properties map[string]graph.PropertyValue) (*graph.Edge, error) {
	if !s.HasNode(source) {
		return nil, ErrInvalidEdgeSource
	}
	if !s.HasNode(target) {
		return nil, ErrInvalidEdgeTarget
	}
	e := &graph.Edge{
		ID:         s.ids.NextEdgeID(),
		Source:     source,
		Target:     target,
		Type:       edgeType,
		Properties: copyProps(properties),
		CreatedAt:  time.Now(),
	}
	s.insertEdge(e)
	return e.Clone(), nil
}

// InsertRecoveredEdge ingests an edge during replay: preserves its id,
// still enforces endpoint existence (spec §4.B).
func (s *Store) InsertRecoveredEdge(e *graph.Edge) error {
	if !s.HasNode(e.Source) {
		return ErrInvalidEdgeSource
	}
	if !s.HasNode(e.Target) {
		return ErrInvalidEdgeTarget
	}
	s.ids.ObserveEdgeID(e.ID)
	s.insertEdge(e.Clone())
	return nil
}

func (s *Store) insertEdge(e *graph.Edge) {
	s.edges[e.ID] = e
	s.outgoing[e.Source] = append(s.outgoing[e.Source], e.ID)
	s.incoming[e.Target] = append(s.incoming[e.Target], e.ID)
	set, ok := s.edgeTypeIndex[e.Type]
	if !ok {
		set = make(map[graph.EdgeID]struct{})
		s.edgeTypeIndex[e.Type] = set
	}
	set[e.ID] = struct{}{}
}

// DeleteEdge removes the edge from adjacency and the edge-type index.
func (s *Store) DeleteEdge(id graph.EdgeID) error {
	return s.deleteEdge(id)
}

func (s *Store) deleteEdge(id graph.EdgeID) error {
	e, ok := s.edges[id]
	if !ok {
		return ErrEdgeNotFound
	}
	s.outgoing[e.Source] = removeEdgeID(s.outgoing[e.Source], id)
	s.incoming[e.Target] = removeEdgeID(s.incoming[e.Target], id)
	if set, ok := s.edgeTypeIndex[e.Type]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(s.edgeTypeIndex, e.Type)
		}
	}
	delete(s.edges, id)
	return nil
}

func removeEdgeID(ids []graph.EdgeID, target graph.EdgeID) []graph.EdgeID {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// SetEdgeProperty sets (or replaces) property key on edge id, returning the
// prior value (graph.Null if it didn't exist). Unlike nodes, edges carry no
// IndexEvent today — property indices are keyed by (Label, property), and
// edges have no label — so this does not emit on s.Sink.
func (s *Store) SetEdgeProperty(id graph.EdgeID, key string, value graph.PropertyValue) (graph.PropertyValue, error) {
	e, ok := s.edges[id]
	if !ok {
		return graph.Null, ErrEdgeNotFound
	}
	old, existed := e.Properties[key]
	if !existed {
		old = graph.Null
	}
	e.Properties[key] = value
	return old, nil
}

func (s *Store) GetEdge(id graph.EdgeID) (*graph.Edge, bool) {
	e, ok := s.edges[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// GetOutgoingEdges returns an unordered snapshot of edges leaving n.
func (s *Store) GetOutgoingEdges(n graph.NodeID) []*graph.Edge {
	ids := s.outgoing[n]
	out := make([]*graph.Edge, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.edges[id]; ok {
			out = append(out, e.Clone())
		}
	}
	return out
}

// GetIncomingEdges returns an unordered snapshot of edges entering n.
func (s *Store) GetIncomingEdges(n graph.NodeID) []*graph.Edge {
	ids := s.incoming[n]
	out := make([]*graph.Edge, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.edges[id]; ok {
			out = append(out, e.Clone())
		}
	}
	return out
}

// GetNodesByLabel returns an unordered snapshot of nodes carrying L.
func (s *Store) GetNodesByLabel(l graph.Label) []*graph.Node {
	set := s.labelIndex[l]
	out := make([]*graph.Node, 0, len(set))
	for id := range set {
		if n, ok := s.nodes[id]; ok {
			out = append(out, n.Clone())
		}
	}
	return out
}

// GetEdgesByType returns an unordered snapshot of edges of type T.
func (s *Store) GetEdgesByType(t graph.EdgeType) []*graph.Edge {
	set := s.edgeTypeIndex[t]
	out := make([]*graph.Edge, 0, len(set))
	for id := range set {
		if e, ok := s.edges[id]; ok {
			out = append(out, e.Clone())
		}
	}
	return out
}

// AllNodes returns every node, ascending by NodeID (spec §4.F NodeScan
// order contract relies on this).
func (s *Store) AllNodes() []*graph.Node {
	out := make([]*graph.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n.Clone())
	}
	sortNodesByID(out)
	return out
}

func sortNodesByID(nodes []*graph.Node) {
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && nodes[j-1].ID > nodes[j].ID; j-- {
			nodes[j-1], nodes[j] = nodes[j], nodes[j-1]
		}
	}
}

// NodeCount and EdgeCount back tenancy usage accounting and planner
// statistics (spec §4.F "Scan cost ~ selectivity x label cardinality").
func (s *Store) NodeCount() int { return len(s.nodes) }
func (s *Store) EdgeCount() int { return len(s.edges) }

// LabelCount returns |label_index[L]|, one of the planner's statistics.
func (s *Store) LabelCount(l graph.Label) int { return len(s.labelIndex[l]) }
