package plan

import "github.com/samyama-ai/samyama-graph-sub000/pkg/graph"

// Effects collects every write a single Build'd pipeline performed during
// its last Collect call, gathered from the mutating operators reachable by
// walking the chain's Input links. pkg/db walks the built Operator after a
// successful Collect and appends a matching persistence.Entry per effect to
// the tenant's WAL before Execute returns to its caller (spec §4.G); the
// append is fsynced at once only when the WAL runs with SyncMode set.
type Effects struct {
	CreatedNodes []*graph.Node
	CreatedEdges []*graph.Edge
	SetProps     []AppliedSet
	DeletedNodes []graph.NodeID
	DeletedEdges []graph.EdgeID
}

// Mutations walks op's Input chain collecting every CreateNode/CreateEdge/
// SetProperty/DeleteEntity effect, in pipeline order (outermost operator
// first). Every wrapping operator in this package has a single Input, so
// the walk is a straight-line unwrap rather than a tree traversal.
func Mutations(op Operator) Effects {
	var e Effects
	for cur := op; cur != nil; {
		switch o := cur.(type) {
		case *CreateNode:
			e.CreatedNodes = append(e.CreatedNodes, o.Created...)
			cur = o.Input
		case *CreateEdge:
			e.CreatedEdges = append(e.CreatedEdges, o.Created...)
			cur = o.Input
		case *SetProperty:
			e.SetProps = append(e.SetProps, o.Applied...)
			cur = o.Input
		case *DeleteEntity:
			e.DeletedNodes = append(e.DeletedNodes, o.DeletedNodes...)
			e.DeletedEdges = append(e.DeletedEdges, o.DeletedEdges...)
			cur = o.Input
		case *Filter:
			cur = o.Input
		case *Expand:
			cur = o.Input
		case *Project:
			cur = o.Input
		case *SkipLimit:
			cur = o.Input
		case *Sort:
			cur = o.Input
		default:
			cur = nil
		}
	}
	return e
}
