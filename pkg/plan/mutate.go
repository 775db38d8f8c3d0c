package plan

import (
	"fmt"

	"github.com/samyama-ai/samyama-graph-sub000/pkg/cypher"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/graph"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/store"
)

// resolveProperties evaluates a pattern's property-map expressions against
// row, producing the concrete map store.CreateNode/CreateEdge expect.
func resolveProperties(props map[string]cypher.Expr, row Row) (map[string]graph.PropertyValue, error) {
	if len(props) == 0 {
		return nil, nil
	}
	out := make(map[string]graph.PropertyValue, len(props))
	for k, expr := range props {
		v, err := Eval(expr, row)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// CreateNode creates one node per input row from a CREATE pattern's node
// literal (spec §4.F CREATE execution), binding it to Variable.
type CreateNode struct {
	Input      Operator
	Store      *store.Store
	Variable   string
	Labels     []graph.Label
	Properties map[string]cypher.Expr

	// Created collects every node this operator creates, in order, so a
	// statement-level WAL append (owned by pkg/db) can log them after a
	// successful pull.
	Created []*graph.Node
}

func (c *CreateNode) Open() error { c.Created = nil; return c.Input.Open() }

func (c *CreateNode) Next() (Row, bool, error) {
	row, ok, err := c.Input.Next()
	if err != nil || !ok {
		return nil, false, err
	}
	props, err := resolveProperties(c.Properties, row)
	if err != nil {
		return nil, false, err
	}
	node, err := c.Store.CreateNode(c.Labels, props)
	if err != nil {
		return nil, false, err
	}
	c.Created = append(c.Created, node)

	out := make(Row, len(row)+1)
	for k, v := range row {
		out[k] = v
	}
	if c.Variable != "" {
		out[c.Variable] = NodeBinding(node)
	}
	return out, true, nil
}

func (c *CreateNode) Close() error { return c.Input.Close() }
func (c *CreateNode) Describe() string {
	return describeChild(fmt.Sprintf("CreateNode(%s)", c.Variable), c.Input, "")
}

// CreateEdge creates one edge per input row between two already-bound node
// variables (spec §4.F CREATE execution for relationship patterns).
type CreateEdge struct {
	Input      Operator
	Store      *store.Store
	Variable   string
	FromVar    string
	ToVar      string
	Type       graph.EdgeType
	Properties map[string]cypher.Expr

	Created []*graph.Edge
}

func (c *CreateEdge) Open() error { c.Created = nil; return c.Input.Open() }

func (c *CreateEdge) Next() (Row, bool, error) {
	row, ok, err := c.Input.Next()
	if err != nil || !ok {
		return nil, false, err
	}
	from, ok := row[c.FromVar]
	if !ok || from.Kind != BindNode {
		return nil, false, fmt.Errorf("plan: create edge source variable %q is not a bound node", c.FromVar)
	}
	to, ok := row[c.ToVar]
	if !ok || to.Kind != BindNode {
		return nil, false, fmt.Errorf("plan: create edge target variable %q is not a bound node", c.ToVar)
	}
	props, err := resolveProperties(c.Properties, row)
	if err != nil {
		return nil, false, err
	}
	edge, err := c.Store.CreateEdge(from.Node.ID, to.Node.ID, c.Type, props)
	if err != nil {
		return nil, false, err
	}
	c.Created = append(c.Created, edge)

	out := make(Row, len(row)+1)
	for k, v := range row {
		out[k] = v
	}
	if c.Variable != "" {
		out[c.Variable] = EdgeBinding(edge)
	}
	return out, true, nil
}

func (c *CreateEdge) Close() error { return c.Input.Close() }
func (c *CreateEdge) Describe() string {
	return describeChild(fmt.Sprintf("CreateEdge(%s)", c.Variable), c.Input, "")
}

// AppliedSet records one SET item's effect on a single row, so a
// statement-level WAL append (owned by pkg/db) can replay it as an
// UpdateNodeProperties/UpdateEdgeProperties entry.
type AppliedSet struct {
	IsEdge bool
	NodeID graph.NodeID
	EdgeID graph.EdgeID
	Key    string
	Value  graph.PropertyValue
}

// SetProperty applies one SET item to every input row's bound node or edge
// (spec §4.F SET execution).
type SetProperty struct {
	Input    Operator
	Store    *store.Store
	Variable string
	Property string
	Value    cypher.Expr

	// Applied collects every SET effect this operator performs, in order,
	// mirroring CreateNode.Created/CreateEdge.Created.
	Applied []AppliedSet
}

func (s *SetProperty) Open() error { s.Applied = nil; return s.Input.Open() }

func (s *SetProperty) Next() (Row, bool, error) {
	row, ok, err := s.Input.Next()
	if err != nil || !ok {
		return nil, false, err
	}
	b, ok := row[s.Variable]
	if !ok {
		return nil, false, fmt.Errorf("plan: SET target variable %q is unbound", s.Variable)
	}
	val, err := Eval(s.Value, row)
	if err != nil {
		return nil, false, err
	}
	switch b.Kind {
	case BindNode:
		if _, err := s.Store.SetNodeProperty(b.Node.ID, s.Property, val); err != nil {
			return nil, false, err
		}
		b.Node.Properties[s.Property] = val
		s.Applied = append(s.Applied, AppliedSet{NodeID: b.Node.ID, Key: s.Property, Value: val})
	case BindEdge:
		if _, err := s.Store.SetEdgeProperty(b.Edge.ID, s.Property, val); err != nil {
			return nil, false, err
		}
		b.Edge.Properties[s.Property] = val
		s.Applied = append(s.Applied, AppliedSet{IsEdge: true, EdgeID: b.Edge.ID, Key: s.Property, Value: val})
	default:
		return nil, false, fmt.Errorf("plan: SET target variable %q is not a node or edge", s.Variable)
	}
	return row, true, nil
}

func (s *SetProperty) Close() error { return s.Input.Close() }
func (s *SetProperty) Describe() string {
	return describeChild(fmt.Sprintf("SetProperty(%s.%s)", s.Variable, s.Property), s.Input, "")
}

// DeleteEntity removes the node or edge bound to each of Variables from
// every input row (spec §4.F DELETE/DETACH DELETE execution). Deleting a
// node that still has incident edges without Detach is an error, matching
// the spec's "delete is refused if edges remain unless DETACH is given"
// rule; Detach removes incident edges first.
type DeleteEntity struct {
	Input     Operator
	Store     *store.Store
	Variables []string
	Detach    bool

	// DeletedNodes/DeletedEdges collect every entity this operator removes,
	// in order, mirroring CreateNode.Created/CreateEdge.Created.
	DeletedNodes []graph.NodeID
	DeletedEdges []graph.EdgeID
}

func (d *DeleteEntity) Open() error {
	d.DeletedNodes, d.DeletedEdges = nil, nil
	return d.Input.Open()
}

func (d *DeleteEntity) Next() (Row, bool, error) {
	row, ok, err := d.Input.Next()
	if err != nil || !ok {
		return nil, false, err
	}
	for _, v := range d.Variables {
		b, ok := row[v]
		if !ok {
			return nil, false, fmt.Errorf("plan: DELETE target variable %q is unbound", v)
		}
		switch b.Kind {
		case BindNode:
			if !d.Detach {
				if len(d.Store.GetOutgoingEdges(b.Node.ID)) > 0 || len(d.Store.GetIncomingEdges(b.Node.ID)) > 0 {
					return nil, false, fmt.Errorf("plan: cannot delete node %s with incident edges without DETACH", b.Node.ID)
				}
			}
			if err := d.Store.DeleteNode(b.Node.ID); err != nil {
				return nil, false, err
			}
			d.DeletedNodes = append(d.DeletedNodes, b.Node.ID)
		case BindEdge:
			if err := d.Store.DeleteEdge(b.Edge.ID); err != nil {
				return nil, false, err
			}
			d.DeletedEdges = append(d.DeletedEdges, b.Edge.ID)
		default:
			return nil, false, fmt.Errorf("plan: DELETE target variable %q is not a node or edge", v)
		}
	}
	return row, true, nil
}

func (d *DeleteEntity) Close() error { return d.Input.Close() }
func (d *DeleteEntity) Describe() string {
	return describeChild("DeleteEntity", d.Input, fmt.Sprintf("vars=%v detach=%v", d.Variables, d.Detach))
}
