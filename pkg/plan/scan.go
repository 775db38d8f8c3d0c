package plan

import (
	"fmt"

	"github.com/samyama-ai/samyama-graph-sub000/pkg/cypher"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/graph"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/store"
)

// Once yields a single empty row, the unit source a CREATE-only statement
// (no preceding MATCH) is built on top of.
type Once struct {
	done bool
}

func (o *Once) Open() error { o.done = false; return nil }
func (o *Once) Next() (Row, bool, error) {
	if o.done {
		return nil, false, nil
	}
	o.done = true
	return Row{}, true, nil
}
func (o *Once) Close() error     { return nil }
func (o *Once) Describe() string { return "Once" }

// NodeScan yields one row per matching node bound to Variable (spec §4.F).
// When Label is non-empty it walks the store's label index
// (store.GetNodesByLabel); otherwise it falls back to a full store.AllNodes
// scan, the "selectivity x label cardinality" cost tradeoff the spec's
// statistics surface exists to make visible in EXPLAIN output.
type NodeScan struct {
	Store    *store.Store
	Variable string
	Label    graph.Label

	nodes []*graph.Node
	idx   int
}

func (n *NodeScan) Open() error {
	if n.Label != "" {
		n.nodes = n.Store.GetNodesByLabel(n.Label)
	} else {
		n.nodes = n.Store.AllNodes()
	}
	n.idx = 0
	return nil
}

func (n *NodeScan) Next() (Row, bool, error) {
	if n.idx >= len(n.nodes) {
		return nil, false, nil
	}
	node := n.nodes[n.idx]
	n.idx++
	return Row{n.Variable: NodeBinding(node)}, true, nil
}

func (n *NodeScan) Close() error { return nil }

func (n *NodeScan) Describe() string {
	if n.Label != "" {
		return fmt.Sprintf("NodeScan(%s:%s) cardinality=%d", n.Variable, n.Label, n.Store.LabelCount(n.Label))
	}
	return fmt.Sprintf("NodeScan(%s) cardinality=%d", n.Variable, n.Store.NodeCount())
}

// Expand walks every edge of the requested type(s)/direction incident to
// the node bound to FromVar, binding the traversed edge to EdgeVar (if
// non-empty) and the far-side node to ToVar, for every row its input
// produces (spec §4.F's join operator).
type Expand struct {
	Input     Operator
	Store     *store.Store
	FromVar   string
	EdgeVar   string
	ToVar     string
	Types     []graph.EdgeType
	Direction graph.Direction

	curRow Row
	edges  []*graph.Edge
	idx    int
}

func (e *Expand) Open() error {
	if err := e.Input.Open(); err != nil {
		return err
	}
	e.curRow = nil
	e.edges = nil
	e.idx = 0
	return nil
}

func (e *Expand) matchesType(t graph.EdgeType) bool {
	if len(e.Types) == 0 {
		return true
	}
	for _, want := range e.Types {
		if want == t {
			return true
		}
	}
	return false
}

func (e *Expand) candidateEdges(from graph.NodeID) []*graph.Edge {
	var out []*graph.Edge
	switch e.Direction {
	case graph.Outgoing:
		out = e.Store.GetOutgoingEdges(from)
	case graph.Incoming:
		out = e.Store.GetIncomingEdges(from)
	default:
		out = append(e.Store.GetOutgoingEdges(from), e.Store.GetIncomingEdges(from)...)
	}
	filtered := out[:0]
	for _, edge := range out {
		if e.matchesType(edge.Type) {
			filtered = append(filtered, edge)
		}
	}
	return filtered
}

func (e *Expand) Next() (Row, bool, error) {
	for {
		if e.idx >= len(e.edges) {
			row, ok, err := e.Input.Next()
			if err != nil || !ok {
				return nil, false, err
			}
			binding, ok := row[e.FromVar]
			if !ok || binding.Kind != BindNode {
				return nil, false, fmt.Errorf("plan: expand source variable %q is not a node", e.FromVar)
			}
			e.curRow = row
			e.edges = e.candidateEdges(binding.Node.ID)
			e.idx = 0
			continue
		}
		edge := e.edges[e.idx]
		e.idx++

		fromID := e.curRow[e.FromVar].Node.ID
		var farSideID graph.NodeID
		switch {
		case edge.Source == fromID && e.Direction != graph.Incoming:
			farSideID = edge.Target
		case edge.Target == fromID:
			farSideID = edge.Source
		default:
			farSideID = edge.Target
		}
		farNode, ok := e.Store.GetNode(farSideID)
		if !ok {
			continue
		}

		out := make(Row, len(e.curRow)+2)
		for k, v := range e.curRow {
			out[k] = v
		}
		if e.EdgeVar != "" {
			out[e.EdgeVar] = EdgeBinding(edge)
		}
		out[e.ToVar] = NodeBinding(farNode)
		return out, true, nil
	}
}

func (e *Expand) Close() error { return e.Input.Close() }

func (e *Expand) Describe() string {
	extra := fmt.Sprintf("(%s)-%s->(%s)", e.FromVar, e.Direction, e.ToVar)
	return describeChild("Expand "+extra, e.Input, "")
}

// Filter drops every row for which Predicate does not evaluate truthy
// (spec §4.F).
type Filter struct {
	Input     Operator
	Predicate cypher.Expr
}

func (f *Filter) Open() error { return f.Input.Open() }

func (f *Filter) Next() (Row, bool, error) {
	for {
		row, ok, err := f.Input.Next()
		if err != nil || !ok {
			return nil, false, err
		}
		v, err := Eval(f.Predicate, row)
		if err != nil {
			return nil, false, err
		}
		if Truthy(v) {
			return row, true, nil
		}
	}
}

func (f *Filter) Close() error     { return f.Input.Close() }
func (f *Filter) Describe() string { return describeChild("Filter", f.Input, "") }

// Project evaluates Items against each input row, producing a row of scalar
// ValueBindings keyed by alias (without an alias: the variable name, or
// "var.prop" for a property access, or "col<i>" for any other expression)
// — the terminal shape RETURN hands back to a caller
// (spec §4.F).
type Project struct {
	Input Operator
	Items []cypher.ReturnItem
}

func (p *Project) Open() error { return p.Input.Open() }

func exprLabel(item cypher.ReturnItem, idx int) string {
	if item.Alias != "" {
		return item.Alias
	}
	switch e := item.Expr.(type) {
	case cypher.Variable:
		return e.Name
	case cypher.PropertyAccess:
		return e.Variable + "." + e.Property
	default:
		return fmt.Sprintf("col%d", idx)
	}
}

func (p *Project) Next() (Row, bool, error) {
	row, ok, err := p.Input.Next()
	if err != nil || !ok {
		return nil, false, err
	}
	out := make(Row, len(p.Items))
	for i, item := range p.Items {
		if v, isVar := item.Expr.(cypher.Variable); isVar {
			if b, bound := row[v.Name]; bound && b.Kind != BindValue {
				out[exprLabel(item, i)] = b
				continue
			}
		}
		val, err := Eval(item.Expr, row)
		if err != nil {
			return nil, false, err
		}
		out[exprLabel(item, i)] = ValueBinding(val)
	}
	return out, true, nil
}

func (p *Project) Close() error     { return p.Input.Close() }
func (p *Project) Describe() string { return describeChild("Project", p.Input, "") }
