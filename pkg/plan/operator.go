// Package plan implements spec §4.F: a Volcano-style physical-plan
// evaluator that executes a parsed pkg/cypher.Statement against a
// pkg/store.Store and pkg/index.Manager.
//
// Grounded on _examples/original_source/src/query/executor/{operator.rs,
// planner.rs}'s pull-based iterator model (next()/describe() on every
// operator), translated to Go's next/Describe method pair. The teacher has
// no planner of its own — pkg/cypher/executor.go interprets the raw query
// string directly — so this package's shape comes from the original
// implementation rather than the teacher.
package plan

import (
	"fmt"

	"github.com/samyama-ai/samyama-graph-sub000/pkg/graph"
)

// Row binds pattern variables to values for one tuple flowing through the
// operator pipeline: a *graph.Node, a *graph.Edge, or a scalar
// graph.PropertyValue (for computed/returned expressions).
type Row map[string]Binding

// BindingKind tags what a Row entry holds.
type BindingKind int

const (
	BindNode BindingKind = iota
	BindEdge
	BindValue
)

// Binding is one Row entry.
type Binding struct {
	Kind  BindingKind
	Node  *graph.Node
	Edge  *graph.Edge
	Value graph.PropertyValue
}

// NodeBinding wraps a node as a Binding.
func NodeBinding(n *graph.Node) Binding { return Binding{Kind: BindNode, Node: n} }

// EdgeBinding wraps an edge as a Binding.
func EdgeBinding(e *graph.Edge) Binding { return Binding{Kind: BindEdge, Edge: e} }

// ValueBinding wraps a scalar as a Binding.
func ValueBinding(v graph.PropertyValue) Binding { return Binding{Kind: BindValue, Value: v} }

// AsValue normalizes any Binding to the PropertyValue it stands for. Nodes
// and edges have no single scalar form, so they compare/return as Null —
// callers that need node/edge identity read .Node/.Edge directly.
func (b Binding) AsValue() graph.PropertyValue {
	if b.Kind == BindValue {
		return b.Value
	}
	return graph.Null
}

// Operator is one stage of a physical plan (spec §4.F). Next returns
// (row, true, nil) for each output tuple and (zero, false, nil) at
// exhaustion; any non-nil error aborts the pull chain.
type Operator interface {
	Open() error
	Next() (Row, bool, error)
	Close() error
	Describe() string
}

// Stats is a statistics surface offering the total node count and the
// per-label node count. It has no per-(label, key) distinct-value count,
// and the planner does not consult it: Build makes no cost-based choices.
type Stats interface {
	NodeCount() int
	LabelCount(l graph.Label) int
}

// describeChild renders a one-line-per-operator EXPLAIN tree (spec §4.F
// "EXPLAIN renders the operator tree with per-operator statistics").
func describeChild(name string, child Operator, extra string) string {
	base := name
	if extra != "" {
		base += " " + extra
	}
	if child == nil {
		return base
	}
	return fmt.Sprintf("%s\n  -> %s", base, indent(child.Describe()))
}

func indent(s string) string {
	out := ""
	for i, r := range s {
		out += string(r)
		if r == '\n' {
			out += "  "
		}
		_ = i
	}
	return out
}
