package plan

import (
	"fmt"

	"github.com/samyama-ai/samyama-graph-sub000/pkg/cypher"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/graph"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/store"
)

// Build translates a parsed cypher.Statement into an executable Operator
// pipeline over st, processing clauses left to right the way
// _examples/original_source/src/query/executor/planner.rs folds a clause
// list into nested iterators (spec §4.F).
func Build(stmt *cypher.Statement, st *store.Store) (Operator, error) {
	var cur Operator
	bound := map[string]bool{}

	for _, clause := range stmt.Clauses {
		var err error
		switch c := clause.(type) {
		case *cypher.MatchClause:
			cur, err = buildMatch(c, st, cur, bound)
		case *cypher.CreateClause:
			cur, err = buildCreate(c, st, cur, bound)
		case *cypher.SetClause:
			cur, err = buildSet(c, st, cur)
		case *cypher.DeleteClause:
			cur, err = buildDelete(c, st, cur)
		case *cypher.ReturnClause:
			cur, err = buildReturn(c, cur)
		default:
			err = fmt.Errorf("plan: unsupported clause %T", clause)
		}
		if err != nil {
			return nil, err
		}
	}
	if cur == nil {
		cur = &Once{}
	}
	return cur, nil
}

// buildMatch lowers one MATCH clause's patterns into a NodeScan followed by
// one Expand per traversed edge, per path, matching spec §4.F's pull model:
// the first path feeds the incoming pipeline (or starts a fresh one); a
// further path must start at an already-bound variable. A path starting at
// an unbound variable once a pipeline exists (a disjoint pattern such as
// "MATCH (a), (b)") is rejected with an error, since no cross-join
// operator exists — see DESIGN.md Section F's Open Question note.
func buildMatch(c *cypher.MatchClause, st *store.Store, input Operator, bound map[string]bool) (Operator, error) {
	op := input
	for _, path := range c.Paths {
		for i, node := range path.Nodes {
			if i == 0 {
				if !bound[node.Variable] {
					if op != nil {
						return nil, fmt.Errorf("plan: MATCH path starting at unbound variable %q is disjoint from the pattern before it; disjoint paths are not supported", node.Variable)
					}
					op = nodeScanFor(st, node)
					bound[node.Variable] = true
				}
				continue
			}
			edge := path.Edges[i-1]
			from := path.Nodes[i-1].Variable
			op = &Expand{
				Input:     op,
				Store:     st,
				FromVar:   from,
				EdgeVar:   edge.Variable,
				ToVar:     node.Variable,
				Types:     edge.Types,
				Direction: edge.Direction,
			}
			bound[node.Variable] = true
			if edge.Variable != "" {
				bound[edge.Variable] = true
			}
		}
	}
	if op == nil {
		return nil, fmt.Errorf("plan: empty MATCH pattern")
	}
	if c.Where != nil {
		op = &Filter{Input: op, Predicate: c.Where}
	}
	return op, nil
}

// nodeScanFor builds a NodeScan for node's label (falling back to a full
// store scan when no label is given), wrapped in a Filter when the pattern
// carries an inline property map, e.g. "(n:Person {name: 'Alice'})".
func nodeScanFor(st *store.Store, node cypher.NodePattern) Operator {
	scan := &NodeScan{Store: st, Variable: node.Variable}
	if len(node.Labels) > 0 {
		scan.Label = node.Labels[0]
	}
	if len(node.Properties) == 0 {
		return scan
	}
	var pred cypher.Expr
	for key, expr := range node.Properties {
		eq := cypher.BinaryExpr{
			Op:    cypher.OpEq,
			Left:  cypher.PropertyAccess{Variable: node.Variable, Property: key},
			Right: expr,
		}
		if pred == nil {
			pred = eq
		} else {
			pred = cypher.BinaryExpr{Op: cypher.OpAnd, Left: pred, Right: eq}
		}
	}
	return &Filter{Input: scan, Predicate: pred}
}

func edgeTypeOf(edge cypher.EdgePattern) graph.EdgeType {
	if len(edge.Types) > 0 {
		return edge.Types[0]
	}
	return ""
}

// buildCreate lowers a CREATE clause's patterns into CreateNode/CreateEdge
// operators, skipping any variable a preceding MATCH already bound — CREATE
// can extend a matched pattern with a new relationship to an existing node
// (spec §4.F CREATE execution).
func buildCreate(c *cypher.CreateClause, st *store.Store, input Operator, bound map[string]bool) (Operator, error) {
	op := input
	if op == nil {
		op = &Once{}
	}
	for _, path := range c.Paths {
		for _, node := range path.Nodes {
			if bound[node.Variable] {
				continue
			}
			op = &CreateNode{Input: op, Store: st, Variable: node.Variable, Labels: node.Labels, Properties: node.Properties}
			bound[node.Variable] = true
		}
		for i, edge := range path.Edges {
			from, to := path.Nodes[i].Variable, path.Nodes[i+1].Variable
			if edge.Direction == graph.Incoming {
				from, to = to, from
			}
			op = &CreateEdge{Input: op, Store: st, Variable: edge.Variable, FromVar: from, ToVar: to, Type: edgeTypeOf(edge), Properties: edge.Properties}
			if edge.Variable != "" {
				bound[edge.Variable] = true
			}
		}
	}
	return op, nil
}

func buildSet(c *cypher.SetClause, st *store.Store, input Operator) (Operator, error) {
	op := input
	if op == nil {
		return nil, fmt.Errorf("plan: SET requires a preceding MATCH or CREATE")
	}
	for _, item := range c.Items {
		op = &SetProperty{Input: op, Store: st, Variable: item.Variable, Property: item.Property, Value: item.Value}
	}
	return op, nil
}

func buildDelete(c *cypher.DeleteClause, st *store.Store, input Operator) (Operator, error) {
	if input == nil {
		return nil, fmt.Errorf("plan: DELETE requires a preceding MATCH")
	}
	return &DeleteEntity{Input: input, Store: st, Variables: c.Variables, Detach: c.Detach}, nil
}

func buildReturn(c *cypher.ReturnClause, input Operator) (Operator, error) {
	op := input
	if op == nil {
		op = &Once{}
	}
	if len(c.OrderBy) > 0 {
		op = &Sort{Input: op, OrderBy: c.OrderBy}
	}
	op = &Project{Input: op, Items: c.Items}
	if c.HasSkip || c.HasLimit {
		op = &SkipLimit{Input: op, Skip: c.Skip, Limit: c.Limit, HasLimit: c.HasLimit}
	}
	return op, nil
}
