package plan

import (
	"fmt"

	"github.com/samyama-ai/samyama-graph-sub000/pkg/cypher"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/graph"
)

// Eval evaluates a cypher.Expr against the variable bindings in row,
// producing the PropertyValue it denotes (spec §4.A/§4.E).
func Eval(expr cypher.Expr, row Row) (graph.PropertyValue, error) {
	switch e := expr.(type) {
	case cypher.Literal:
		return e.Value, nil
	case cypher.Variable:
		b, ok := row[e.Name]
		if !ok {
			return graph.Null, fmt.Errorf("plan: unbound variable %q", e.Name)
		}
		return b.AsValue(), nil
	case cypher.PropertyAccess:
		b, ok := row[e.Variable]
		if !ok {
			return graph.Null, fmt.Errorf("plan: unbound variable %q", e.Variable)
		}
		switch b.Kind {
		case BindNode:
			if v, ok := b.Node.Properties[e.Property]; ok {
				return v, nil
			}
			return graph.Null, nil
		case BindEdge:
			if v, ok := b.Edge.Properties[e.Property]; ok {
				return v, nil
			}
			return graph.Null, nil
		default:
			return graph.Null, nil
		}
	case cypher.UnaryExpr:
		return evalUnary(e, row)
	case cypher.BinaryExpr:
		return evalBinary(e, row)
	default:
		return graph.Null, fmt.Errorf("plan: unsupported expression %T", expr)
	}
}

func evalUnary(e cypher.UnaryExpr, row Row) (graph.PropertyValue, error) {
	v, err := Eval(e.Operand, row)
	if err != nil {
		return graph.Null, err
	}
	switch e.Op {
	case cypher.OpNot:
		b, ok := v.AsBoolean()
		if !ok {
			return graph.Null, fmt.Errorf("plan: NOT requires a boolean operand")
		}
		return graph.NewBoolean(!b), nil
	case cypher.OpNeg:
		if i, ok := v.AsInteger(); ok {
			return graph.NewInteger(-i), nil
		}
		if f, ok := v.AsFloat(); ok {
			return graph.NewFloat(-f), nil
		}
		return graph.Null, fmt.Errorf("plan: unary minus requires a numeric operand")
	default:
		return graph.Null, fmt.Errorf("plan: unknown unary operator")
	}
}

func evalBinary(e cypher.BinaryExpr, row Row) (graph.PropertyValue, error) {
	if e.Op == cypher.OpAnd || e.Op == cypher.OpOr {
		l, err := Eval(e.Left, row)
		if err != nil {
			return graph.Null, err
		}
		lb, ok := l.AsBoolean()
		if !ok {
			return graph.Null, fmt.Errorf("plan: AND/OR requires boolean operands")
		}
		if e.Op == cypher.OpAnd && !lb {
			return graph.NewBoolean(false), nil
		}
		if e.Op == cypher.OpOr && lb {
			return graph.NewBoolean(true), nil
		}
		r, err := Eval(e.Right, row)
		if err != nil {
			return graph.Null, err
		}
		rb, ok := r.AsBoolean()
		if !ok {
			return graph.Null, fmt.Errorf("plan: AND/OR requires boolean operands")
		}
		return graph.NewBoolean(rb), nil
	}

	l, err := Eval(e.Left, row)
	if err != nil {
		return graph.Null, err
	}
	r, err := Eval(e.Right, row)
	if err != nil {
		return graph.Null, err
	}

	var c int
	switch e.Op {
	case cypher.OpLt, cypher.OpLte, cypher.OpGt, cypher.OpGte:
		if l.IsNull() || r.IsNull() {
			return graph.Null, nil
		}
		if c, err = graph.CompareOrdinal(l, r); err != nil {
			return graph.Null, fmt.Errorf("plan: %w", err)
		}
	}

	switch e.Op {
	case cypher.OpEq:
		return graph.NewBoolean(l.Equal(r)), nil
	case cypher.OpNeq:
		return graph.NewBoolean(!l.Equal(r)), nil
	case cypher.OpLt:
		return graph.NewBoolean(c < 0), nil
	case cypher.OpLte:
		return graph.NewBoolean(c <= 0), nil
	case cypher.OpGt:
		return graph.NewBoolean(c > 0), nil
	case cypher.OpGte:
		return graph.NewBoolean(c >= 0), nil
	case cypher.OpAdd, cypher.OpSub, cypher.OpMul, cypher.OpDiv:
		return evalArith(e.Op, l, r)
	default:
		return graph.Null, fmt.Errorf("plan: unknown binary operator")
	}
}

func evalArith(op cypher.BinOp, l, r graph.PropertyValue) (graph.PropertyValue, error) {
	lf, lok := l.AsNumeric()
	rf, rok := r.AsNumeric()
	if !lok || !rok {
		return graph.Null, fmt.Errorf("plan: arithmetic requires numeric operands")
	}
	li, liok := l.AsInteger()
	ri, riok := r.AsInteger()
	switch op {
	case cypher.OpAdd:
		if liok && riok {
			return graph.NewInteger(li + ri), nil
		}
		return graph.NewFloat(lf + rf), nil
	case cypher.OpSub:
		if liok && riok {
			return graph.NewInteger(li - ri), nil
		}
		return graph.NewFloat(lf - rf), nil
	case cypher.OpMul:
		if liok && riok {
			return graph.NewInteger(li * ri), nil
		}
		return graph.NewFloat(lf * rf), nil
	case cypher.OpDiv:
		if rf == 0 {
			return graph.Null, fmt.Errorf("plan: division by zero")
		}
		return graph.NewFloat(lf / rf), nil
	default:
		return graph.Null, fmt.Errorf("plan: unknown arithmetic operator")
	}
}

// Truthy reports whether v satisfies a WHERE/Filter predicate. Non-boolean
// values (including Null) are not truthy, matching spec §4.A's strict
// typing posture over a JavaScript-style truthiness coercion.
func Truthy(v graph.PropertyValue) bool {
	b, ok := v.AsBoolean()
	return ok && b
}
