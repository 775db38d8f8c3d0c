package procedure

import (
	"context"
	"fmt"

	"github.com/samyama-ai/samyama-graph-sub000/pkg/graph"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/index"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/store"
)

// RegisterBuiltins installs the spec's representative procedures
// (spec §4.H): db.index.vector.queryNodes, backed by the real HNSW index,
// and algo.or.solve, a stub for an external optimization-solver
// collaborator that consumes a pkg/algoview.GraphView.
func RegisterBuiltins(r *Registry, idx *index.Manager, st *store.Store) error {
	if err := r.Register(vectorQueryNodesProcedure(idx, st)); err != nil {
		return err
	}
	return r.Register(algoSolveStubProcedure())
}

// vectorQueryNodesProcedure implements db.index.vector.queryNodes(label,
// property, queryVector, k) YIELD nodeId, score — an ANN search against a
// named (label, property) vector index, backed by pkg/index.VectorIndex
// (spec §4.C/§4.H).
func vectorQueryNodesProcedure(idx *index.Manager, st *store.Store) Descriptor {
	return Descriptor{
		Name:        "db.index.vector.queryNodes",
		Description: "db.index.vector.queryNodes(label, property, queryVector, k) YIELD nodeId, score",
		Fields:      []string{"nodeId", "score"},
		Fn: func(ctx context.Context, tenant string, args []graph.PropertyValue) ([]Row, error) {
			if len(args) != 4 {
				return nil, fmt.Errorf("procedure: db.index.vector.queryNodes expects 4 arguments, got %d", len(args))
			}
			label, ok := args[0].AsString()
			if !ok {
				return nil, fmt.Errorf("procedure: label argument must be a string")
			}
			property, ok := args[1].AsString()
			if !ok {
				return nil, fmt.Errorf("procedure: property argument must be a string")
			}
			queryVec, ok := args[2].AsVector()
			if !ok {
				return nil, fmt.Errorf("procedure: queryVector argument must be a vector")
			}
			k, ok := args[3].AsInteger()
			if !ok {
				return nil, fmt.Errorf("procedure: k argument must be an integer")
			}

			vidx, ok := idx.LookupVectorIndex(graph.Label(label), property)
			if !ok {
				return nil, fmt.Errorf("procedure: no vector index on (%s, %s)", label, property)
			}
			results, err := vidx.Search(ctx, queryVec, int(k))
			if err != nil {
				return nil, err
			}
			rows := make([]Row, len(results))
			for i, res := range results {
				rows[i] = Row{
					"nodeId": graph.NewInteger(int64(res.NodeID)),
					"score":  graph.NewFloat(res.Distance),
				}
			}
			return rows, nil
		},
	}
}

// algoSolveStubProcedure implements algo.or.solve(problem) YIELD status,
// the hook point named in the spec for an external operations-research
// solver collaborator (spec §1 Non-goals: "graph algorithms beyond their
// GraphView input contract" — the solver itself lives outside this
// module; this procedure is the CALL surface it would be wired behind).
func algoSolveStubProcedure() Descriptor {
	return Descriptor{
		Name:        "algo.or.solve",
		Description: "algo.or.solve(problem) YIELD status -- hook for an external OR solver; not implemented here",
		Fields:      []string{"status"},
		Fn: func(ctx context.Context, tenant string, args []graph.PropertyValue) ([]Row, error) {
			return []Row{{"status": graph.NewString("unimplemented")}}, nil
		},
	}
}
