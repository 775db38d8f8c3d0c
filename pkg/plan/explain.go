package plan

// Explain returns the operator-tree description of an already-built op
// without running it, satisfying spec §4.F's "EXPLAIN renders the operator tree
// with per-operator statistics" without executing any mutation.
func Explain(op Operator) string { return op.Describe() }

// Collect pulls every row from op until exhaustion, the terminal step of
// MATCH/CREATE/RETURN execution (spec §4.F). Callers that only need side
// effects (CREATE/SET/DELETE with no RETURN) still call Collect to drive
// the pipeline to completion.
func Collect(op Operator) ([]Row, error) {
	if err := op.Open(); err != nil {
		return nil, err
	}
	defer op.Close()
	var rows []Row
	for {
		row, ok, err := op.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		rows = append(rows, row)
	}
	return rows, nil
}
