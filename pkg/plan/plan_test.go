package plan

import (
	"testing"

	"github.com/samyama-ai/samyama-graph-sub000/pkg/cypher"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/graph"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/store"
)

func mustParse(t *testing.T, q string) *cypher.Statement {
	t.Helper()
	stmt, err := cypher.Parse(q)
	if err != nil {
		t.Fatalf("parse %q: %v", q, err)
	}
	return stmt
}

func TestBuildAndRunCreateThenMatch(t *testing.T) {
	st := store.New("t1")

	stmt := mustParse(t, `CREATE (a:Person {name: "Alice", age: 30})`)
	op, err := Build(stmt, st)
	if err != nil {
		t.Fatalf("build create: %v", err)
	}
	if _, err := Collect(op); err != nil {
		t.Fatalf("collect create: %v", err)
	}
	if st.NodeCount() != 1 {
		t.Fatalf("expected 1 node after create, got %d", st.NodeCount())
	}

	stmt = mustParse(t, `MATCH (n:Person) WHERE n.age >= 18 RETURN n.name AS name`)
	op, err = Build(stmt, st)
	if err != nil {
		t.Fatalf("build match: %v", err)
	}
	rows, err := Collect(op)
	if err != nil {
		t.Fatalf("collect match: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	name, _ := rows[0]["name"].Value.AsString()
	if name != "Alice" {
		t.Fatalf("expected name Alice, got %q", name)
	}
}

func TestBuildTraversalAndSet(t *testing.T) {
	st := store.New("t1")
	a, _ := st.CreateNode([]graph.Label{"User"}, map[string]graph.PropertyValue{"name": graph.NewString("a")})
	b, _ := st.CreateNode([]graph.Label{"User"}, map[string]graph.PropertyValue{"name": graph.NewString("b")})
	if _, err := st.CreateEdge(a.ID, b.ID, "FOLLOWS", nil); err != nil {
		t.Fatalf("create edge: %v", err)
	}

	stmt := mustParse(t, `MATCH (x:User)-[:FOLLOWS]->(y:User) RETURN x.name AS from, y.name AS to`)
	op, err := Build(stmt, st)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	rows, err := Collect(op)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 traversal row, got %d", len(rows))
	}
	from, _ := rows[0]["from"].Value.AsString()
	to, _ := rows[0]["to"].Value.AsString()
	if from != "a" || to != "b" {
		t.Fatalf("unexpected traversal result: from=%q to=%q", from, to)
	}

	setStmt := mustParse(t, `MATCH (x:User) WHERE x.name = "a" SET x.name = "aa"`)
	op, err = Build(setStmt, st)
	if err != nil {
		t.Fatalf("build set: %v", err)
	}
	if _, err := Collect(op); err != nil {
		t.Fatalf("collect set: %v", err)
	}
	got, _ := st.GetNode(a.ID)
	name, _ := got.Properties["name"].AsString()
	if name != "aa" {
		t.Fatalf("expected updated name aa, got %q", name)
	}
}

func TestExplainRendersOperatorTree(t *testing.T) {
	st := store.New("t1")
	stmt := mustParse(t, `MATCH (n:Person) RETURN n.name`)
	op, err := Build(stmt, st)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	out := Explain(op)
	if out == "" {
		t.Fatal("expected non-empty explain output")
	}
}

func TestDeleteRefusesNodeWithEdgesWithoutDetach(t *testing.T) {
	st := store.New("t1")
	a, _ := st.CreateNode([]graph.Label{"N"}, nil)
	b, _ := st.CreateNode([]graph.Label{"N"}, nil)
	if _, err := st.CreateEdge(a.ID, b.ID, "REL", nil); err != nil {
		t.Fatalf("create edge: %v", err)
	}

	stmt := mustParse(t, `MATCH (n:N) WHERE n.name = "missing" DELETE n`)
	op, err := Build(stmt, st)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	// The WHERE clause matches nothing real, so this run is a no-op; the
	// point of this test is the direct DeleteEntity behavior below.
	if _, err := Collect(op); err != nil {
		t.Fatalf("collect: %v", err)
	}

	del := &DeleteEntity{Input: &onceWithRow{row: Row{"n": NodeBinding(a)}}, Store: st, Variables: []string{"n"}}
	if _, err := Collect(del); err == nil {
		t.Fatal("expected delete without DETACH to fail on node with edges")
	}
}

// onceWithRow yields a single caller-supplied row, used to exercise
// DeleteEntity directly against a node known to have incident edges.
type onceWithRow struct {
	row  Row
	done bool
}

func (o *onceWithRow) Open() error { o.done = false; return nil }
func (o *onceWithRow) Next() (Row, bool, error) {
	if o.done {
		return nil, false, nil
	}
	o.done = true
	return o.row, true, nil
}
func (o *onceWithRow) Close() error     { return nil }
func (o *onceWithRow) Describe() string { return "onceWithRow" }
