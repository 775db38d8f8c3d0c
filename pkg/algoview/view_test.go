package algoview

import (
	"testing"

	"github.com/samyama-ai/samyama-graph-sub000/pkg/graph"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/store"
)

func TestBuildProjectsTopology(t *testing.T) {
	s := store.New("t")
	n1, _ := s.CreateNode([]graph.Label{"Person"}, nil)
	n2, _ := s.CreateNode([]graph.Label{"Person"}, nil)
	n3, _ := s.CreateNode([]graph.Label{"Person"}, nil)
	s.CreateEdge(n1.ID, n2.ID, "KNOWS", nil)
	s.CreateEdge(n2.ID, n3.ID, "KNOWS", nil)

	view := Build(s)
	if view.NodeCount != 3 {
		t.Fatalf("expected 3 nodes, got %d", view.NodeCount)
	}

	i1, i2, i3 := view.NodeToIndex[n1.ID], view.NodeToIndex[n2.ID], view.NodeToIndex[n3.ID]
	if view.OutDegree(i1) != 1 || view.Out(i1)[0] != i2 {
		t.Fatalf("expected n1 -> n2, got out=%v", view.Out(i1))
	}
	if view.InDegree(i2) != 1 || view.In(i2)[0] != i1 {
		t.Fatalf("expected n2 in-edge from n1, got in=%v", view.In(i2))
	}
	if view.OutDegree(i3) != 0 {
		t.Fatalf("expected n3 to have no outgoing edges, got %d", view.OutDegree(i3))
	}
}

func TestBuildWithLabelFilter(t *testing.T) {
	s := store.New("t")
	p1, _ := s.CreateNode([]graph.Label{"Person"}, nil)
	p2, _ := s.CreateNode([]graph.Label{"Person"}, nil)
	c1, _ := s.CreateNode([]graph.Label{"Company"}, nil)
	s.CreateEdge(p1.ID, p2.ID, "KNOWS", nil)
	s.CreateEdge(p1.ID, c1.ID, "WORKS_AT", nil)

	view := Build(s, WithLabelFilter("Person"))
	if view.NodeCount != 2 {
		t.Fatalf("expected 2 Person nodes, got %d", view.NodeCount)
	}
	i1 := view.NodeToIndex[p1.ID]
	if view.OutDegree(i1) != 1 {
		t.Fatalf("expected edge to Company to be excluded from projection, got out-degree %d", view.OutDegree(i1))
	}
}

func TestBuildWithWeightProperty(t *testing.T) {
	s := store.New("t")
	a, _ := s.CreateNode([]graph.Label{"N"}, nil)
	b, _ := s.CreateNode([]graph.Label{"N"}, nil)
	s.CreateEdge(a.ID, b.ID, "E", map[string]graph.PropertyValue{"weight": graph.NewFloat(2.5)})

	view := Build(s, WithWeightProperty("weight"))
	if len(view.Weights) != 1 || view.Weights[0] != 2.5 {
		t.Fatalf("expected weight 2.5, got %v", view.Weights)
	}
}
