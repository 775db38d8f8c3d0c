package persistence

import (
	"encoding/json"
	"time"

	"github.com/samyama-ai/samyama-graph-sub000/pkg/graph"
)

func encodeNodeRecord(n *graph.Node) ([]byte, error) {
	return json.Marshal(nodeRecord{
		ID:         n.ID,
		Labels:     n.Labels,
		Properties: n.Properties,
		CreatedAt:  n.CreatedAt.UnixMilli(),
		UpdatedAt:  n.UpdatedAt.UnixMilli(),
	})
}

func decodeNodeRecord(data []byte) (*graph.Node, error) {
	var rec nodeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &graph.Node{
		ID:         rec.ID,
		Labels:     rec.Labels,
		Properties: rec.Properties,
		CreatedAt:  time.UnixMilli(rec.CreatedAt).UTC(),
		UpdatedAt:  time.UnixMilli(rec.UpdatedAt).UTC(),
	}, nil
}

func encodeEdgeRecord(e *graph.Edge) ([]byte, error) {
	return json.Marshal(edgeRecord{
		ID:         e.ID,
		Source:     e.Source,
		Target:     e.Target,
		Type:       e.Type,
		Properties: e.Properties,
		CreatedAt:  e.CreatedAt.UnixMilli(),
	})
}

func decodeEdgeRecord(data []byte) (*graph.Edge, error) {
	var rec edgeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &graph.Edge{
		ID:         rec.ID,
		Source:     rec.Source,
		Target:     rec.Target,
		Type:       rec.Type,
		Properties: rec.Properties,
		CreatedAt:  time.UnixMilli(rec.CreatedAt).UTC(),
	}, nil
}
