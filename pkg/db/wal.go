package db

import (
	"github.com/samyama-ai/samyama-graph-sub000/pkg/graph"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/persistence"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/plan"
)

// appendEffects turns one executed pipeline's plan.Effects into
// persistence.Entry records and appends them to w grouped by kind: created
// nodes, created edges, property sets, deleted edges, then deleted nodes,
// each group in the order plan.Mutations lists it. Execute calls it after
// the pipeline has already applied those mutations, while still holding
// the DB lock.
func appendEffects(w *persistence.WAL, tenant string, eff plan.Effects) error {
	for _, n := range eff.CreatedNodes {
		if _, err := w.Append(persistence.Entry{
			Kind:       persistence.EntryCreateNode,
			Tenant:     tenant,
			NodeID:     n.ID,
			Labels:     n.Labels,
			Properties: n.Properties,
			CreatedAt:  n.CreatedAt,
			UpdatedAt:  n.UpdatedAt,
		}); err != nil {
			return err
		}
	}
	for _, e := range eff.CreatedEdges {
		if _, err := w.Append(persistence.Entry{
			Kind:       persistence.EntryCreateEdge,
			Tenant:     tenant,
			EdgeID:     e.ID,
			Source:     e.Source,
			Target:     e.Target,
			EdgeType:   e.Type,
			Properties: e.Properties,
			CreatedAt:  e.CreatedAt,
		}); err != nil {
			return err
		}
	}
	for _, s := range eff.SetProps {
		props := map[string]graph.PropertyValue{s.Key: s.Value}
		if s.IsEdge {
			if _, err := w.Append(persistence.Entry{
				Kind:       persistence.EntryUpdateEdgeProperties,
				Tenant:     tenant,
				EdgeID:     s.EdgeID,
				Properties: props,
			}); err != nil {
				return err
			}
			continue
		}
		if _, err := w.Append(persistence.Entry{
			Kind:       persistence.EntryUpdateNodeProperties,
			Tenant:     tenant,
			NodeID:     s.NodeID,
			Properties: props,
		}); err != nil {
			return err
		}
	}
	for _, id := range eff.DeletedEdges {
		if _, err := w.Append(persistence.Entry{Kind: persistence.EntryDeleteEdge, Tenant: tenant, EdgeID: id}); err != nil {
			return err
		}
	}
	for _, id := range eff.DeletedNodes {
		if _, err := w.Append(persistence.Entry{Kind: persistence.EntryDeleteNode, Tenant: tenant, NodeID: id}); err != nil {
			return err
		}
	}
	return nil
}
