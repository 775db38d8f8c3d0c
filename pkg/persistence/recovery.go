package persistence

import (
	"fmt"

	"github.com/samyama-ai/samyama-graph-sub000/pkg/index"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/indexbus"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/store"
)

// Recover rebuilds tenant's in-memory store from the kv layer and replays
// any WAL entries not yet reflected in it, per spec §4.G's recovery
// protocol: "scan nodes, scan edges, rebuild the in-memory GraphStore.
// Re-emit index events synchronously so secondary indices are populated
// before serving queries."
//
// walDir is the directory a WAL for this tenant's shard was opened against.
// The whole WAL is replayed from sequence 0, skipping entries whose effect
// is already present; the returned sequence is the highest one replayed.
func Recover(kv *KV, walDir string, tenant string, idx *index.Manager) (*store.Store, uint64, error) {
	bus := indexbus.New(idx, indexbus.Config{Mode: indexbus.Sync})
	defer bus.Close()

	s := store.New(tenant)
	s.Sink = bus

	nodes, err := kv.AllNodes(tenant)
	if err != nil {
		return nil, 0, fmt.Errorf("persistence: recover nodes: %w", err)
	}
	for _, n := range nodes {
		s.InsertRecoveredNode(n)
		bus.Publish(indexbus.IndexEvent{
			Kind:       indexbus.NodeCreated,
			Tenant:     tenant,
			NodeID:     n.ID,
			Labels:     n.Labels,
			Properties: n.Properties,
		})
	}

	edges, err := kv.AllEdges(tenant)
	if err != nil {
		return nil, 0, fmt.Errorf("persistence: recover edges: %w", err)
	}
	for _, e := range edges {
		if err := s.InsertRecoveredEdge(e); err != nil {
			return nil, 0, fmt.Errorf("persistence: recover edge %d: %w", e.ID, err)
		}
	}

	var maxSeq uint64
	err = Replay(walDir, 0, func(seq uint64, entry Entry) error {
		if seq > maxSeq {
			maxSeq = seq
		}
		if entry.Tenant != "" && entry.Tenant != tenant {
			return nil
		}
		return applyEntry(s, bus, entry)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("persistence: replay wal: %w", err)
	}

	return s, maxSeq, nil
}

// applyEntry replays a single WAL entry against an already-recovering
// store, gated by spec §4.G's idempotence requirement: a node/edge already
// present from the kv scan is not recreated, so replaying the same WAL
// twice converges to the same state.
func applyEntry(s *store.Store, bus indexbus.Sink, entry Entry) error {
	switch entry.Kind {
	case EntryCreateNode:
		if s.HasNode(entry.NodeID) {
			return nil
		}
		n := NodeFromEntry(entry)
		s.InsertRecoveredNode(n)
		bus.Publish(indexbus.IndexEvent{
			Kind:       indexbus.NodeCreated,
			Tenant:     entry.Tenant,
			NodeID:     n.ID,
			Labels:     n.Labels,
			Properties: n.Properties,
		})
	case EntryCreateEdge:
		if s.HasEdge(entry.EdgeID) {
			return nil
		}
		e := EdgeFromEntry(entry)
		return s.InsertRecoveredEdge(e)
	case EntryDeleteNode:
		if !s.HasNode(entry.NodeID) {
			return nil
		}
		return s.DeleteNode(entry.NodeID)
	case EntryDeleteEdge:
		if !s.HasEdge(entry.EdgeID) {
			return nil
		}
		return s.DeleteEdge(entry.EdgeID)
	case EntryUpdateNodeProperties:
		if !s.HasNode(entry.NodeID) {
			return nil
		}
		for k, v := range entry.Properties {
			if _, err := s.SetNodeProperty(entry.NodeID, k, v); err != nil {
				return err
			}
		}
	case EntryUpdateEdgeProperties:
		// Open question (spec §9) resolved: unlike the source behavior,
		// edge property updates are completed consistently with node
		// property updates rather than left a no-op.
		if !s.HasEdge(entry.EdgeID) {
			return nil
		}
		for k, v := range entry.Properties {
			if _, err := s.SetEdgeProperty(entry.EdgeID, k, v); err != nil {
				return err
			}
		}
	case EntryCheckpoint:
		return nil
	default:
		return fmt.Errorf("persistence: unknown wal entry kind %q", entry.Kind)
	}
	return nil
}

// CheckpointTenant flushes the WAL and kv layer and appends a Checkpoint
// marker, per spec §4.G.
func CheckpointTenant(wal *WAL, kv *KV) (uint64, error) {
	if err := kv.Flush(); err != nil {
		return 0, fmt.Errorf("persistence: flush kv: %w", err)
	}
	return wal.Checkpoint()
}
