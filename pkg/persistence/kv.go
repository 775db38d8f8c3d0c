package persistence

import (
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/samyama-ai/samyama-graph-sub000/pkg/graph"
)

// kind byte tags the logical column family a key belongs to, following the
// teacher's badger.go single-byte-prefix convention, generalized from its
// fixed node/edge/label/adjacency prefixes to the spec's three named
// families: nodes, edges, indices.
type kind byte

const (
	kindNode    kind = 'n'
	kindEdge    kind = 'e'
	kindIndices kind = 'i'
)

// KV is the tenant-prefixed key-value layer of spec §4.G/§6: one badger.DB
// holding nodes and edges under keys "<tenant>:<kind>:<16-hex-id>" and
// index metadata under "<tenant>:i:<index-name>", so a prefix scan over a
// tenant (or a tenant+kind pair) is a single ordered iterator walk.
//
// Grounded on the teacher's storage.BadgerEngine: same badger.DB handle,
// same Update/View transaction shape, same low-memory option tuning for
// embedded deployment, but keyed by the spec's tenant-qualified scheme
// instead of the teacher's single-tenant byte prefixes.
type KV struct {
	db *badger.DB
}

// OpenKV opens (or creates) a badger-backed KV store rooted at dir. dir=""
// opens an in-memory instance, useful for tests.
func OpenKV(dir string) (*KV, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.
		WithLogger(nil).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("persistence: open kv store: %w", err)
	}
	return &KV{db: db}, nil
}

// Close releases the underlying badger.DB.
func (kv *KV) Close() error { return kv.db.Close() }

// Flush forces durability of all buffered writes (spec §4.G: "flush forces
// durability").
func (kv *KV) Flush() error { return kv.db.Sync() }

func nodeKey(tenant string, id graph.NodeID) []byte {
	return []byte(fmt.Sprintf("%s:n:%016x", tenant, uint64(id)))
}

func edgeKey(tenant string, id graph.EdgeID) []byte {
	return []byte(fmt.Sprintf("%s:e:%016x", tenant, uint64(id)))
}

func indexKey(tenant, name string) []byte {
	return []byte(fmt.Sprintf("%s:i:%s", tenant, name))
}

func tenantPrefix(tenant string, k kind) []byte {
	return []byte(fmt.Sprintf("%s:%c:", tenant, k))
}

// nodeRecord / edgeRecord are the JSON wire shape of spec §6's
// persistent-storage layout: "{id, labels, serialized-properties,
// created_at, updated_at}" (edges analogous with source, target, type).
type nodeRecord struct {
	ID         graph.NodeID                   `json:"id"`
	Labels     []graph.Label                  `json:"labels"`
	Properties map[string]graph.PropertyValue `json:"properties"`
	CreatedAt  int64                          `json:"created_at"`
	UpdatedAt  int64                          `json:"updated_at"`
}

type edgeRecord struct {
	ID         graph.EdgeID                   `json:"id"`
	Source     graph.NodeID                   `json:"source"`
	Target     graph.NodeID                   `json:"target"`
	Type       graph.EdgeType                 `json:"type"`
	Properties map[string]graph.PropertyValue `json:"properties"`
	CreatedAt  int64                          `json:"created_at"`
}

// PutNode writes n under its tenant-prefixed key.
func (kv *KV) PutNode(tenant string, n *graph.Node) error {
	data, err := encodeNodeRecord(n)
	if err != nil {
		return err
	}
	return kv.db.Update(func(txn *badger.Txn) error {
		return txn.Set(nodeKey(tenant, n.ID), data)
	})
}

// GetNode reads the node stored under (tenant, id).
func (kv *KV) GetNode(tenant string, id graph.NodeID) (*graph.Node, bool, error) {
	var n *graph.Node
	err := kv.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeKey(tenant, id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var dErr error
			n, dErr = decodeNodeRecord(val)
			return dErr
		})
	})
	if err != nil {
		return nil, false, err
	}
	return n, n != nil, nil
}

// DeleteNode removes the node stored under (tenant, id).
func (kv *KV) DeleteNode(tenant string, id graph.NodeID) error {
	return kv.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(nodeKey(tenant, id))
	})
}

// AllNodes returns every node stored for tenant, used by Recover.
func (kv *KV) AllNodes(tenant string) ([]*graph.Node, error) {
	var nodes []*graph.Node
	prefix := tenantPrefix(tenant, kindNode)
	err := kv.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if err := item.Value(func(val []byte) error {
				n, err := decodeNodeRecord(val)
				if err != nil {
					return err
				}
				nodes = append(nodes, n)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return nodes, err
}

// PutEdge writes e under its tenant-prefixed key.
func (kv *KV) PutEdge(tenant string, e *graph.Edge) error {
	data, err := encodeEdgeRecord(e)
	if err != nil {
		return err
	}
	return kv.db.Update(func(txn *badger.Txn) error {
		return txn.Set(edgeKey(tenant, e.ID), data)
	})
}

// GetEdge reads the edge stored under (tenant, id).
func (kv *KV) GetEdge(tenant string, id graph.EdgeID) (*graph.Edge, bool, error) {
	var e *graph.Edge
	err := kv.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(edgeKey(tenant, id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var dErr error
			e, dErr = decodeEdgeRecord(val)
			return dErr
		})
	})
	if err != nil {
		return nil, false, err
	}
	return e, e != nil, nil
}

// DeleteEdge removes the edge stored under (tenant, id).
func (kv *KV) DeleteEdge(tenant string, id graph.EdgeID) error {
	return kv.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(edgeKey(tenant, id))
	})
}

// AllEdges returns every edge stored for tenant, used by Recover.
func (kv *KV) AllEdges(tenant string) ([]*graph.Edge, error) {
	var edges []*graph.Edge
	prefix := tenantPrefix(tenant, kindEdge)
	err := kv.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if err := item.Value(func(val []byte) error {
				e, err := decodeEdgeRecord(val)
				if err != nil {
					return err
				}
				edges = append(edges, e)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return edges, err
}

// PutIndexMeta stores an opaque index-manifest blob (e.g. the vector-index
// manifest of spec §6) under the "indices" column family.
func (kv *KV) PutIndexMeta(tenant, name string, data []byte) error {
	return kv.db.Update(func(txn *badger.Txn) error {
		return txn.Set(indexKey(tenant, name), data)
	})
}

// GetIndexMeta reads back a blob stored by PutIndexMeta.
func (kv *KV) GetIndexMeta(tenant, name string) ([]byte, bool, error) {
	var data []byte
	err := kv.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(indexKey(tenant, name))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte(nil), val...)
			return nil
		})
	})
	return data, data != nil, err
}
