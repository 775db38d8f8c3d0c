package index

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/samyama-ai/samyama-graph-sub000/pkg/graph"
)

// Key identifies a (Label, property) pair, the unit of indexing for both
// property and vector indices (spec §3/§4.C).
type Key struct {
	Label    graph.Label
	Property string
}

// Manager owns every property and vector index of one tenant's store,
// grounded on _examples/original_source/src/index/manager.rs's
// RwLock<HashMap<PropertyIndexKey, Arc<RwLock<PropertyIndex>>>>.
type Manager struct {
	mu         sync.RWMutex
	properties map[Key]*PropertyIndex
	vectors    map[Key]*VectorIndex
}

// NewManager returns an empty index manager.
func NewManager() *Manager {
	return &Manager{
		properties: make(map[Key]*PropertyIndex),
		vectors:    make(map[Key]*VectorIndex),
	}
}

// PropertyIndexFor returns (creating if necessary) the property index for
// (label, property).
func (m *Manager) PropertyIndexFor(label graph.Label, property string) *PropertyIndex {
	key := Key{label, property}
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.properties[key]
	if !ok {
		idx = NewPropertyIndex()
		m.properties[key] = idx
	}
	return idx
}

// LookupPropertyIndex returns the property index for (label, property), if
// one has been created.
func (m *Manager) LookupPropertyIndex(label graph.Label, property string) (*PropertyIndex, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.properties[Key{label, property}]
	return idx, ok
}

// ErrVectorIndexExists / ErrVectorIndexNotFound cover CREATE VECTOR INDEX
// semantics (spec §4.E).
var (
	ErrVectorIndexExists   = fmt.Errorf("index: vector index already exists")
	ErrVectorIndexNotFound = fmt.Errorf("index: vector index not found")
)

// CreateVectorIndex explicitly creates the HNSW index for (label, property)
// with fixed dimensions/metric (spec §3: "A vector index is created
// explicitly with a fixed dimensionality").
func (m *Manager) CreateVectorIndex(label graph.Label, property string, dimensions int, metric Metric, config HNSWConfig) error {
	key := Key{label, property}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vectors[key]; ok {
		return ErrVectorIndexExists
	}
	m.vectors[key] = NewVectorIndex(dimensions, metric, config)
	return nil
}

// LookupVectorIndex returns the vector index for (label, property), if one
// exists.
func (m *Manager) LookupVectorIndex(label graph.Label, property string) (*VectorIndex, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.vectors[key(label, property)]
	return idx, ok
}

func key(label graph.Label, property string) Key { return Key{label, property} }

// manifestEntry is one row of the vector-index manifest (spec §6:
// "JSON array of {label, property_key, dimensions, metric, filename}").
// Only the metadata is persisted here — graph state is sufficient to
// rebuild the HNSW graph itself (spec §4.C "best-effort persistence").
type manifestEntry struct {
	Label      string `json:"label"`
	Property   string `json:"property_key"`
	Dimensions int    `json:"dimensions"`
	Metric     string `json:"metric"`
	Filename   string `json:"filename"`
}

// Manifest serializes the metadata of every vector index to JSON.
func (m *Manager) Manifest() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]manifestEntry, 0, len(m.vectors))
	for k, v := range m.vectors {
		entries = append(entries, manifestEntry{
			Label:      string(k.Label),
			Property:   k.Property,
			Dimensions: v.Dimensions,
			Metric:     v.Metric.String(),
			Filename:   fmt.Sprintf("%s.%s.hnsw", k.Label, k.Property),
		})
	}
	return json.Marshal(entries)
}

// LoadManifest recreates empty vector indices (dimension/metric only) from
// a previously-serialized manifest; callers then repopulate them by
// replaying the property index / store, per the "graph state is sufficient
// to rebuild" contract.
func (m *Manager) LoadManifest(data []byte, config HNSWConfig) error {
	var entries []manifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		metric := parseMetric(e.Metric)
		m.vectors[Key{graph.Label(e.Label), e.Property}] = NewVectorIndex(e.Dimensions, metric, config)
	}
	return nil
}

func parseMetric(s string) Metric {
	switch s {
	case "L2":
		return L2
	case "InnerProduct":
		return InnerProduct
	default:
		return Cosine
	}
}
