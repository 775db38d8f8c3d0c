package index

import (
	"container/heap"
	"context"
	"errors"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/samyama-ai/samyama-graph-sub000/pkg/graph"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/math/vector"
)

// ErrDimensionMismatch is returned when a vector's length does not match
// the index's fixed dimensionality (spec §4.C / §7).
var ErrDimensionMismatch = errors.New("index: vector dimension mismatch")

// Metric selects the distance function an HNSW index uses (spec §3/§4.C).
type Metric int

const (
	L2 Metric = iota
	Cosine
	InnerProduct
)

func (m Metric) String() string {
	switch m {
	case L2:
		return "L2"
	case Cosine:
		return "Cosine"
	case InnerProduct:
		return "InnerProduct"
	default:
		return "?"
	}
}

func (m Metric) distance(a, b []float32) float64 {
	switch m {
	case L2:
		return vector.L2Distance(a, b)
	case InnerProduct:
		return 1 - vector.DotProduct(a, b)
	default: // Cosine
		return 1 - vector.CosineSimilarity(a, b)
	}
}

// HNSWConfig holds the tuning parameters of the HNSW graph (spec §4.C),
// grounded on the teacher's pkg/search/hnsw_index.go.
type HNSWConfig struct {
	M               int
	EfConstruction  int
	EfSearch        int
	LevelMultiplier float64
}

// DefaultHNSWConfig returns the teacher's balanced defaults.
func DefaultHNSWConfig() HNSWConfig {
	return HNSWConfig{
		M:               16,
		EfConstruction:  200,
		EfSearch:        100,
		LevelMultiplier: 1.0 / math.Log(16.0),
	}
}

type hnswNode struct {
	id        graph.NodeID
	vector    []float32
	level     int
	seq       int // insertion sequence, used to break search-result ties
	neighbors [][]graph.NodeID
	mu        sync.RWMutex
}

// VectorIndex is the HNSW-backed ANN index for one (Label, property) pair.
// Dimensionality and metric are fixed at construction (spec §3: "A vector
// index is created explicitly with a fixed dimensionality").
type VectorIndex struct {
	Dimensions int
	Metric     Metric

	config HNSWConfig
	mu     sync.RWMutex
	nodes  map[graph.NodeID]*hnswNode
	seq    int

	entryPoint graph.NodeID
	hasEntry   bool
	maxLevel   int
}

// NewVectorIndex creates an empty index fixed to dimensions/metric.
func NewVectorIndex(dimensions int, metric Metric, config HNSWConfig) *VectorIndex {
	if config.M == 0 {
		config = DefaultHNSWConfig()
	}
	return &VectorIndex{
		Dimensions: dimensions,
		Metric:     metric,
		config:     config,
		nodes:      make(map[graph.NodeID]*hnswNode),
	}
}

// SearchResult is one hit of Search, nearest first.
type SearchResult struct {
	NodeID   graph.NodeID
	Distance float64
}

// Add inserts or replaces the vector for id (spec §4.C: "add(node_id, vec)").
func (h *VectorIndex) Add(id graph.NodeID, vec []float32) error {
	if len(vec) != h.Dimensions {
		return ErrDimensionMismatch
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.nodes[id]; exists {
		h.removeLocked(id)
	}

	cp := make([]float32, len(vec))
	copy(cp, vec)
	level := h.randomLevel()
	h.seq++
	node := &hnswNode{id: id, vector: cp, level: level, seq: h.seq, neighbors: make([][]graph.NodeID, level+1)}
	for i := range node.neighbors {
		node.neighbors[i] = make([]graph.NodeID, 0, h.config.M)
	}
	h.nodes[id] = node

	if !h.hasEntry {
		h.entryPoint, h.hasEntry, h.maxLevel = id, true, level
		return nil
	}

	ep := h.entryPoint
	epLevel := h.nodes[ep].level

	for l := epLevel; l > level; l-- {
		ep = h.searchLayerSingle(cp, ep, l)
	}

	top := level
	if epLevel < top {
		top = epLevel
	}
	for l := top; l >= 0; l-- {
		candidates := h.searchLayer(cp, ep, h.config.EfConstruction, l)
		neighbors := h.selectNeighbors(cp, candidates, h.config.M)
		node.neighbors[l] = neighbors

		for _, nid := range neighbors {
			neighbor := h.nodes[nid]
			neighbor.mu.Lock()
			if len(neighbor.neighbors) > l {
				if len(neighbor.neighbors[l]) < h.config.M {
					neighbor.neighbors[l] = append(neighbor.neighbors[l], id)
				} else {
					all := append(append([]graph.NodeID(nil), neighbor.neighbors[l]...), id)
					neighbor.neighbors[l] = h.selectNeighbors(neighbor.vector, all, h.config.M)
				}
			}
			neighbor.mu.Unlock()
		}
		if len(candidates) > 0 {
			ep = candidates[0]
		}
	}

	if level > h.maxLevel {
		h.entryPoint, h.maxLevel = id, level
	}
	return nil
}

// Remove deletes id from the index, if present.
func (h *VectorIndex) Remove(id graph.NodeID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(id)
}

func (h *VectorIndex) removeLocked(id graph.NodeID) {
	node, ok := h.nodes[id]
	if !ok {
		return
	}
	for l := 0; l <= node.level; l++ {
		for _, nid := range node.neighbors[l] {
			if neighbor, ok := h.nodes[nid]; ok {
				neighbor.mu.Lock()
				if len(neighbor.neighbors) > l {
					kept := neighbor.neighbors[l][:0]
					for _, x := range neighbor.neighbors[l] {
						if x != id {
							kept = append(kept, x)
						}
					}
					neighbor.neighbors[l] = kept
				}
				neighbor.mu.Unlock()
			}
		}
	}
	delete(h.nodes, id)

	if h.hasEntry && h.entryPoint == id {
		h.hasEntry = false
		h.maxLevel = 0
		for nid, n := range h.nodes {
			if !h.hasEntry || n.level > h.maxLevel {
				h.entryPoint, h.hasEntry, h.maxLevel = nid, true, n.level
			}
		}
	}
}

// Search returns the k closest vectors to query, smallest distance first,
// ties broken by insertion order (spec §4.C).
func (h *VectorIndex) Search(ctx context.Context, query []float32, k int) ([]SearchResult, error) {
	if len(query) != h.Dimensions {
		return nil, ErrDimensionMismatch
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.nodes) == 0 {
		return nil, nil
	}

	ep := h.entryPoint
	for l := h.maxLevel; l > 0; l-- {
		ep = h.searchLayerSingle(query, ep, l)
	}
	candidates := h.searchLayer(query, ep, h.config.EfSearch, 0)

	type scored struct {
		id   graph.NodeID
		dist float64
		seq  int
	}
	results := make([]scored, 0, len(candidates))
	for _, id := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		node := h.nodes[id]
		results = append(results, scored{id: id, dist: h.Metric.distance(query, node.vector), seq: node.seq})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].dist != results[j].dist {
			return results[i].dist < results[j].dist
		}
		return results[i].seq < results[j].seq
	})
	if len(results) > k {
		results = results[:k]
	}
	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{NodeID: r.id, Distance: r.dist}
	}
	return out, nil
}

func (h *VectorIndex) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.nodes)
}

func (h *VectorIndex) searchLayerSingle(query []float32, entry graph.NodeID, level int) graph.NodeID {
	current := entry
	currentDist := h.Metric.distance(query, h.nodes[current].vector)
	for {
		changed := false
		node := h.nodes[current]
		node.mu.RLock()
		neighbors := node.neighbors[level]
		node.mu.RUnlock()
		for _, nid := range neighbors {
			dist := h.Metric.distance(query, h.nodes[nid].vector)
			if dist < currentDist {
				current, currentDist, changed = nid, dist, true
			}
		}
		if !changed {
			return current
		}
	}
}

type distItem struct {
	id    graph.NodeID
	dist  float64
	isMax bool
}
type distHeap []distItem

func (dh distHeap) Len() int { return len(dh) }
func (dh distHeap) Less(i, j int) bool {
	if dh[i].isMax {
		return dh[i].dist > dh[j].dist
	}
	return dh[i].dist < dh[j].dist
}
func (dh distHeap) Swap(i, j int)       { dh[i], dh[j] = dh[j], dh[i] }
func (dh *distHeap) Push(x interface{}) { *dh = append(*dh, x.(distItem)) }
func (dh *distHeap) Pop() interface{} {
	old := *dh
	n := len(old)
	x := old[n-1]
	*dh = old[:n-1]
	return x
}

func (h *VectorIndex) searchLayer(query []float32, entry graph.NodeID, ef, level int) []graph.NodeID {
	visited := map[graph.NodeID]bool{entry: true}
	candidates := &distHeap{}
	results := &distHeap{}
	heap.Init(candidates)
	heap.Init(results)

	entryDist := h.Metric.distance(query, h.nodes[entry].vector)
	heap.Push(candidates, distItem{id: entry, dist: entryDist})
	heap.Push(results, distItem{id: entry, dist: entryDist, isMax: true})

	for candidates.Len() > 0 {
		closest := heap.Pop(candidates).(distItem)
		if results.Len() >= ef && closest.dist > (*results)[0].dist {
			break
		}
		node := h.nodes[closest.id]
		node.mu.RLock()
		neighbors := node.neighbors[level]
		node.mu.RUnlock()
		for _, nid := range neighbors {
			if visited[nid] {
				continue
			}
			visited[nid] = true
			dist := h.Metric.distance(query, h.nodes[nid].vector)
			if results.Len() < ef || dist < (*results)[0].dist {
				heap.Push(candidates, distItem{id: nid, dist: dist})
				heap.Push(results, distItem{id: nid, dist: dist, isMax: true})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]graph.NodeID, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(distItem).id
	}
	return out
}

func (h *VectorIndex) selectNeighbors(query []float32, candidates []graph.NodeID, m int) []graph.NodeID {
	if len(candidates) <= m {
		return candidates
	}
	type dn struct {
		id   graph.NodeID
		dist float64
	}
	ds := make([]dn, len(candidates))
	for i, c := range candidates {
		ds[i] = dn{id: c, dist: h.Metric.distance(query, h.nodes[c].vector)}
	}
	sort.Slice(ds, func(i, j int) bool { return ds[i].dist < ds[j].dist })
	out := make([]graph.NodeID, m)
	for i := 0; i < m; i++ {
		out[i] = ds[i].id
	}
	return out
}

func (h *VectorIndex) randomLevel() int {
	r := rand.Float64()
	return int(-math.Log(r) * h.config.LevelMultiplier)
}
