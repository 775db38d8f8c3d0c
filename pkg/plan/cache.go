package plan

import (
	"github.com/dgraph-io/ristretto/v2"

	"github.com/samyama-ai/samyama-graph-sub000/pkg/cypher"
)

// Cache memoizes parsed cypher.Statements by their source text, replacing
// the teacher's hand-rolled map[string]*CachedPlan + mutex in
// pkg/cypher/cache.go with github.com/dgraph-io/ristretto/v2 — already an
// indirect dependency of the pack (pulled in transitively by badger) and
// now wired in directly as the plan cache's backend (DESIGN.md Section F).
//
// Only the parsed AST is cached, not the physical Operator tree: an
// Operator closes over one Store/index.Manager snapshot and its own
// mutable scan cursors, so it cannot be safely reused across calls the way
// an immutable Statement can.
type Cache struct {
	store *ristretto.Cache[string, *cypher.Statement]
}

// NewCache returns a plan cache sized for maxEntries distinct query texts.
func NewCache(maxEntries int64) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, *cypher.Statement]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{store: c}, nil
}

// ParseCached returns the cached Statement for query, parsing and caching
// it on a miss.
func (c *Cache) ParseCached(query string) (*cypher.Statement, error) {
	if stmt, ok := c.store.Get(query); ok {
		return stmt, nil
	}
	stmt, err := cypher.Parse(query)
	if err != nil {
		return nil, err
	}
	c.store.Set(query, stmt, 1)
	c.store.Wait()
	return stmt, nil
}

// Close releases the cache's background goroutines.
func (c *Cache) Close() { c.store.Close() }
