// Package db is the top-level facade of spec §5: it owns each tenant's
// pkg/store.Store, pkg/index.Manager, pkg/indexbus.Bus, and
// pkg/persistence WAL, plus one shared KV store, behind a single
// reader/writer lock, and wires
// pkg/cypher + pkg/plan to execute query text against them.
//
// Grounded on the teacher's pkg/nornicdb/db.go, which plays the same
// "one struct owns every subsystem, guarded by one sync.RWMutex" role for
// NornicDB's own storage/cypher/search stack — this package keeps that
// shape and generalizes it to the spec's store/index/indexbus/persistence
// stack and multi-tenant bookkeeping (pkg/tenancy), which the teacher's
// single-tenant embedding never needed.
package db

import (
	"fmt"
	"sync"

	"github.com/samyama-ai/samyama-graph-sub000/pkg/cypher"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/index"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/indexbus"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/logging"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/persistence"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/plan"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/procedure"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/store"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/tenancy"

	"github.com/go-logr/logr"
)

// Options configures one DB instance.
type Options struct {
	// DataDir roots the WAL and badger KV directories. Empty means
	// in-memory only (no durability), useful for tests.
	DataDir string
	WAL     persistence.WALConfig
	Logger  logr.Logger
}

// DB is one embedded graphdb process: a tenant registry, and one
// store/index/indexbus/persistence stack per tenant, all serialized behind
// a single RWMutex per spec §5's "not internally synchronized" store design
// ("callers share it behind a single reader/writer lock").
type DB struct {
	mu sync.RWMutex

	opts       Options
	log        logr.Logger
	tenants    *tenancy.Manager
	procedures *procedure.Registry
	planCache  *plan.Cache

	kv    *persistence.KV
	wal   map[string]*persistence.WAL
	store map[string]*store.Store
	idx   map[string]*index.Manager
	bus   map[string]*indexbus.Bus
}

// Open creates or recovers a DB rooted at opts.DataDir (or purely in-memory
// when DataDir is empty).
func Open(opts Options) (*DB, error) {
	if opts.Logger.GetSink() == nil {
		opts.Logger = logging.Discard()
	}
	kvDir := ""
	if opts.DataDir != "" {
		kvDir = opts.DataDir + "/kv"
	}
	kv, err := persistence.OpenKV(kvDir)
	if err != nil {
		return nil, fmt.Errorf("db: open kv: %w", err)
	}
	planCache, err := plan.NewCache(1024)
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("db: create plan cache: %w", err)
	}

	d := &DB{
		opts:       opts,
		log:        opts.Logger,
		tenants:    tenancy.NewManager(),
		procedures: procedure.NewRegistry(),
		planCache:  planCache,
		kv:         kv,
		wal:        make(map[string]*persistence.WAL),
		store:      make(map[string]*store.Store),
		idx:        make(map[string]*index.Manager),
		bus:        make(map[string]*indexbus.Bus),
	}
	if err := d.openTenant(tenancy.DefaultTenantID); err != nil {
		kv.Close()
		return nil, err
	}
	if err := procedure.RegisterBuiltins(d.procedures, d.idx[tenancy.DefaultTenantID], d.store[tenancy.DefaultTenantID]); err != nil {
		kv.Close()
		return nil, fmt.Errorf("db: register builtin procedures: %w", err)
	}
	return d, nil
}

// openTenant lazily builds the store/index/bus/WAL stack for tenant,
// recovering it from durable state if opts.DataDir is set (spec §4.G).
func (d *DB) openTenant(tenant string) error {
	if _, ok := d.store[tenant]; ok {
		return nil
	}
	idxMgr := index.NewManager()

	var walDir string
	if d.opts.DataDir != "" {
		walDir = d.opts.DataDir + "/wal/" + tenant
	}

	var st *store.Store
	if walDir != "" {
		recovered, _, err := persistence.Recover(d.kv, walDir, tenant, idxMgr)
		if err != nil {
			return fmt.Errorf("db: recover tenant %q: %w", tenant, err)
		}
		st = recovered
	} else {
		st = store.New(tenant)
	}

	bus := indexbus.New(idxMgr, indexbus.Config{Mode: indexbus.Sync})
	st.Sink = bus

	if walDir != "" {
		cfg := d.opts.WAL
		if cfg == (persistence.WALConfig{}) {
			cfg = persistence.DefaultWALConfig()
		}
		cfg.Dir = walDir
		w, err := persistence.Open(cfg)
		if err != nil {
			bus.Close()
			return fmt.Errorf("db: open wal for tenant %q: %w", tenant, err)
		}
		d.wal[tenant] = w
	}

	d.store[tenant] = st
	d.idx[tenant] = idxMgr
	d.bus[tenant] = bus
	return nil
}

// Tenants returns the tenancy manager backing multi-tenant quota/config
// bookkeeping (spec §5).
func (d *DB) Tenants() *tenancy.Manager { return d.tenants }

// Procedures returns the CALL...YIELD registry (spec §6).
func (d *DB) Procedures() *procedure.Registry { return d.procedures }

// Execute parses, plans, and runs query against tenant's graph, returning
// every row Project emits. Writes within query are applied to the store
// while the pipeline runs and are then appended to the tenant's WAL (when
// durability is configured) before Execute returns. If the append fails,
// Execute returns the error; the in-memory mutation is not rolled back.
func (d *DB) Execute(tenant, query string) ([]plan.Row, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.tenants.IsEnabled(tenant) {
		return nil, fmt.Errorf("db: tenant %q is disabled or unknown", tenant)
	}
	if err := d.openTenant(tenant); err != nil {
		return nil, err
	}

	stmt, err := d.planCache.ParseCached(query)
	if err != nil {
		return nil, fmt.Errorf("db: parse query: %w", err)
	}
	op, err := plan.Build(stmt, d.store[tenant])
	if err != nil {
		return nil, fmt.Errorf("db: build plan: %w", err)
	}
	rows, err := plan.Collect(op)
	if err != nil {
		return nil, fmt.Errorf("db: execute query: %w", err)
	}

	if w, ok := d.wal[tenant]; ok && statementWrites(stmt) {
		if err := appendEffects(w, tenant, plan.Mutations(op)); err != nil {
			return nil, fmt.Errorf("db: append wal: %w", err)
		}
	}
	return rows, nil
}

// Explain parses and plans query without executing it, returning the
// operator-tree description (spec §4.F EXPLAIN).
func (d *DB) Explain(tenant, query string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.openTenant(tenant); err != nil {
		return "", err
	}
	stmt, err := d.planCache.ParseCached(query)
	if err != nil {
		return "", err
	}
	op, err := plan.Build(stmt, d.store[tenant])
	if err != nil {
		return "", err
	}
	return plan.Explain(op), nil
}

// Checkpoint flushes the tenant's WAL and KV layer (spec §4.G).
func (d *DB) Checkpoint(tenant string) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.wal[tenant]
	if !ok {
		return 0, nil
	}
	return persistence.CheckpointTenant(w, d.kv)
}

// Close flushes and closes every tenant's WAL, the shared KV store, the
// plan cache, and every tenant's index-event bus.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var firstErr error
	for _, w := range d.wal {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, b := range d.bus {
		b.Close()
	}
	d.planCache.Close()
	if err := d.kv.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// statementWrites reports whether stmt contains any clause capable of
// mutating the store (CREATE/SET/DELETE), used to decide whether an
// Execute call needs a WAL append at all.
func statementWrites(stmt *cypher.Statement) bool {
	for _, c := range stmt.Clauses {
		switch c.(type) {
		case *cypher.CreateClause, *cypher.SetClause, *cypher.DeleteClause:
			return true
		}
	}
	return false
}
