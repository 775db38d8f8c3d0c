// Package procedure implements the CALL ... YIELD procedure ABI of spec
// §4.H: named procedures taking positional arguments and producing rows of
// named output fields, looked up by name in a Registry. Procedures are
// invoked through Registry.Call; pkg/cypher does not parse CALL and
// pkg/plan has no operator that calls them.
//
// Grounded on the teacher's apoc/registry.FunctionRegistry: a
// sync.RWMutex-guarded name->descriptor map with Register/Call/List, kept
// here but reshaped from "one function, one scalar return" (apoc's
// reflect-based single-value Handler) to "one procedure, many output rows
// of named fields" (YIELD's row-set contract), since Cypher's CALL...YIELD
// needs to bind multiple named columns across multiple rows, not a single
// return value.
package procedure

import (
	"context"
	"fmt"
	"sync"

	"github.com/samyama-ai/samyama-graph-sub000/pkg/graph"
)

// Row is one row yielded by a procedure call, keyed by YIELD field name.
type Row map[string]graph.PropertyValue

// Func is a procedure's implementation: given the calling tenant and its
// positional arguments, produce the rows it yields.
type Func func(ctx context.Context, tenant string, args []graph.PropertyValue) ([]Row, error)

// Descriptor describes one registered procedure, mirroring the teacher's
// FunctionDescriptor (Name/Category/Description/Examples) but with
// Fields replacing the single scalar Handler contract.
type Descriptor struct {
	Name        string
	Description string
	// Fields lists the YIELD column names this procedure's rows carry, in
	// the order a bare `CALL proc(...) YIELD *` should project them.
	Fields []string
	Fn     Func
}

// Registry is the process-wide table of callable procedures.
type Registry struct {
	mu    sync.RWMutex
	procs map[string]*Descriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{procs: make(map[string]*Descriptor)}
}

// ErrAlreadyRegistered / ErrNotFound cover Register/Call failures.
var (
	ErrAlreadyRegistered = fmt.Errorf("procedure: already registered")
	ErrNotFound          = fmt.Errorf("procedure: not found")
)

// Register adds a procedure to the registry under name.
func (r *Registry) Register(d Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.procs[d.Name]; exists {
		return ErrAlreadyRegistered
	}
	cp := d
	r.procs[d.Name] = &cp
	return nil
}

// Lookup returns the descriptor for name, if registered.
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.procs[name]
	return d, ok
}

// Call invokes the named procedure with args on behalf of tenant,
// returning ErrNotFound if no procedure is registered under name.
func (r *Registry) Call(ctx context.Context, name, tenant string, args []graph.PropertyValue) ([]Row, error) {
	d, ok := r.Lookup(name)
	if !ok {
		return nil, ErrNotFound
	}
	return d.Fn(ctx, tenant, args)
}

// List returns every registered procedure name.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.procs))
	for name := range r.procs {
		names = append(names, name)
	}
	return names
}
