package indexbus

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/samyama-ai/samyama-graph-sub000/pkg/embedding"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/graph"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/index"
)

// Mode selects how a Bus applies events relative to the write that produced
// them (spec §4.D: "two dispatch modes").
type Mode int

const (
	// Sync applies index mutations on the write thread itself, before
	// Store's mutating call returns.
	Sync Mode = iota
	// Async applies index mutations on a background consumer goroutine fed
	// by a bounded channel; the writer blocks when the channel is full
	// (spec §4.D backpressure policy: "block the writer").
	Async
)

// EmbedPolicy decides whether a property write on a node should trigger an
// auto-embed side-task, and which model to embed it with. Implemented by
// pkg/tenancy so this package never imports it (avoiding a cycle); a nil
// EmbedPolicy means auto-embed is never triggered.
type EmbedPolicy interface {
	// Resolve returns (model, targetProperty, ok). ok is false when the
	// tenant has no auto-embed config, or the written property/label does
	// not match it.
	Resolve(tenant string, labels []graph.Label, property string) (model, targetProperty string, ok bool)
}

// AgentDispatcher fires a best-effort background agent task when a node
// matching a tenant's agent policy changes. Implemented outside this
// package; a nil AgentDispatcher means agent dispatch is disabled.
type AgentDispatcher interface {
	Dispatch(ctx context.Context, tenant string, nodeID graph.NodeID, labels []graph.Label)
}

// Bus is the index-event consumer of spec §4.D. It implements Sink, so
// pkg/store publishes directly to it; Bus fans the event out to the
// (label, property) secondary indices it owns via idx, and to the optional
// embedding/agent side-tasks.
//
// The goroutine+channel+WaitGroup shape is generalized from the teacher's
// pkg/storage/async_engine.go AsyncEngine write-behind consumer.
type Bus struct {
	mode Mode
	idx  *index.Manager
	log  logr.Logger

	embedSvc embedding.Service
	embedPol EmbedPolicy
	agents   AgentDispatcher

	ch     chan IndexEvent
	stop   chan struct{}
	done   chan struct{}
	closed bool
}

// Config configures a new Bus.
type Config struct {
	Mode       Mode
	QueueSize  int // Async mode only; 0 defaults to 1024.
	Embedding  embedding.Service
	EmbedPolicy EmbedPolicy
	Agents     AgentDispatcher
	Log        logr.Logger
}

// New constructs a Bus over idx. In Async mode it starts the background
// consumer goroutine immediately; callers must call Close to drain it.
func New(idx *index.Manager, cfg Config) *Bus {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Embedding == nil {
		cfg.Embedding = embedding.NoopService{}
	}
	b := &Bus{
		mode:     cfg.Mode,
		idx:      idx,
		log:      cfg.Log,
		embedSvc: cfg.Embedding,
		embedPol: cfg.EmbedPolicy,
		agents:   cfg.Agents,
	}
	if b.mode == Async {
		b.ch = make(chan IndexEvent, cfg.QueueSize)
		b.stop = make(chan struct{})
		b.done = make(chan struct{})
		go b.consume()
	}
	return b
}

// Publish implements Sink. In Sync mode the event is applied inline, before
// Publish returns (spec §4.D: "applied on the write thread"). In Async mode
// it is pushed onto the bounded channel, blocking while the channel is
// full rather than dropping the event (spec §4.D: "block the writer on
// full"). After Close, Publish returns without the event being applied.
func (b *Bus) Publish(ev IndexEvent) {
	if b.mode == Sync {
		b.apply(ev)
		return
	}
	select {
	case b.ch <- ev:
	case <-b.stop:
	}
}

// Close stops the background consumer (no-op in Sync mode) and waits for
// the queue to drain.
func (b *Bus) Close() {
	if b.mode != Async || b.closed {
		return
	}
	b.closed = true
	close(b.stop)
	<-b.done
}

func (b *Bus) consume() {
	defer close(b.done)
	for {
		select {
		case ev := <-b.ch:
			b.apply(ev)
		case <-b.stop:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case ev := <-b.ch:
					b.apply(ev)
				default:
					return
				}
			}
		}
	}
}

// apply is idempotent per consumer contract (spec §4.D: "consumer must be
// idempotent w.r.t. property replacement") — PropertyIndex.Remove/Insert are
// themselves safe to repeat, so replaying an event twice has no extra
// effect beyond the first application.
func (b *Bus) apply(ev IndexEvent) {
	switch ev.Kind {
	case NodeCreated:
		for _, l := range ev.Labels {
			for k, v := range ev.Properties {
				b.indexProperty(l, k, v, ev.NodeID)
			}
		}
		b.maybeEmbedAll(ev)
		b.maybeDispatchAgent(ev.Tenant, ev.NodeID, ev.Labels)
	case NodeDeleted:
		for _, l := range ev.Labels {
			for k, v := range ev.Properties {
				b.removeProperty(l, k, v, ev.NodeID)
			}
		}
	case LabelAdded:
		for k, v := range ev.Properties {
			b.indexProperty(ev.Label, k, v, ev.NodeID)
		}
		b.maybeDispatchAgent(ev.Tenant, ev.NodeID, ev.Labels)
	case PropertySet:
		for _, l := range ev.Labels {
			if ev.OldValue != nil {
				b.removeProperty(l, ev.Key, *ev.OldValue, ev.NodeID)
			}
			b.indexProperty(l, ev.Key, ev.NewValue, ev.NodeID)
		}
		b.maybeEmbedOne(ev)
	}
}

func (b *Bus) indexProperty(label graph.Label, key string, value graph.PropertyValue, node graph.NodeID) {
	if vec, ok := value.AsVector(); ok {
		if vidx, ok := b.idx.LookupVectorIndex(label, key); ok {
			if err := vidx.Add(node, vec); err != nil {
				b.logError("vector index add failed", err)
			}
		}
		return
	}
	b.idx.PropertyIndexFor(label, key).Insert(value, node)
}

func (b *Bus) removeProperty(label graph.Label, key string, value graph.PropertyValue, node graph.NodeID) {
	if _, ok := value.AsVector(); ok {
		if vidx, ok := b.idx.LookupVectorIndex(label, key); ok {
			vidx.Remove(node)
		}
		return
	}
	if pidx, ok := b.idx.LookupPropertyIndex(label, key); ok {
		pidx.Remove(value, node)
	}
}

// maybeEmbedAll runs the auto-embed side-task for every string property of
// a freshly created node that matches the tenant's embed policy.
func (b *Bus) maybeEmbedAll(ev IndexEvent) {
	if b.embedPol == nil {
		return
	}
	for key, value := range ev.Properties {
		text, ok := value.AsString()
		if !ok {
			continue
		}
		b.embedOne(ev.Tenant, ev.Labels, ev.NodeID, key, text)
	}
}

func (b *Bus) maybeEmbedOne(ev IndexEvent) {
	if b.embedPol == nil {
		return
	}
	text, ok := ev.NewValue.AsString()
	if !ok {
		return
	}
	b.embedOne(ev.Tenant, ev.Labels, ev.NodeID, ev.Key, text)
}

func (b *Bus) embedOne(tenant string, labels []graph.Label, node graph.NodeID, property, text string) {
	model, target, ok := b.embedPol.Resolve(tenant, labels, property)
	if !ok {
		return
	}
	vec, err := b.embedSvc.Embed(context.Background(), model, text)
	if err != nil {
		// Best-effort: failures are logged and swallowed, never roll back
		// the write that triggered them (spec §4.D / §7).
		b.logError("auto-embed failed", err)
		return
	}
	for _, l := range labels {
		if vidx, ok := b.idx.LookupVectorIndex(l, target); ok {
			if err := vidx.Add(node, vec); err != nil {
				b.logError("auto-embed index add failed", err)
			}
		}
	}
}

func (b *Bus) maybeDispatchAgent(tenant string, node graph.NodeID, labels []graph.Label) {
	if b.agents == nil {
		return
	}
	b.agents.Dispatch(context.Background(), tenant, node, labels)
}

func (b *Bus) logError(msg string, err error) {
	if b.log.GetSink() != nil {
		b.log.Error(err, msg)
	}
}
