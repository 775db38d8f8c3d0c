// Package indexbus is the asynchronous indexing pipeline of spec §4.D: it
// carries IndexEvents emitted by pkg/store to the secondary indices
// (pkg/index) and to the embedding/agent side-task dispatchers, either on
// the write thread (Sync mode) or via a background consumer goroutine
// (Async mode).
//
// The concurrency shape — a background goroutine draining a channel, a
// stop channel, a WaitGroup to drain-on-close — is generalized from the
// teacher's pkg/storage/async_engine.go AsyncEngine, which runs the same
// goroutine+ticker+channel pattern for its write-behind cache.
package indexbus

import (
	"github.com/samyama-ai/samyama-graph-sub000/pkg/graph"
)

// EventKind tags an IndexEvent's variant (spec §4.D).
type EventKind int

const (
	NodeCreated EventKind = iota
	NodeDeleted
	PropertySet
	LabelAdded
)

func (k EventKind) String() string {
	switch k {
	case NodeCreated:
		return "NodeCreated"
	case NodeDeleted:
		return "NodeDeleted"
	case PropertySet:
		return "PropertySet"
	case LabelAdded:
		return "LabelAdded"
	default:
		return "?"
	}
}

// IndexEvent is the single struct carrying every variant of spec §4.D's
// IndexEvent enum; EventKind selects which fields are meaningful.
type IndexEvent struct {
	Kind   EventKind
	Tenant string
	NodeID graph.NodeID

	// NodeCreated / NodeDeleted / LabelAdded
	Labels     []graph.Label
	Properties map[string]graph.PropertyValue

	// LabelAdded
	Label graph.Label

	// PropertySet
	Key      string
	OldValue *graph.PropertyValue
	NewValue graph.PropertyValue
}

// Sink is what pkg/store publishes events to. A Bus in either mode
// implements Sink.
type Sink interface {
	Publish(ev IndexEvent)
}
