// Package logging is the structured-logging facade used throughout
// graphdb, wrapping github.com/go-logr/logr so every package logs against
// an interface rather than a concrete backend.
//
// The teacher (straga-Mimir_lite) logs through the bare standard-library
// "log" package scattered across pkg/storage, pkg/nornicdb, and pkg/server
// with no shared facade; its apoc/log package is a Cypher-facing
// apoc.log.* function library, not a process logger. Since go-logr/logr
// already rides along in the teacher's own dependency graph (as an
// indirect dependency), this package promotes it to direct use and gives
// it the shared-facade role the teacher never built: every package
// accepts a logr.Logger and calls Info/Error/V(n) the same way, instead of
// calling log.Printf directly.
package logging

import (
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
)

// New returns a text-formatted logr.Logger writing to stderr, verbosity
// gated by level (0 = info only, higher = more verbose V(n) calls).
func New(level int) logr.Logger {
	sink := funcr.New(func(prefix, args string) {
		if prefix != "" {
			os.Stderr.WriteString(prefix + " " + args + "\n")
		} else {
			os.Stderr.WriteString(args + "\n")
		}
	}, funcr.Options{
		LogCaller:    funcr.None,
		Verbosity:    level,
		LogTimestamp: true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	return logr.New(sink)
}

// NewJSON returns a JSON-formatted logr.Logger writing to stderr.
func NewJSON(level int) logr.Logger {
	sink := funcr.NewJSON(func(obj string) {
		os.Stderr.WriteString(obj + "\n")
	}, funcr.Options{
		Verbosity:    level,
		LogTimestamp: true,
	})
	return logr.New(sink)
}

// Discard returns a Logger that drops every entry, used in tests and as a
// safe zero-value default for components constructed without an explicit
// logger.
func Discard() logr.Logger { return logr.Discard() }
