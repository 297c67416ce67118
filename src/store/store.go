// Package store persists a capped recent window of diagnostics and build
// transitions so they survive restarts.
package store

import (
	"context"
	"fmt"
	"strings"

	"buildwatch/src/contracts"
)

// DefaultRetention is how many rows of each kind Prune keeps by default.
const DefaultRetention = 1000

// DiagnosticRecorder persists diagnostic entries.
type DiagnosticRecorder interface {
	RecordDiagnostic(ctx context.Context, event contracts.DiagnosticEvent) error
}

// TransitionRecorder persists observed build state transitions.
type TransitionRecorder interface {
	RecordTransition(ctx context.Context, event contracts.TransitionEvent) error
}

// Store defines the interface for persisting diagnostics and transitions.
type Store interface {
	DiagnosticRecorder
	TransitionRecorder

	// RecentDiagnostics returns up to limit entries, newest first.
	RecentDiagnostics(ctx context.Context, limit int) ([]contracts.DiagnosticEvent, error)

	// RecentTransitions returns up to limit transitions, newest first.
	RecentTransitions(ctx context.Context, limit int) ([]contracts.TransitionEvent, error)

	// Prune drops all but the newest keep rows of each kind.
	Prune(ctx context.Context, keep int) error

	// Close closes the store connection
	Close() error
}

// Open picks an implementation from the DSN:
//
//	""  or "memory:"        in-memory
//	postgres://, postgresql:// Postgres
//	anything else           SQLite database file at that path
func Open(dsn string) (Store, error) {
	switch {
	case dsn == "" || dsn == "memory:":
		return NewMemoryStore(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgresStore(dsn)
	default:
		path := strings.TrimPrefix(dsn, "sqlite://")
		if path == "" {
			return nil, fmt.Errorf("empty sqlite path in %q", dsn)
		}
		return NewSQLiteStore(path)
	}
}
