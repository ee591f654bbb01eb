package rebuild

import (
	"errors"
	"sync"

	"main/internal/store"
)

var (
	ErrRebuildInFlight = errors.New("a rebuild over an overlapping scope is already in flight")
	ErrNotIdempotent   = errors.New("rebuilding an unchanged execution set produced a different position set")
)

// scopesOverlap reports whether two rebuild scopes can touch the same
// stored positions. An empty field is a wildcard.
func scopesOverlap(a, b store.Scope) bool {
	return fieldsOverlap(a.Account, b.Account) && fieldsOverlap(a.Symbol, b.Symbol)
}

func fieldsOverlap(a, b string) bool {
	return a == "" || b == "" || a == b
}

// scopeLocks serializes rebuilds over overlapping scopes. Disjoint
// scopes may rebuild concurrently.
type scopeLocks struct {
	mu     sync.Mutex
	active []store.Scope
}

func (l *scopeLocks) acquire(scope store.Scope) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, held := range l.active {
		if scopesOverlap(held, scope) {
			return ErrRebuildInFlight
		}
	}
	l.active = append(l.active, scope)
	return nil
}

func (l *scopeLocks) release(scope store.Scope) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, held := range l.active {
		if held == scope {
			l.active = append(l.active[:i], l.active[i+1:]...)
			return
		}
	}
}
