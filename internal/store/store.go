// Package store defines the repository contracts the rebuild engine
// depends on, with an in-memory implementation for tests and tooling
// and a PostgreSQL implementation for persistence.
package store

import (
	"context"
	"time"

	"main/internal/schema"
)

// Scope restricts fetches and swaps to an account and/or symbol.
// Empty fields match everything.
type Scope struct {
	Account string
	Symbol  string
}

// Matches reports whether a record falls inside the scope.
func (s Scope) Matches(account, symbol string) bool {
	if s.Account != "" && s.Account != account {
		return false
	}
	if s.Symbol != "" && s.Symbol != symbol {
		return false
	}
	return true
}

func (s Scope) String() string {
	account, symbol := s.Account, s.Symbol
	if account == "" {
		account = "*"
	}
	if symbol == "" {
		symbol = "*"
	}
	return account + "/" + symbol
}

// Query filters position reads. Zero time bounds are unbounded; the
// range matches any position whose active interval intersects [From, To).
type Query struct {
	Account  string
	Symbol   string
	From     time.Time
	To       time.Time
	OpenOnly bool
}

// ExecutionSource supplies the finite, already-deduplicated execution
// batch for a rebuild scope.
type ExecutionSource interface {
	Executions(ctx context.Context, scope Scope) ([]schema.Execution, error)
}

// ExecutionSink accepts executions ingested between rebuilds.
type ExecutionSink interface {
	AddExecutions(ctx context.Context, execs []schema.Execution) error
}

// PositionStore persists rebuilt positions. ReplacePositions must be
// atomic: either the scoped set is fully swapped or the previously
// stored set stays untouched.
type PositionStore interface {
	ReplacePositions(ctx context.Context, scope Scope, positions []schema.Position) error
	Positions(ctx context.Context, query Query) ([]schema.Position, error)
}
