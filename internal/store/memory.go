package store

import (
	"context"
	"sync"
	"time"

	"main/internal/schema"
)

// Memory is a mutex-guarded in-memory store implementing all three
// repository contracts. Tests and the file-driven CLI path use it.
type Memory struct {
	mu         sync.RWMutex
	executions []schema.Execution
	positions  []schema.Position
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// AddExecutions appends executions to the store.
func (m *Memory) AddExecutions(_ context.Context, execs []schema.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions = append(m.executions, execs...)
	return nil
}

// Executions returns a copy of the scoped executions.
func (m *Memory) Executions(_ context.Context, scope Scope) ([]schema.Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []schema.Execution
	for _, e := range m.executions {
		if scope.Matches(e.Account, e.Symbol) {
			out = append(out, e)
		}
	}
	return out, nil
}

// ReplacePositions swaps the scoped position set in one step. Positions
// outside the scope are preserved untouched.
func (m *Memory) ReplacePositions(_ context.Context, scope Scope, positions []schema.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := make([]schema.Position, 0, len(positions))
	for _, p := range m.positions {
		if !scope.Matches(p.Account, p.Symbol) {
			next = append(next, p)
		}
	}
	next = append(next, positions...)
	m.positions = next
	return nil
}

// Positions returns a copy of the positions matching the query.
func (m *Memory) Positions(_ context.Context, query Query) ([]schema.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now().UTC()
	var out []schema.Position
	for _, p := range m.positions {
		if matchQuery(p, query, now) {
			out = append(out, p)
		}
	}
	schema.SortPositions(out)
	return out, nil
}

func matchQuery(p schema.Position, q Query, now time.Time) bool {
	if q.Account != "" && q.Account != p.Account {
		return false
	}
	if q.Symbol != "" && q.Symbol != p.Symbol {
		return false
	}
	if q.OpenOnly && !p.Open() {
		return false
	}
	start, end := p.Interval(now)
	if !q.From.IsZero() && !end.After(q.From) {
		return false
	}
	if !q.To.IsZero() && !start.Before(q.To) {
		return false
	}
	return true
}
