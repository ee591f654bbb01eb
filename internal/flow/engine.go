package flow

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/schema"
)

var (
	ErrMixedGroup = errors.New("executions span more than one account/instrument group")
)

// GroupKey identifies one independent aggregation group.
type GroupKey struct {
	Account string
	Symbol  string
}

// Group partitions executions by (account, symbol).
func Group(execs []schema.Execution) map[GroupKey][]schema.Execution {
	groups := make(map[GroupKey][]schema.Execution)
	for _, e := range execs {
		key := GroupKey{Account: e.Account, Symbol: e.Symbol}
		groups[key] = append(groups[key], e)
	}
	return groups
}

// SortedKeys returns group keys in deterministic order.
func SortedKeys(groups map[GroupKey][]schema.Execution) []GroupKey {
	keys := make([]GroupKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Account != keys[j].Account {
			return keys[i].Account < keys[j].Account
		}
		return keys[i].Symbol < keys[j].Symbol
	})
	return keys
}

// Violation records a running-quantity sign flip that skipped zero.
type Violation struct {
	Account     string
	Symbol      string
	ExecutionID uint64
	Timestamp   time.Time
	PreviousQty int64
	NextQty     int64
}

// Result is the outcome of scanning one (account, symbol) group.
type Result struct {
	Positions  []schema.Position
	Violations []Violation
}

// Scan replays one group's executions in time order and emits the
// positions they represent: closed positions plus at most one trailing
// open position. The input slice is not mutated.
//
// On a boundary violation nothing is corrected silently: the in-progress
// builder is emitted as a suspect position tagged invalid, a violation
// is recorded, and the flipping execution opens a fresh position with
// its full signed delta as the new running quantity.
func Scan(execs []schema.Execution, pointValue decimal.Decimal) (Result, error) {
	var res Result
	if len(execs) == 0 {
		return res, nil
	}

	account, symbol := execs[0].Account, execs[0].Symbol
	for _, e := range execs[1:] {
		if e.Account != account || e.Symbol != symbol {
			return Result{}, ErrMixedGroup
		}
	}

	group := make([]schema.Execution, len(execs))
	copy(group, execs)
	schema.SortExecutions(group)

	var (
		running int64
		b       *builder
	)
	for _, e := range group {
		delta := e.SignedDelta()
		if delta == 0 {
			continue
		}
		previous := running
		next := previous + delta

		switch Classify(previous, next) {
		case TransitionOpen:
			running = next
			b = newBuilder(e, next)

		case TransitionExtend:
			running = next
			b.accumulate(e, next)

		case TransitionClose:
			running = 0
			b.accumulate(e, 0)
			exit := e.Timestamp
			res.Positions = append(res.Positions, b.build(&exit, pointValue, false))
			b = nil

		case TransitionBoundary:
			res.Violations = append(res.Violations, Violation{
				Account:     account,
				Symbol:      symbol,
				ExecutionID: e.ID,
				Timestamp:   e.Timestamp,
				PreviousQty: previous,
				NextQty:     next,
			})
			exit := e.Timestamp
			res.Positions = append(res.Positions, b.build(&exit, pointValue, true))
			running = delta
			b = newBuilder(e, delta)
		}
	}

	if b != nil {
		res.Positions = append(res.Positions, b.build(nil, pointValue, false))
	}
	return res, nil
}
