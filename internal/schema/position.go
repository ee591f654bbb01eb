package schema

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction is the side of the reconstructed position.
type Direction uint8

const (
	DirectionUnknown Direction = iota
	DirectionLong
	DirectionShort
)

func (d Direction) String() string {
	switch d {
	case DirectionLong:
		return "Long"
	case DirectionShort:
		return "Short"
	default:
		return "Unknown"
	}
}

// Sign returns +1 for long and -1 for short.
func (d Direction) Sign() int64 {
	if d == DirectionShort {
		return -1
	}
	return 1
}

// ParseDirection resolves a stored direction name.
func ParseDirection(name string) (Direction, bool) {
	switch name {
	case "Long":
		return DirectionLong, true
	case "Short":
		return DirectionShort, true
	default:
		return DirectionUnknown, false
	}
}

// DirectionOf derives the position direction from a signed running quantity.
func DirectionOf(runningQty int64) Direction {
	switch {
	case runningQty > 0:
		return DirectionLong
	case runningQty < 0:
		return DirectionShort
	default:
		return DirectionUnknown
	}
}

// Position is the aggregate of all executions between one open-crossing
// and the next close-crossing. Exit fields stay nil while the position
// is open. A position exclusively owns the executions listed in
// ExecutionIDs: every execution belongs to exactly one position.
type Position struct {
	ID           uuid.UUID
	Account      string
	Symbol       string
	Direction    Direction
	EntryTime    time.Time
	ExitTime     *time.Time
	Quantity     int64
	EntryPrice   decimal.Decimal
	ExitPrice    *decimal.Decimal
	RealizedPnL  *decimal.Decimal
	Commission   decimal.Decimal
	ExecutionIDs []uint64
	Tag          ValidationTag
}

// Open reports whether the position has not yet closed.
func (p Position) Open() bool {
	return p.ExitTime == nil
}

// Interval returns the active time range. Open positions extend to now.
func (p Position) Interval(now time.Time) (time.Time, time.Time) {
	if p.ExitTime == nil {
		return p.EntryTime, now
	}
	return p.EntryTime, *p.ExitTime
}

// Overlaps reports whether two positions' half-open [entry, exit)
// intervals intersect.
func (p Position) Overlaps(other Position, now time.Time) bool {
	aStart, aEnd := p.Interval(now)
	bStart, bEnd := other.Interval(now)
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// AggregateTag folds constituent execution tags into the position tag:
// any Invalid wins, otherwise Valid only if every tag is Valid.
func AggregateTag(execs []Execution) ValidationTag {
	if len(execs) == 0 {
		return TagUnset
	}
	allValid := true
	for _, e := range execs {
		switch e.Tag {
		case TagInvalid:
			return TagInvalid
		case TagValid:
		default:
			allValid = false
		}
	}
	if allValid {
		return TagValid
	}
	return TagUnset
}

// SortExecutions orders executions by timestamp ascending, with the
// ingestion sequence as a stable tie-break for identical timestamps.
func SortExecutions(execs []Execution) {
	sort.SliceStable(execs, func(i, j int) bool {
		if execs[i].Timestamp.Equal(execs[j].Timestamp) {
			return execs[i].ID < execs[j].ID
		}
		return execs[i].Timestamp.Before(execs[j].Timestamp)
	})
}

// SortPositions orders positions by account, symbol, then entry time,
// giving rebuilds a deterministic output order.
func SortPositions(positions []Position) {
	sort.SliceStable(positions, func(i, j int) bool {
		a, b := positions[i], positions[j]
		if a.Account != b.Account {
			return a.Account < b.Account
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.EntryTime.Before(b.EntryTime)
	})
}
