package flow

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"main/internal/pricing"
	"main/internal/schema"
)

// builder accumulates executions for one in-progress position.
type builder struct {
	account   string
	symbol    string
	direction schema.Direction
	entryTime time.Time
	peak      int64
	execs     []schema.Execution
}

// newBuilder opens a position at the given execution. runningQty is the
// signed running quantity immediately after applying it.
func newBuilder(e schema.Execution, runningQty int64) *builder {
	return &builder{
		account:   e.Account,
		symbol:    e.Symbol,
		direction: schema.DirectionOf(runningQty),
		entryTime: e.Timestamp,
		peak:      absInt64(runningQty),
		execs:     []schema.Execution{e},
	}
}

// accumulate extends the position with one execution.
func (b *builder) accumulate(e schema.Execution, runningQty int64) {
	if abs := absInt64(runningQty); abs > b.peak {
		b.peak = abs
	}
	b.execs = append(b.execs, e)
}

// build finalizes the accumulated executions into a position. A nil
// exitTime emits an open position. Suspect positions come out of a
// boundary violation and are always tagged invalid; their exit fields
// are populated from whatever exit-side fills exist.
func (b *builder) build(exitTime *time.Time, pointValue decimal.Decimal, suspect bool) schema.Position {
	breakdown := pricing.Price(b.direction, b.peak, b.execs, pointValue)

	ids := make([]uint64, len(b.execs))
	for i, e := range b.execs {
		ids[i] = e.ID
	}

	tag := schema.AggregateTag(b.execs)
	if suspect {
		tag = schema.TagInvalid
	}

	pos := schema.Position{
		ID:           uuid.New(),
		Account:      b.account,
		Symbol:       b.symbol,
		Direction:    b.direction,
		EntryTime:    b.entryTime,
		Quantity:     b.peak,
		EntryPrice:   breakdown.EntryPrice,
		Commission:   breakdown.Commission,
		ExecutionIDs: ids,
		Tag:          tag,
	}
	if exitTime != nil {
		exit := *exitTime
		pos.ExitTime = &exit
		if breakdown.HasExit {
			exitPrice := breakdown.ExitPrice
			pnl := breakdown.RealizedPnL
			pos.ExitPrice = &exitPrice
			pos.RealizedPnL = &pnl
		}
	}
	return pos
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
