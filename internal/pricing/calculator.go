// Package pricing computes weighted-average entry/exit prices and
// realized P&L for reconstructed positions.
//
// The result is a blended weighted average, not a per-lot FIFO match:
// every fill that grows the absolute running quantity contributes to
// the entry side, every fill that shrinks it contributes to the exit
// side, and P&L is taken between the two blended prices.
package pricing

import (
	"github.com/shopspring/decimal"

	"main/internal/schema"
)

// divPrecision bounds the decimal places kept by weighted-average divisions.
const divPrecision = 10

// Breakdown is the priced result for one position's executions.
type Breakdown struct {
	EntryPrice  decimal.Decimal
	ExitPrice   decimal.Decimal
	RealizedPnL decimal.Decimal
	Commission  decimal.Decimal
	HasExit     bool
}

// Price computes the breakdown for the ordered executions composing one
// position. quantity is the position's peak absolute running quantity
// and pointValue the instrument's opaque P&L multiplier.
//
// A fill is entry-side when its signed delta moves the running quantity
// further from zero in the position's direction, exit-side otherwise.
func Price(direction schema.Direction, quantity int64, execs []schema.Execution, pointValue decimal.Decimal) Breakdown {
	var (
		entryNotional = decimal.Zero
		exitNotional  = decimal.Zero
		commission    = decimal.Zero
		entryQty      int64
		exitQty       int64
	)

	sign := direction.Sign()
	for _, e := range execs {
		commission = commission.Add(e.Commission)
		notional := e.Price.Mul(decimal.NewFromInt(e.Quantity))
		if e.SignedDelta()*sign > 0 {
			entryNotional = entryNotional.Add(notional)
			entryQty += e.Quantity
		} else {
			exitNotional = exitNotional.Add(notional)
			exitQty += e.Quantity
		}
	}

	b := Breakdown{Commission: commission}
	if entryQty > 0 {
		b.EntryPrice = entryNotional.DivRound(decimal.NewFromInt(entryQty), divPrecision)
	}
	if exitQty > 0 {
		b.HasExit = true
		b.ExitPrice = exitNotional.DivRound(decimal.NewFromInt(exitQty), divPrecision)
		b.RealizedPnL = b.ExitPrice.Sub(b.EntryPrice).
			Mul(decimal.NewFromInt(quantity)).
			Mul(decimal.NewFromInt(sign)).
			Mul(pointValue).
			Sub(commission)
	}
	return b
}
