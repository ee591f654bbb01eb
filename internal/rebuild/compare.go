package rebuild

import (
	"time"

	"github.com/shopspring/decimal"

	"main/internal/schema"
)

// SamePositionValues reports whether two sorted position sets are
// value-identical, ignoring the generated identifiers. Rebuilding an
// unchanged execution set twice must satisfy this.
func SamePositionValues(a, b []schema.Position) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !samePosition(a[i], b[i]) {
			return false
		}
	}
	return true
}

func samePosition(a, b schema.Position) bool {
	if a.Account != b.Account ||
		a.Symbol != b.Symbol ||
		a.Direction != b.Direction ||
		a.Quantity != b.Quantity ||
		a.Tag != b.Tag {
		return false
	}
	if !a.EntryTime.Equal(b.EntryTime) ||
		!sameTime(a.ExitTime, b.ExitTime) {
		return false
	}
	if !a.EntryPrice.Equal(b.EntryPrice) ||
		!sameDecimal(a.ExitPrice, b.ExitPrice) ||
		!sameDecimal(a.RealizedPnL, b.RealizedPnL) ||
		!a.Commission.Equal(b.Commission) {
		return false
	}
	if len(a.ExecutionIDs) != len(b.ExecutionIDs) {
		return false
	}
	for i := range a.ExecutionIDs {
		if a.ExecutionIDs[i] != b.ExecutionIDs[i] {
			return false
		}
	}
	return true
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func sameDecimal(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
