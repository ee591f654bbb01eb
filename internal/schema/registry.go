package schema

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Instrument describes contract metadata for one tradable symbol.
type Instrument struct {
	Symbol     string
	PointValue decimal.Decimal
}

// InstrumentRegistry is the instrument-metadata collaborator contract.
// The pricing calculator treats point values as opaque multipliers.
type InstrumentRegistry struct {
	instruments map[string]Instrument
}

// NewInstrumentRegistry creates an empty registry.
func NewInstrumentRegistry() *InstrumentRegistry {
	return &InstrumentRegistry{instruments: make(map[string]Instrument)}
}

// AddInstrument registers contract metadata for a symbol.
func (r *InstrumentRegistry) AddInstrument(symbol string, pointValue decimal.Decimal) error {
	if symbol == "" {
		return fmt.Errorf("instrument symbol is empty")
	}
	if pointValue.Sign() <= 0 {
		return fmt.Errorf("point value must be > 0: %s", symbol)
	}
	if _, ok := r.instruments[symbol]; ok {
		return fmt.Errorf("instrument already exists: %s", symbol)
	}
	r.instruments[symbol] = Instrument{Symbol: symbol, PointValue: pointValue}
	return nil
}

// PointValue returns the multiplier for a symbol. Unregistered symbols
// fall back to a point value of one.
func (r *InstrumentRegistry) PointValue(symbol string) decimal.Decimal {
	if inst, ok := r.instruments[symbol]; ok {
		return inst.PointValue
	}
	return decimal.NewFromInt(1)
}

// Len returns the number of registered instruments.
func (r *InstrumentRegistry) Len() int {
	return len(r.instruments)
}
