package schema

import (
	"time"

	"github.com/shopspring/decimal"

	"main/pkg/exception"
)

// Side identifies the direction of a single fill as reported by the venue.
type Side uint8

const (
	SideUnknown Side = iota
	SideBuy
	SideSell
	SideSellShort
	SideBuyToCover
)

var sideNames = map[Side]string{
	SideBuy:        "Buy",
	SideSell:       "Sell",
	SideSellShort:  "SellShort",
	SideBuyToCover: "BuyToCover",
}

var sideByName = map[string]Side{
	"Buy":        SideBuy,
	"Sell":       SideSell,
	"SellShort":  SideSellShort,
	"BuyToCover": SideBuyToCover,
}

// ParseSide resolves a side name from an execution report.
func ParseSide(name string) (Side, bool) {
	side, ok := sideByName[name]
	return side, ok
}

func (s Side) String() string {
	if name, ok := sideNames[s]; ok {
		return name
	}
	return "Unknown"
}

// SignedDelta returns the running-quantity contribution of a fill.
// The side encodes execution direction, not position direction: a
// BuyToCover is still a buy-side fill and contributes a positive delta.
func (s Side) SignedDelta(qty int64) int64 {
	switch s {
	case SideBuy, SideBuyToCover:
		return qty
	case SideSell, SideSellShort:
		return -qty
	default:
		return 0
	}
}

// ValidationTag is assigned by the upstream ingestion collaborator.
// It is carried through the engine and aggregated, never computed here.
type ValidationTag uint8

const (
	TagUnset ValidationTag = iota
	TagValid
	TagInvalid
)

// ParseTag resolves a stored validation tag name.
func ParseTag(name string) (ValidationTag, bool) {
	switch name {
	case "Valid":
		return TagValid, true
	case "Invalid":
		return TagInvalid, true
	case "Unset", "":
		return TagUnset, true
	default:
		return TagUnset, false
	}
}

func (t ValidationTag) String() string {
	switch t {
	case TagValid:
		return "Valid"
	case TagInvalid:
		return "Invalid"
	default:
		return "Unset"
	}
}

// Execution is one immutable fill record. ID is the ingestion sequence
// and serves as the deterministic tie-break for identical timestamps.
type Execution struct {
	ID         uint64
	Account    string
	Symbol     string
	Side       Side
	Quantity   int64
	Price      decimal.Decimal
	Timestamp  time.Time
	Commission decimal.Decimal
	SourceRef  string
	Tag        ValidationTag
}

// NewExecution validates a raw record at the ingestion boundary and
// returns an immutable execution. Malformed records never reach the
// flow engine.
func NewExecution(raw Execution) (Execution, error) {
	if err := raw.Validate(); err != nil {
		return Execution{}, err
	}
	return raw, nil
}

// Validate checks the record shape without mutating it.
func (e Execution) Validate() error {
	switch {
	case e.Account == "":
		return exception.ErrExecutionMissingAccount
	case e.Symbol == "":
		return exception.ErrExecutionMissingSymbol
	case e.Side == SideUnknown:
		return exception.ErrExecutionUnknownSide
	case e.Quantity <= 0:
		return exception.ErrExecutionBadQuantity
	case e.Price.Sign() <= 0:
		return exception.ErrExecutionBadPrice
	case e.Commission.Sign() < 0:
		return exception.ErrExecutionBadCommission
	case e.Timestamp.IsZero():
		return exception.ErrExecutionBadTimestamp
	}
	return nil
}

// SignedDelta is the execution's contribution to the running quantity.
func (e Execution) SignedDelta() int64 {
	return e.Side.SignedDelta(e.Quantity)
}
