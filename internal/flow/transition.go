package flow

// Transition classifies one execution's effect on the running quantity.
type Transition uint8

const (
	TransitionNone Transition = iota
	TransitionOpen
	TransitionExtend
	TransitionClose
	TransitionBoundary
)

func (t Transition) String() string {
	switch t {
	case TransitionOpen:
		return "open"
	case TransitionExtend:
		return "extend"
	case TransitionClose:
		return "close"
	case TransitionBoundary:
		return "boundary"
	default:
		return "none"
	}
}

// Classify maps a (previous, next) running-quantity pair to a transition.
// A sign flip that skips zero is the boundary-violation condition: the
// group state machine only allows FLAT->OPEN, OPEN->FLAT and same-sign
// extension.
func Classify(previous, next int64) Transition {
	switch {
	case previous == next:
		return TransitionNone
	case previous == 0:
		return TransitionOpen
	case next == 0:
		return TransitionClose
	case (previous > 0) == (next > 0):
		return TransitionExtend
	default:
		return TransitionBoundary
	}
}
