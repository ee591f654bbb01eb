package exception

import "errors"

// Execution validation errors
var (
	ErrExecutionMissingAccount = errors.New("execution account is empty")
	ErrExecutionMissingSymbol  = errors.New("execution symbol is empty")
	ErrExecutionUnknownSide    = errors.New("execution side is unknown")
	ErrExecutionBadQuantity    = errors.New("execution quantity must be > 0")
	ErrExecutionBadPrice       = errors.New("execution price must be > 0")
	ErrExecutionBadCommission  = errors.New("execution commission must be >= 0")
	ErrExecutionBadTimestamp   = errors.New("execution timestamp is zero")
)
