package rebuild

import (
	"time"

	"main/internal/store"
	"main/internal/validate"
)

// Result summarizes one completed rebuild. A rebuild always returns a
// full summary rather than failing on recoverable data issues; only
// the atomic swap is all-or-nothing.
type Result struct {
	Scope                  store.Scope
	PositionsCreated       int
	ExecutionsProcessed    int
	ExecutionsRejected     int
	OpenPositionsRemaining int
	Findings               []validate.Finding
	Warnings               []string

	FetchDuration    time.Duration
	ScanDuration     time.Duration
	ValidateDuration time.Duration
	SwapDuration     time.Duration
}

// HighSeverityFindings counts findings an operator should act on.
func (r Result) HighSeverityFindings() int {
	count := 0
	for _, f := range r.Findings {
		if f.Severity == validate.SeverityHigh {
			count++
		}
	}
	return count
}

// Report is the output of a validate-only pass. Nothing is written;
// the findings feed an operator-approved follow-up rebuild.
type Report struct {
	Scope              store.Scope
	Findings           []validate.Finding
	Warnings           []string
	ExecutionsRejected int
	StoredPositions    int
}
