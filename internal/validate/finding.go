// Package validate runs non-destructive sanity checks around the flow
// engine: pre-validation on raw executions and post-validation on
// rebuilt positions. It only ever emits findings; remediation is an
// operator decision.
package validate

import (
	"fmt"

	"github.com/google/uuid"

	"main/internal/flow"
)

// FindingKind categorizes a validation finding.
type FindingKind uint8

const (
	KindUnknown FindingKind = iota
	KindTimeOverlap
	KindBoundaryViolation
	KindConsistencyAnomaly
)

func (k FindingKind) String() string {
	switch k {
	case KindTimeOverlap:
		return "time_overlap"
	case KindBoundaryViolation:
		return "boundary_violation"
	case KindConsistencyAnomaly:
		return "consistency_anomaly"
	default:
		return "unknown"
	}
}

// Fix is the suggested remediation for a finding. It is never applied
// automatically.
type Fix uint8

const (
	FixNone Fix = iota
	FixMergePositions
	FixRebuildPositions
	FixInvestigateSplit
)

func (f Fix) String() string {
	switch f {
	case FixMergePositions:
		return "merge_positions"
	case FixRebuildPositions:
		return "rebuild_positions"
	case FixInvestigateSplit:
		return "investigate_split"
	default:
		return "none"
	}
}

// Severity ranks how urgently a finding needs operator attention.
type Severity uint8

const (
	SeverityMedium Severity = iota + 1
	SeverityHigh
)

func (s Severity) String() string {
	if s == SeverityHigh {
		return "high"
	}
	return "medium"
}

// SuggestedFix maps a finding kind to its remediation and severity.
func SuggestedFix(kind FindingKind) (Fix, Severity) {
	switch kind {
	case KindTimeOverlap:
		return FixMergePositions, SeverityHigh
	case KindBoundaryViolation:
		return FixRebuildPositions, SeverityHigh
	case KindConsistencyAnomaly:
		return FixInvestigateSplit, SeverityMedium
	default:
		return FixNone, SeverityMedium
	}
}

// Finding is one reported validation issue.
type Finding struct {
	Kind        FindingKind
	Fix         Fix
	Severity    Severity
	Account     string
	Symbol      string
	Message     string
	ExecutionID uint64
	PositionIDs []uuid.UUID
}

// NewFinding builds a finding with the kind's suggested fix attached.
func NewFinding(kind FindingKind, account, symbol, message string) Finding {
	fix, severity := SuggestedFix(kind)
	return Finding{
		Kind:     kind,
		Fix:      fix,
		Severity: severity,
		Account:  account,
		Symbol:   symbol,
		Message:  message,
	}
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s %s/%s: %s (suggested fix: %s)",
		f.Severity, f.Kind, f.Account, f.Symbol, f.Message, f.Fix)
}

// BoundaryFinding converts a flow violation into a finding.
func BoundaryFinding(v flow.Violation) Finding {
	f := NewFinding(KindBoundaryViolation, v.Account, v.Symbol,
		fmt.Sprintf("running quantity flipped %d -> %d without crossing zero", v.PreviousQty, v.NextQty))
	f.ExecutionID = v.ExecutionID
	return f
}
