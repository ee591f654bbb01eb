package validate

import (
	"fmt"

	"github.com/yanun0323/logs"

	"main/internal/flow"
	"main/internal/schema"
)

// Rejection pairs an excluded record with its validation error.
type Rejection struct {
	Execution schema.Execution
	Err       error
}

// PreReport is the outcome of pre-validating a raw execution batch.
type PreReport struct {
	Valid    []schema.Execution
	Rejected []Rejection
	Warnings []string
}

// PreValidate checks raw executions before the flow engine runs.
// Malformed records are excluded from their group and surfaced; the
// rest of the group still processes. Duplicate-timestamp groups are
// flagged but kept, and a dry-run quantity walk surfaces boundary
// violations before anything is persisted.
func PreValidate(execs []schema.Execution) PreReport {
	var report PreReport
	for _, e := range execs {
		if err := e.Validate(); err != nil {
			logs.Warnf("execution %d excluded: %v", e.ID, err)
			report.Rejected = append(report.Rejected, Rejection{Execution: e, Err: err})
			continue
		}
		report.Valid = append(report.Valid, e)
	}

	groups := flow.Group(report.Valid)
	for _, key := range flow.SortedKeys(groups) {
		group := make([]schema.Execution, len(groups[key]))
		copy(group, groups[key])
		schema.SortExecutions(group)

		report.Warnings = append(report.Warnings, duplicateTimestampWarnings(key, group)...)
		report.Warnings = append(report.Warnings, dryRunWarnings(key, group)...)
	}
	return report
}

// duplicateTimestampWarnings flags simultaneous executions. They are a
// data-quality signal, not an error: the ingestion sequence breaks the
// tie deterministically.
func duplicateTimestampWarnings(key flow.GroupKey, sorted []schema.Execution) []string {
	var warnings []string
	for i := 1; i < len(sorted); i++ {
		if !sorted[i].Timestamp.Equal(sorted[i-1].Timestamp) {
			continue
		}
		warnings = append(warnings, fmt.Sprintf(
			"%s/%s: executions %d and %d share timestamp %s, ordered by ingestion sequence",
			key.Account, key.Symbol, sorted[i-1].ID, sorted[i].ID,
			sorted[i].Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00")))
	}
	return warnings
}

// dryRunWarnings simulates the running-quantity walk without keeping
// any result, purely to detect boundary violations early.
func dryRunWarnings(key flow.GroupKey, sorted []schema.Execution) []string {
	var (
		warnings []string
		running  int64
	)
	for _, e := range sorted {
		delta := e.SignedDelta()
		if delta == 0 {
			continue
		}
		next := running + delta
		if flow.Classify(running, next) == flow.TransitionBoundary {
			warnings = append(warnings, fmt.Sprintf(
				"%s/%s: execution %d flips running quantity %d -> %d without crossing zero",
				key.Account, key.Symbol, e.ID, running, next))
			running = delta
			continue
		}
		running = next
	}
	return warnings
}
