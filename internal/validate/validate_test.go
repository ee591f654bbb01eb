package validate

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/flow"
	"main/internal/schema"
	"main/pkg/exception"
)

var testBase = time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

func testExec(id uint64, side schema.Side, qty int64, offset time.Duration) schema.Execution {
	return schema.Execution{
		ID:        id,
		Account:   "ACC-1",
		Symbol:    "ESH6",
		Side:      side,
		Quantity:  qty,
		Price:     decimal.RequireFromString("100"),
		Timestamp: testBase.Add(offset),
	}
}

func TestPreValidateExcludesMalformed(t *testing.T) {
	bad := testExec(2, schema.SideSell, 5, time.Minute)
	bad.Price = decimal.Zero

	report := PreValidate([]schema.Execution{
		testExec(1, schema.SideBuy, 5, 0),
		bad,
		testExec(3, schema.SideSell, 5, 2*time.Minute),
	})

	require.Len(t, report.Valid, 2)
	require.Len(t, report.Rejected, 1)
	assert.Equal(t, uint64(2), report.Rejected[0].Execution.ID)
	require.ErrorIs(t, report.Rejected[0].Err, exception.ErrExecutionBadPrice)

	// the rest of the group still processes
	assert.Equal(t, uint64(1), report.Valid[0].ID)
	assert.Equal(t, uint64(3), report.Valid[1].ID)
}

func TestPreValidateDuplicateTimestampWarning(t *testing.T) {
	report := PreValidate([]schema.Execution{
		testExec(1, schema.SideBuy, 5, 0),
		testExec(2, schema.SideSell, 5, 0),
	})

	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "executions 1 and 2 share timestamp")
	assert.Len(t, report.Valid, 2, "duplicate timestamps are kept, not rejected")
}

func TestPreValidateBoundaryWarning(t *testing.T) {
	report := PreValidate([]schema.Execution{
		testExec(1, schema.SideBuy, 5, 0),
		testExec(2, schema.SideSell, 8, time.Minute),
	})

	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "execution 2 flips running quantity 5 -> -3")
}

func TestPreValidateCleanBatch(t *testing.T) {
	report := PreValidate([]schema.Execution{
		testExec(1, schema.SideBuy, 5, 0),
		testExec(2, schema.SideSell, 5, time.Minute),
	})
	assert.Len(t, report.Valid, 2)
	assert.Empty(t, report.Rejected)
	assert.Empty(t, report.Warnings)
}

func closedPosition(entry, exit time.Duration, direction schema.Direction) schema.Position {
	exitTime := testBase.Add(exit)
	return schema.Position{
		ID:        uuid.New(),
		Account:   "ACC-1",
		Symbol:    "ESH6",
		Direction: direction,
		EntryTime: testBase.Add(entry),
		ExitTime:  &exitTime,
		Quantity:  5,
		ExecutionIDs: []uint64{
			uint64(entry/time.Minute)*10 + 1,
			uint64(entry/time.Minute)*10 + 2,
		},
	}
}

func TestPostValidateOverlap(t *testing.T) {
	now := testBase.Add(time.Hour)
	a := closedPosition(0, 10*time.Minute, schema.DirectionLong)
	b := closedPosition(5*time.Minute, 15*time.Minute, schema.DirectionLong)

	findings := PostValidate([]schema.Position{a, b}, now)
	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, KindTimeOverlap, f.Kind)
	assert.Equal(t, SeverityHigh, f.Severity)
	assert.Equal(t, FixMergePositions, f.Fix)
	assert.Equal(t, []uuid.UUID{a.ID, b.ID}, f.PositionIDs)
}

func TestPostValidateTouchingIntervalsDoNotOverlap(t *testing.T) {
	now := testBase.Add(time.Hour)
	a := closedPosition(0, 10*time.Minute, schema.DirectionLong)
	b := closedPosition(10*time.Minute, 20*time.Minute, schema.DirectionShort)

	findings := PostValidate([]schema.Position{a, b}, now)
	assert.Empty(t, findings)
}

func TestPostValidateAdjacentSameDirection(t *testing.T) {
	now := testBase.Add(time.Hour)
	a := closedPosition(0, 10*time.Minute, schema.DirectionLong)
	b := closedPosition(10*time.Minute, 20*time.Minute, schema.DirectionLong)

	findings := PostValidate([]schema.Position{a, b}, now)
	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, KindBoundaryViolation, f.Kind)
	assert.Equal(t, SeverityHigh, f.Severity)
	assert.Equal(t, FixRebuildPositions, f.Fix)
}

func TestPostValidateLowConfidence(t *testing.T) {
	now := testBase.Add(time.Hour)
	zero := decimal.Zero
	p := closedPosition(0, 10*time.Minute, schema.DirectionLong)
	p.ExecutionIDs = []uint64{1}
	p.RealizedPnL = &zero

	findings := PostValidate([]schema.Position{p}, now)
	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, KindConsistencyAnomaly, f.Kind)
	assert.Equal(t, SeverityMedium, f.Severity)
	assert.Equal(t, FixInvestigateSplit, f.Fix)
	assert.Equal(t, []uuid.UUID{p.ID}, f.PositionIDs)
}

func TestPostValidateGroupsIndependently(t *testing.T) {
	now := testBase.Add(time.Hour)
	a := closedPosition(0, 10*time.Minute, schema.DirectionLong)
	b := closedPosition(5*time.Minute, 15*time.Minute, schema.DirectionLong)
	b.Symbol = "NQH6"

	findings := PostValidate([]schema.Position{a, b}, now)
	assert.Empty(t, findings, "overlap checks never cross (account, symbol) groups")
}

func TestFindingString(t *testing.T) {
	f := NewFinding(KindTimeOverlap, "ACC-1", "ESH6", "positions overlap")
	assert.Equal(t, "[high] time_overlap ACC-1/ESH6: positions overlap (suggested fix: merge_positions)", f.String())
}

func TestBoundaryFinding(t *testing.T) {
	f := BoundaryFinding(flow.Violation{
		Account:     "ACC-1",
		Symbol:      "ESH6",
		ExecutionID: 7,
		Timestamp:   testBase,
		PreviousQty: 5,
		NextQty:     -3,
	})
	assert.Equal(t, KindBoundaryViolation, f.Kind)
	assert.Equal(t, SeverityHigh, f.Severity)
	assert.Equal(t, uint64(7), f.ExecutionID)
	assert.Contains(t, f.Message, "5 -> -3")
}
