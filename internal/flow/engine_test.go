package flow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/schema"
)

var testBase = time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

func testExec(id uint64, side schema.Side, qty int64, price string, offset time.Duration) schema.Execution {
	return schema.Execution{
		ID:        id,
		Account:   "ACC-1",
		Symbol:    "ESH6",
		Side:      side,
		Quantity:  qty,
		Price:     decimal.RequireFromString(price),
		Timestamp: testBase.Add(offset),
		Tag:       schema.TagValid,
	}
}

func scan(t *testing.T, execs ...schema.Execution) Result {
	t.Helper()
	res, err := Scan(execs, decimal.NewFromInt(1))
	require.NoError(t, err)
	return res
}

func TestScanSimpleRoundTrip(t *testing.T) {
	res := scan(t,
		testExec(1, schema.SideBuy, 10, "100", 0),
		testExec(2, schema.SideSell, 10, "105", time.Minute),
	)

	require.Len(t, res.Positions, 1)
	require.Empty(t, res.Violations)

	p := res.Positions[0]
	assert.Equal(t, schema.DirectionLong, p.Direction)
	assert.Equal(t, int64(10), p.Quantity)
	assert.True(t, p.EntryPrice.Equal(decimal.RequireFromString("100")), "entry %s", p.EntryPrice)
	require.NotNil(t, p.ExitTime)
	require.NotNil(t, p.ExitPrice)
	require.NotNil(t, p.RealizedPnL)
	assert.True(t, p.ExitPrice.Equal(decimal.RequireFromString("105")), "exit %s", p.ExitPrice)
	assert.True(t, p.RealizedPnL.Equal(decimal.RequireFromString("50")), "pnl %s", p.RealizedPnL)
	assert.True(t, p.EntryTime.Equal(testBase))
	assert.True(t, p.ExitTime.Equal(testBase.Add(time.Minute)))
	assert.Equal(t, []uint64{1, 2}, p.ExecutionIDs)
	assert.Equal(t, schema.TagValid, p.Tag)
}

func TestScanWeightedEntry(t *testing.T) {
	res := scan(t,
		testExec(1, schema.SideBuy, 6, "100", 0),
		testExec(2, schema.SideBuy, 6, "101", time.Minute),
		testExec(3, schema.SideSell, 12, "105", 2*time.Minute),
	)

	require.Len(t, res.Positions, 1)
	p := res.Positions[0]
	assert.Equal(t, int64(12), p.Quantity)
	assert.True(t, p.EntryPrice.Equal(decimal.RequireFromString("100.5")), "entry %s", p.EntryPrice)
	require.NotNil(t, p.ExitPrice)
	assert.True(t, p.ExitPrice.Equal(decimal.RequireFromString("105")))
	assert.True(t, p.RealizedPnL.Equal(decimal.RequireFromString("54")), "pnl %s", p.RealizedPnL)
}

func TestScanIndependentRoundTrips(t *testing.T) {
	res := scan(t,
		testExec(1, schema.SideBuy, 5, "100", 0),
		testExec(2, schema.SideSell, 5, "102", time.Minute),
		testExec(3, schema.SideBuy, 3, "103", 2*time.Minute),
		testExec(4, schema.SideSell, 3, "104", 3*time.Minute),
	)

	require.Len(t, res.Positions, 2)
	require.Empty(t, res.Violations)

	first, second := res.Positions[0], res.Positions[1]
	assert.Equal(t, []uint64{1, 2}, first.ExecutionIDs)
	assert.Equal(t, []uint64{3, 4}, second.ExecutionIDs)
	assert.False(t, first.Open())
	assert.False(t, second.Open())
	assert.True(t, first.RealizedPnL.Equal(decimal.RequireFromString("10")))
	assert.True(t, second.RealizedPnL.Equal(decimal.RequireFromString("3")))
}

func TestScanBoundaryViolation(t *testing.T) {
	res := scan(t,
		testExec(1, schema.SideBuy, 5, "100", 0),
		testExec(2, schema.SideSell, 8, "102", time.Minute),
	)

	require.Len(t, res.Violations, 1)
	v := res.Violations[0]
	assert.Equal(t, uint64(2), v.ExecutionID)
	assert.Equal(t, int64(5), v.PreviousQty)
	assert.Equal(t, int64(-3), v.NextQty)

	require.Len(t, res.Positions, 2)

	// the in-progress long is emitted as suspect, never merged into a short
	suspect := res.Positions[0]
	assert.Equal(t, schema.DirectionLong, suspect.Direction)
	assert.Equal(t, schema.TagInvalid, suspect.Tag)
	assert.Equal(t, []uint64{1}, suspect.ExecutionIDs)
	require.NotNil(t, suspect.ExitTime)
	assert.True(t, suspect.ExitTime.Equal(testBase.Add(time.Minute)))
	assert.Nil(t, suspect.ExitPrice, "no exit-side fill, so no exit price")
	assert.Nil(t, suspect.RealizedPnL)

	// the flipping execution restarts the walk with its full delta
	restarted := res.Positions[1]
	assert.Equal(t, schema.DirectionShort, restarted.Direction)
	assert.Equal(t, int64(8), restarted.Quantity)
	assert.True(t, restarted.Open())
	assert.Equal(t, []uint64{2}, restarted.ExecutionIDs)
	assert.True(t, restarted.EntryPrice.Equal(decimal.RequireFromString("102")))
}

func TestScanTrailingOpenPosition(t *testing.T) {
	res := scan(t, testExec(1, schema.SideBuy, 4, "100", 0))

	require.Len(t, res.Positions, 1)
	p := res.Positions[0]
	assert.True(t, p.Open())
	assert.Equal(t, int64(4), p.Quantity)
	assert.Nil(t, p.ExitTime)
	assert.Nil(t, p.ExitPrice)
	assert.Nil(t, p.RealizedPnL)
}

func TestScanPeakQuantity(t *testing.T) {
	res := scan(t,
		testExec(1, schema.SideBuy, 5, "100", 0),
		testExec(2, schema.SideBuy, 5, "101", time.Minute),
		testExec(3, schema.SideSell, 3, "103", 2*time.Minute),
		testExec(4, schema.SideSell, 7, "104", 3*time.Minute),
	)

	require.Len(t, res.Positions, 1)
	p := res.Positions[0]
	assert.Equal(t, int64(10), p.Quantity, "quantity is the peak absolute running quantity")
	assert.False(t, p.Open())
	assert.Equal(t, []uint64{1, 2, 3, 4}, p.ExecutionIDs)
}

func TestScanShortRoundTrip(t *testing.T) {
	res := scan(t,
		testExec(1, schema.SideSellShort, 6, "110", 0),
		testExec(2, schema.SideBuyToCover, 6, "104", time.Minute),
	)

	require.Len(t, res.Positions, 1)
	p := res.Positions[0]
	assert.Equal(t, schema.DirectionShort, p.Direction)
	assert.True(t, p.EntryPrice.Equal(decimal.RequireFromString("110")))
	require.NotNil(t, p.RealizedPnL)
	assert.True(t, p.RealizedPnL.Equal(decimal.RequireFromString("36")), "pnl %s", p.RealizedPnL)
}

func TestScanTimestampTieBreak(t *testing.T) {
	// both fills share a timestamp; the ingestion sequence must order
	// the buy before the sell, yielding one closed long
	res := scan(t,
		testExec(2, schema.SideSell, 5, "102", 0),
		testExec(1, schema.SideBuy, 5, "100", 0),
	)

	require.Len(t, res.Positions, 1)
	require.Empty(t, res.Violations)
	p := res.Positions[0]
	assert.Equal(t, schema.DirectionLong, p.Direction)
	assert.False(t, p.Open())
	assert.Equal(t, []uint64{1, 2}, p.ExecutionIDs)
}

func TestScanPointValueMultiplier(t *testing.T) {
	execs := []schema.Execution{
		testExec(1, schema.SideBuy, 2, "100", 0),
		testExec(2, schema.SideSell, 2, "103", time.Minute),
	}
	res, err := Scan(execs, decimal.NewFromInt(50))
	require.NoError(t, err)

	require.Len(t, res.Positions, 1)
	assert.True(t, res.Positions[0].RealizedPnL.Equal(decimal.RequireFromString("300")),
		"pnl %s", res.Positions[0].RealizedPnL)
}

func TestScanCommissionReducesPnL(t *testing.T) {
	open := testExec(1, schema.SideBuy, 10, "100", 0)
	open.Commission = decimal.RequireFromString("2.5")
	exit := testExec(2, schema.SideSell, 10, "105", time.Minute)
	exit.Commission = decimal.RequireFromString("2.5")

	res := scan(t, open, exit)
	require.Len(t, res.Positions, 1)
	p := res.Positions[0]
	assert.True(t, p.Commission.Equal(decimal.RequireFromString("5")))
	assert.True(t, p.RealizedPnL.Equal(decimal.RequireFromString("45")), "pnl %s", p.RealizedPnL)
}

func TestScanExclusiveOwnership(t *testing.T) {
	res := scan(t,
		testExec(1, schema.SideBuy, 5, "100", 0),
		testExec(2, schema.SideSell, 5, "101", time.Minute),
		testExec(3, schema.SideSellShort, 4, "102", 2*time.Minute),
		testExec(4, schema.SideBuyToCover, 4, "101", 3*time.Minute),
		testExec(5, schema.SideBuy, 2, "103", 4*time.Minute),
	)

	seen := make(map[uint64]int)
	for _, p := range res.Positions {
		for _, id := range p.ExecutionIDs {
			seen[id]++
		}
	}
	require.Len(t, seen, 5)
	for id, count := range seen {
		assert.Equalf(t, 1, count, "execution %d owned by %d positions", id, count)
	}
}

func TestScanZeroSumClosure(t *testing.T) {
	execs := []schema.Execution{
		testExec(1, schema.SideBuy, 5, "100", 0),
		testExec(2, schema.SideBuy, 3, "101", time.Minute),
		testExec(3, schema.SideSell, 8, "102", 2*time.Minute),
		testExec(4, schema.SideSellShort, 4, "103", 3*time.Minute),
		testExec(5, schema.SideBuyToCover, 4, "101", 4*time.Minute),
		testExec(6, schema.SideBuy, 2, "104", 5*time.Minute),
	}
	res, err := Scan(execs, decimal.NewFromInt(1))
	require.NoError(t, err)

	byID := make(map[uint64]schema.Execution, len(execs))
	for _, e := range execs {
		byID[e.ID] = e
	}
	for _, p := range res.Positions {
		if p.Open() {
			continue
		}
		var sum int64
		for _, id := range p.ExecutionIDs {
			sum += byID[id].SignedDelta()
		}
		assert.Zerof(t, sum, "closed position %s must net to zero", p.ID)
	}
}

func TestScanMixedGroup(t *testing.T) {
	other := testExec(2, schema.SideSell, 5, "101", time.Minute)
	other.Account = "ACC-2"

	_, err := Scan([]schema.Execution{
		testExec(1, schema.SideBuy, 5, "100", 0),
		other,
	}, decimal.NewFromInt(1))
	require.ErrorIs(t, err, ErrMixedGroup)
}

func TestScanEmptyInput(t *testing.T) {
	res, err := Scan(nil, decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Empty(t, res.Positions)
	assert.Empty(t, res.Violations)
}

func TestScanDoesNotMutateInput(t *testing.T) {
	execs := []schema.Execution{
		testExec(2, schema.SideSell, 5, "102", time.Minute),
		testExec(1, schema.SideBuy, 5, "100", 0),
	}
	_, err := Scan(execs, decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), execs[0].ID)
	assert.Equal(t, uint64(1), execs[1].ID)
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		desc     string
		previous int64
		next     int64
		expected Transition
	}{
		{"flat stays flat", 0, 0, TransitionNone},
		{"open long", 0, 5, TransitionOpen},
		{"open short", 0, -5, TransitionOpen},
		{"extend long", 5, 8, TransitionExtend},
		{"reduce long", 8, 5, TransitionExtend},
		{"close long", 5, 0, TransitionClose},
		{"close short", -3, 0, TransitionClose},
		{"long flips short", 5, -3, TransitionBoundary},
		{"short flips long", -2, 4, TransitionBoundary},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.expected, Classify(tc.previous, tc.next))
		})
	}
}

func TestGroupPartitions(t *testing.T) {
	a := testExec(1, schema.SideBuy, 1, "100", 0)
	b := testExec(2, schema.SideBuy, 1, "100", 0)
	b.Symbol = "NQH6"
	c := testExec(3, schema.SideBuy, 1, "100", 0)
	c.Account = "ACC-2"

	groups := Group([]schema.Execution{a, b, c})
	require.Len(t, groups, 3)

	keys := SortedKeys(groups)
	assert.Equal(t, GroupKey{Account: "ACC-1", Symbol: "ESH6"}, keys[0])
	assert.Equal(t, GroupKey{Account: "ACC-1", Symbol: "NQH6"}, keys[1])
	assert.Equal(t, GroupKey{Account: "ACC-2", Symbol: "ESH6"}, keys[2])
}
