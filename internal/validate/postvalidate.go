package validate

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"main/internal/schema"
)

// PostValidate scans rebuilt positions for interval overlap, missed
// boundary states, and low-confidence results. It never mutates its
// input; now bounds the intervals of still-open positions.
func PostValidate(positions []schema.Position, now time.Time) []Finding {
	var findings []Finding

	grouped := groupPositions(positions)
	for _, key := range sortedPositionKeys(grouped) {
		group := grouped[key]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].EntryTime.Before(group[j].EntryTime)
		})

		findings = append(findings, overlapFindings(group, now)...)
		findings = append(findings, adjacencyFindings(group)...)
		findings = append(findings, confidenceFindings(group)...)
	}
	return findings
}

type positionKey struct {
	account string
	symbol  string
}

func groupPositions(positions []schema.Position) map[positionKey][]schema.Position {
	grouped := make(map[positionKey][]schema.Position)
	for _, p := range positions {
		key := positionKey{account: p.Account, symbol: p.Symbol}
		grouped[key] = append(grouped[key], p)
	}
	return grouped
}

func sortedPositionKeys(grouped map[positionKey][]schema.Position) []positionKey {
	keys := make([]positionKey, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].account != keys[j].account {
			return keys[i].account < keys[j].account
		}
		return keys[i].symbol < keys[j].symbol
	})
	return keys
}

// overlapFindings sweeps entry-sorted positions and reports every pair
// whose [entry, exit) intervals intersect.
func overlapFindings(sorted []schema.Position, now time.Time) []Finding {
	var findings []Finding
	for i := 1; i < len(sorted); i++ {
		// check every predecessor, not just the previous entry: a long
		// first interval can swallow later ones
		for j := 0; j < i; j++ {
			if !sorted[j].Overlaps(sorted[i], now) {
				continue
			}
			f := NewFinding(KindTimeOverlap, sorted[i].Account, sorted[i].Symbol,
				fmt.Sprintf("positions %s and %s overlap in time", sorted[j].ID, sorted[i].ID))
			f.PositionIDs = []uuid.UUID{sorted[j].ID, sorted[i].ID}
			findings = append(findings, f)
		}
	}
	return findings
}

// adjacencyFindings reports two consecutive same-direction positions
// with no intervening flat or opposite state between them.
func adjacencyFindings(sorted []schema.Position) []Finding {
	var findings []Finding
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev.ExitTime == nil || prev.Direction != cur.Direction {
			continue
		}
		if !cur.EntryTime.Equal(*prev.ExitTime) {
			continue
		}
		f := NewFinding(KindBoundaryViolation, cur.Account, cur.Symbol,
			fmt.Sprintf("positions %s and %s are same-direction with no flat state between them", prev.ID, cur.ID))
		f.PositionIDs = []uuid.UUID{prev.ID, cur.ID}
		findings = append(findings, f)
	}
	return findings
}

// confidenceFindings flags single-execution positions with zero P&L,
// which usually indicates mis-grouped source data.
func confidenceFindings(group []schema.Position) []Finding {
	var findings []Finding
	for _, p := range group {
		if len(p.ExecutionIDs) != 1 || p.RealizedPnL == nil || !p.RealizedPnL.IsZero() {
			continue
		}
		f := NewFinding(KindConsistencyAnomaly, p.Account, p.Symbol,
			fmt.Sprintf("position %s has a single execution and zero P&L", p.ID))
		f.PositionIDs = []uuid.UUID{p.ID}
		findings = append(findings, f)
	}
	return findings
}
