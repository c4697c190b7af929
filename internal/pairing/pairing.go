// Package pairing derives one after-call-work gap per agent and day from a
// transaction log.
//
// The first transaction of an agent on a day opens a slot only if it was
// completed; when it was not, that agent has no slot for the day at all. The
// next transaction of that agent on the same day closes the slot, whatever
// its own status. Every later transaction is ignored.
package pairing

import (
	"slices"

	"github.com/dennisdiepolder/monti/acw/internal/types"
)

// Stats counts what happened to each record during pairing
type Stats struct {
	Records        int
	Opened         int
	Closed         int
	SkippedOpeners int // first record of the day was not completed
	Ignored        int // slot already closed, or the day never opened
	InvalidGaps    int // closed without a computable duration
}

// BuildDailySlots pairs records into day -> agent -> slot
func BuildDailySlots(records []types.TransactionRecord) types.DailySlots {
	slots, _ := BuildDailySlotsWithStats(records)
	return slots
}

// BuildDailySlotsWithStats is BuildDailySlots plus per-record counters
func BuildDailySlotsWithStats(records []types.TransactionRecord) (types.DailySlots, Stats) {
	slots := make(types.DailySlots)
	stats := Stats{Records: len(records)}
	seen := make(map[slotKey]bool)

	for _, rec := range SortByJoinedAt(records) {
		day := rec.DayKey()
		agents, ok := slots[day]
		if !ok {
			agents = make(map[string]*types.DailyAgentSlot)
			slots[day] = agents
		}

		key := slotKey{day: day, agentID: rec.AgentID}
		first := !seen[key]
		seen[key] = true

		slot, ok := agents[rec.AgentID]
		switch {
		case !ok && !first:
			stats.Ignored++

		case !ok:
			if !rec.Completed() {
				stats.SkippedOpeners++
				continue
			}
			agents[rec.AgentID] = &types.DailyAgentSlot{
				FirstTransactionFinishedAt:    rec.FinishedAt,
				FirstTransactionAgentJoinedAt: rec.AgentJoinedAt,
				SelectedService:               rec.SelectedService,
			}
			stats.Opened++

		case !slot.Closed:
			slot.SecondTransactionStartAt = rec.AgentJoinedAt
			slot.DurationInSeconds = gapSeconds(slot.FirstTransactionFinishedAt, rec.AgentJoinedAt)
			slot.Closed = true
			stats.Closed++
			if slot.DurationInSeconds == nil {
				stats.InvalidGaps++
			}

		default:
			stats.Ignored++
		}
	}

	return slots, stats
}

type slotKey struct {
	day     string
	agentID string
}

// SortByJoinedAt returns a stably sorted copy of records, ordered by
// agent_joined_at. Records without agent_joined_at go last.
func SortByJoinedAt(records []types.TransactionRecord) []types.TransactionRecord {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b types.TransactionRecord) int {
		switch {
		case a.AgentJoinedAt == b.AgentJoinedAt:
			return 0
		case a.AgentJoinedAt == "":
			return 1
		case b.AgentJoinedAt == "":
			return -1
		case a.AgentJoinedAt < b.AgentJoinedAt:
			return -1
		default:
			return 1
		}
	})
	return sorted
}

// gapSeconds returns startedAt - finishedAt in seconds. Negative gaps are kept.
func gapSeconds(finishedAt, startedAt string) *float64 {
	finished, ok := types.ParseTimestamp(finishedAt)
	if !ok {
		return nil
	}
	started, ok := types.ParseTimestamp(startedAt)
	if !ok {
		return nil
	}
	d := started.Sub(finished).Seconds()
	return &d
}
