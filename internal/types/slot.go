package types

import (
	"maps"
	"slices"
)

// DailyAgentSlot tracks the first completed transaction of an agent on a day
// and the transaction that followed it
type DailyAgentSlot struct {
	FirstTransactionFinishedAt    string   `json:"firstTransactionFinishedAt"`
	FirstTransactionAgentJoinedAt string   `json:"firstTransactionAgentJoinedAt"`
	SelectedService               string   `json:"selectedService"`
	SecondTransactionStartAt      string   `json:"secondTransactionStartAt,omitempty"`
	DurationInSeconds             *float64 `json:"durationInSeconds,omitempty"` // nil when absent or not computable
	Closed                        bool     `json:"closed"`
}

// Duration returns the gap in seconds, or 0 when there is none
func (s *DailyAgentSlot) Duration() float64 {
	if s.DurationInSeconds == nil {
		return 0
	}
	return *s.DurationInSeconds
}

// DailySlots maps day key -> agent id -> slot
type DailySlots map[string]map[string]*DailyAgentSlot

// Days returns the day keys in ascending order
func (d DailySlots) Days() []string {
	return slices.Sorted(maps.Keys(d))
}

// Agents returns the agent ids with a slot on day, in ascending order
func (d DailySlots) Agents(day string) []string {
	return slices.Sorted(maps.Keys(d[day]))
}

// Slot returns the slot for (day, agentID), or nil
func (d DailySlots) Slot(day, agentID string) *DailyAgentSlot {
	return d[day][agentID]
}

// SlotCount returns the number of slots across all days
func (d DailySlots) SlotCount() int {
	n := 0
	for _, agents := range d {
		n += len(agents)
	}
	return n
}

// AgentSlot is a slot flattened with its keys, used in API payloads
type AgentSlot struct {
	Date    string `json:"date"`
	AgentID string `json:"agentId"`
	DailyAgentSlot
}
