package types

import (
	"strings"
	"time"
)

// TimestampLayout is the format of agent_joined_at and finished_at
const TimestampLayout = "2006-01-02 15:04:05"

// DateLayout is the format of a day key
const DateLayout = "2006-01-02"

// FinalStatus is the outcome label of a transaction
type FinalStatus string

// StatusCompleted is the only status that can open a daily slot
const StatusCompleted FinalStatus = "completed"

// Statuses seen in exported logs. Only StatusCompleted carries meaning for pairing.
const (
	StatusNoAnswer  FinalStatus = "no_answer"
	StatusAbandoned FinalStatus = "abandoned"
	StatusFailed    FinalStatus = "failed"
)

// TransactionRecord is one row of the transaction log. Timestamps use
// TimestampLayout; FinishedAt is set when the transaction completed.
type TransactionRecord struct {
	TransactionID   string      `json:"transactionId,omitempty" dynamodbav:"TransactionID"`
	AgentID         string      `json:"agentId" dynamodbav:"AgentID"`
	AgentJoinedAt   string      `json:"agentJoinedAt" dynamodbav:"AgentJoinedAt"`
	FinishedAt      string      `json:"finishedAt" dynamodbav:"FinishedAt"`
	FinalStatus     FinalStatus `json:"finalStatus" dynamodbav:"FinalStatus"`
	SelectedService string      `json:"selectedService" dynamodbav:"SelectedService"`
}

// DayKey returns the date portion of AgentJoinedAt
func (r TransactionRecord) DayKey() string {
	day, _, _ := strings.Cut(r.AgentJoinedAt, " ")
	return day
}

// Completed reports whether the transaction can open a slot
func (r TransactionRecord) Completed() bool {
	return r.FinalStatus == StatusCompleted
}

// ParseTimestamp parses a log timestamp in UTC
func ParseTimestamp(value string) (time.Time, bool) {
	t, err := time.Parse(TimestampLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
