// Package generator produces synthetic transaction logs for demos and
// load tests. Output is deterministic for a given seed.
package generator

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/dennisdiepolder/monti/acw/internal/types"
	"github.com/google/uuid"
)

// Department groups the services an agent takes calls for
type Department string

const (
	DeptSales     Department = "sales"
	DeptSupport   Department = "support"
	DeptTechnical Department = "technical"
	DeptRetention Department = "retention"
)

type serviceWeight struct {
	Service string
	Weight  int
}

var departments = []Department{DeptSales, DeptSupport, DeptTechnical, DeptRetention}

// Distribution: 30% Sales, 35% Support, 20% Technical, 15% Retention
var departmentWeights = []int{30, 35, 20, 15}

var departmentServices = map[Department][]serviceWeight{
	DeptSales: {
		{Service: "sales_inbound", Weight: 4},
		{Service: "sales_callback", Weight: 3},
		{Service: "sales_chat", Weight: 3},
	},
	DeptSupport: {
		{Service: "support_general", Weight: 4},
		{Service: "support_billing", Weight: 3},
		{Service: "support_chat", Weight: 3},
	},
	DeptTechnical: {
		{Service: "tech_l1", Weight: 4},
		{Service: "tech_l2", Weight: 3},
	},
	DeptRetention: {
		{Service: "retention_save", Weight: 4},
		{Service: "retention_cancel", Weight: 3},
	},
}

var statuses = []types.FinalStatus{
	types.StatusCompleted,
	types.StatusNoAnswer,
	types.StatusAbandoned,
	types.StatusFailed,
}

// Distribution: 80% completed, 10% no answer, 6% abandoned, 4% failed
var statusWeights = []int{80, 10, 6, 4}

const (
	minPerDay = 2
	maxPerDay = 8

	// share of transactions exported without a service, in percent
	missingServicePct = 2
)

// Options controls the size and time range of a generated log
type Options struct {
	Agents int
	Days   int
	Start  time.Time // first day; only the date is used
}

// Generator creates fake transaction logs
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a new generator
func NewGenerator(seed int64) *Generator {
	return &Generator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Generate returns opts.Agents * opts.Days worth of transactions in
// shuffled order
func (g *Generator) Generate(opts Options) ([]types.TransactionRecord, error) {
	if opts.Agents <= 0 {
		return nil, fmt.Errorf("agents must be positive, got %d", opts.Agents)
	}
	if opts.Days <= 0 {
		return nil, fmt.Errorf("days must be positive, got %d", opts.Days)
	}

	start := time.Date(opts.Start.Year(), opts.Start.Month(), opts.Start.Day(), 0, 0, 0, 0, time.UTC)

	agentDepts := make([]Department, opts.Agents)
	for i := range agentDepts {
		agentDepts[i] = weightedChoice(g.rng, departments, departmentWeights)
	}

	records := make([]types.TransactionRecord, 0, opts.Agents*opts.Days*(minPerDay+maxPerDay)/2)
	for day := 0; day < opts.Days; day++ {
		date := start.AddDate(0, 0, day)
		for i, dept := range agentDepts {
			agentID := fmt.Sprintf("AGT-%05d", i+1)
			dayRecords, err := g.agentDay(agentID, dept, date)
			if err != nil {
				return nil, err
			}
			records = append(records, dayRecords...)
		}
	}

	g.rng.Shuffle(len(records), func(i, j int) {
		records[i], records[j] = records[j], records[i]
	})

	return records, nil
}

// agentDay generates one shift for an agent
func (g *Generator) agentDay(agentID string, dept Department, date time.Time) ([]types.TransactionRecord, error) {
	count := minPerDay + g.rng.Intn(maxPerDay-minPerDay+1)

	// Shift starts between 08:00 and 10:00
	at := date.Add(8*time.Hour + time.Duration(g.rng.Intn(120))*time.Minute)

	services := departmentServices[dept]
	serviceWeights := make([]int, len(services))
	for i, s := range services {
		serviceWeights[i] = s.Weight
	}

	records := make([]types.TransactionRecord, 0, count)
	for n := 0; n < count; n++ {
		id, err := uuid.NewRandomFromReader(g.rng)
		if err != nil {
			return nil, fmt.Errorf("failed to generate transaction id: %w", err)
		}

		status := weightedChoice(g.rng, statuses, statusWeights)
		service := weightedChoice(g.rng, services, serviceWeights).Service
		if g.rng.Intn(100) < missingServicePct {
			service = ""
		}

		finished := at.Add(g.handleTime(status))
		records = append(records, types.TransactionRecord{
			TransactionID:   id.String(),
			AgentID:         agentID,
			AgentJoinedAt:   at.Format(types.TimestampLayout),
			FinishedAt:      finished.Format(types.TimestampLayout),
			FinalStatus:     status,
			SelectedService: service,
		})

		at = finished.Add(g.wrapUp())
	}

	return records, nil
}

// handleTime is the time from joining to finishing a transaction
func (g *Generator) handleTime(status types.FinalStatus) time.Duration {
	if status != types.StatusCompleted {
		// ringing or dropped early
		return time.Duration(10+g.rng.Intn(50)) * time.Second
	}
	return time.Duration(60+g.rng.Intn(840)) * time.Second
}

// wrapUp is the idle gap before the next transaction. One in ten gaps is a
// break.
func (g *Generator) wrapUp() time.Duration {
	if g.rng.Intn(10) == 0 {
		return time.Duration(600+g.rng.Intn(1200)) * time.Second
	}
	return time.Duration(30+g.rng.Intn(270)) * time.Second
}

// weightedChoice selects an item based on weights
func weightedChoice[T any](rng *rand.Rand, items []T, weights []int) T {
	totalWeight := 0
	for _, w := range weights {
		totalWeight += w
	}

	choice := rng.Intn(totalWeight)
	cumulative := 0
	for i, w := range weights {
		cumulative += w
		if choice < cumulative {
			return items[i]
		}
	}
	return items[0]
}
