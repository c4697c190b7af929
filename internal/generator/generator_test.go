package generator

import (
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/acw/internal/report"
	"github.com/dennisdiepolder/monti/acw/internal/types"
)

var testStart = time.Date(2024, 3, 4, 15, 30, 0, 0, time.UTC)

func TestGenerateDeterministic(t *testing.T) {
	opts := Options{Agents: 5, Days: 2, Start: testStart}

	a, err := NewGenerator(42).Generate(opts)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	b, err := NewGenerator(42).Generate(opts)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("expected identical output for the same seed")
	}

	c, err := NewGenerator(43).Generate(opts)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if reflect.DeepEqual(a, c) {
		t.Error("expected different output for a different seed")
	}
}

func TestGenerateShape(t *testing.T) {
	opts := Options{Agents: 20, Days: 3, Start: testStart}

	records, err := NewGenerator(7).Generate(opts)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	perAgentDay := make(map[[2]string]int)
	ids := make(map[string]bool)
	days := map[string]bool{"2024-03-04": true, "2024-03-05": true, "2024-03-06": true}

	for _, r := range records {
		if !days[r.DayKey()] {
			t.Errorf("unexpected day %q", r.DayKey())
		}
		joined, ok := types.ParseTimestamp(r.AgentJoinedAt)
		if !ok {
			t.Fatalf("unparseable agent_joined_at %q", r.AgentJoinedAt)
		}
		finished, ok := types.ParseTimestamp(r.FinishedAt)
		if !ok {
			t.Fatalf("unparseable finished_at %q", r.FinishedAt)
		}
		if !finished.After(joined) {
			t.Errorf("finished_at %s not after agent_joined_at %s", r.FinishedAt, r.AgentJoinedAt)
		}
		if ids[r.TransactionID] {
			t.Errorf("duplicate transaction id %s", r.TransactionID)
		}
		ids[r.TransactionID] = true
		perAgentDay[[2]string{r.DayKey(), r.AgentID}]++
	}

	if len(perAgentDay) != opts.Agents*opts.Days {
		t.Errorf("expected %d agent days, got %d", opts.Agents*opts.Days, len(perAgentDay))
	}
	for key, n := range perAgentDay {
		if n < minPerDay || n > maxPerDay {
			t.Errorf("%v: expected %d-%d transactions, got %d", key, minPerDay, maxPerDay, n)
		}
	}
}

func TestGenerateInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"no agents", Options{Agents: 0, Days: 1}},
		{"no days", Options{Agents: 1, Days: 0}},
		{"negative agents", Options{Agents: -3, Days: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewGenerator(1).Generate(tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestGeneratedLogProducesPositiveAverages(t *testing.T) {
	records, err := NewGenerator(99).Generate(Options{Agents: 50, Days: 2, Start: testStart})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	known := map[string]bool{types.UnknownService: true}
	for _, services := range departmentServices {
		for _, s := range services {
			known[s.Service] = true
		}
	}

	rep := report.FromRecords(records)
	if len(rep.Averages) == 0 {
		t.Fatal("expected at least one service average")
	}
	for service, avg := range rep.Averages {
		if !known[service] {
			t.Errorf("unexpected service %q", service)
		}
		// gaps are wrap-up times of 30s up to a 30 minute break
		if avg < 30 || avg > 1800 {
			t.Errorf("%s: average %d outside wrap-up range", service, avg)
		}
	}
}

func TestWeightedChoice(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	if got := weightedChoice(rng, []string{"only"}, []int{5}); got != "only" {
		t.Errorf("expected only, got %s", got)
	}

	counts := map[string]int{}
	for i := 0; i < 1000; i++ {
		counts[weightedChoice(rng, []string{"never", "always"}, []int{0, 1})]++
	}
	if counts["never"] != 0 || counts["always"] != 1000 {
		t.Errorf("zero weight was chosen: %v", counts)
	}
}
