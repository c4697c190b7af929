package aggregator

import (
	"math"
	"slices"

	"github.com/dennisdiepolder/monti/acw/internal/types"
)

// AverageByService returns the rounded mean gap per service.
// Slots without a duration count as 0.
func AverageByService(slots types.DailySlots) map[string]int64 {
	averages := make(map[string]int64)
	for _, avg := range Summarize(slots) {
		averages[avg.Service] = avg.AverageSeconds
	}
	return averages
}

// Summarize returns one ServiceAverage per service, sorted by service name
func Summarize(slots types.DailySlots) []types.ServiceAverage {
	durations := groupByService(slots)

	result := make([]types.ServiceAverage, 0, len(durations))
	for service, list := range durations {
		result = append(result, types.ServiceAverage{
			Service:        service,
			AverageSeconds: Round(mean(list)),
			Slots:          len(list),
		})
	}

	slices.SortFunc(result, func(a, b types.ServiceAverage) int {
		switch {
		case a.Service < b.Service:
			return -1
		case a.Service > b.Service:
			return 1
		}
		return 0
	})
	return result
}

// Round rounds half up, so -2.5 becomes -2 and 2.5 becomes 3
func Round(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}

func groupByService(slots types.DailySlots) map[string][]float64 {
	byService := make(map[string][]float64)
	for _, day := range slots.Days() {
		for _, agentID := range slots.Agents(day) {
			slot := slots[day][agentID]
			service := slot.SelectedService
			if service == "" {
				service = types.UnknownService
			}
			byService[service] = append(byService[service], slot.Duration())
		}
	}
	return byService
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
