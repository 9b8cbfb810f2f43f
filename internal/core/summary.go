package core

import (
	"slices"
	"strings"
)

// DaySummary is the meals of one date with their calorie total.
type DaySummary struct {
	Date          string
	Entries       []MealEntry
	TotalCalories float64
}

// GroupByDay buckets entries by date. Each bucket keeps insertion order;
// the map itself carries no ordering.
func GroupByDay(entries []MealEntry) map[string][]MealEntry {
	days := make(map[string][]MealEntry)
	for _, e := range entries {
		days[e.Date] = append(days[e.Date], e)
	}
	return days
}

// TotalCalories sums the calories of entries.
func TotalCalories(entries []MealEntry) float64 {
	var total float64
	for _, e := range entries {
		total += e.Calories
	}
	return total
}

// DaysDescending lists distinct dates, most recent first. ISO dates sort
// chronologically as text.
func DaysDescending(days map[string][]MealEntry) []string {
	dates := make([]string, 0, len(days))
	for d := range days {
		dates = append(dates, d)
	}
	slices.SortFunc(dates, func(a, b string) int { return strings.Compare(b, a) })
	return dates
}

// Summarize builds one DaySummary per date, most recent first.
func Summarize(entries []MealEntry) []DaySummary {
	days := GroupByDay(entries)
	out := make([]DaySummary, 0, len(days))
	for _, d := range DaysDescending(days) {
		out = append(out, DaySummary{
			Date:          d,
			Entries:       days[d],
			TotalCalories: TotalCalories(days[d]),
		})
	}
	return out
}

// SortedByDate returns a copy of samples in ascending date order. Samples
// sharing a date keep their relative order.
func SortedByDate(samples []WeightSample) []WeightSample {
	out := slices.Clone(samples)
	slices.SortStableFunc(out, func(a, b WeightSample) int { return strings.Compare(a.Date, b.Date) })
	return out
}

// Latest returns the last n samples of an already ordered series.
func Latest(samples []WeightSample, n int) []WeightSample {
	if n <= 0 {
		return nil
	}
	if len(samples) <= n {
		return slices.Clone(samples)
	}
	return slices.Clone(samples[len(samples)-n:])
}
