// Package dashboard derives chart and summary data from the raw meal
// history. Backend records are heterogeneous (dates and calories have
// shipped under several field names), so everything here starts from
// Normalize, which resolves the ambiguity and drops what cannot be
// rendered.
package dashboard

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dorsakh/Food-Log-FrontEnd/internal/models"
)

// ChartData is the calorie history projected into chart form: one
// category per calendar day with its calorie total, most recent 10 days.
type ChartData struct {
	Categories []string  `json:"categories"`
	Series     []float64 `json:"series"`
}

// Summary aggregates the full normalized history.
type Summary struct {
	TotalMeals      int                      `json:"total_meals"`
	TotalCalories   float64                  `json:"total_calories"`
	AverageCalories int                      `json:"average_calories"`
	LatestMeal      *models.MealHistoryEntry `json:"latest_meal,omitempty"`
}

// chartDays is how many trailing calendar days the chart shows.
const chartDays = 10

// Normalize converts raw backend records into renderable history entries,
// sorted ascending by date.
//
// The date is selected in priority order consumed_at > metadata.meal_date
// > timestamp > created_at > date. A record with none of these, or whose
// value cannot be parsed, is dropped from the result (and from every
// aggregate derived from it) with a warning logged. Calories prefer the
// top-level field over nutrition_facts.calories and default to zero.
func Normalize(records []models.MealRecord) []models.MealHistoryEntry {
	entries := make([]models.MealHistoryEntry, 0, len(records))

	for _, record := range records {
		raw := firstDateField(record)
		date, ok := ParseMealDate(raw)
		if !ok {
			log.Warn().
				Str("id", record.ID).
				Str("raw_date", raw).
				Msg("Unable to parse meal date, dropping record")
			continue
		}

		name := record.Name
		if name == "" {
			name = record.Food
		}
		if name == "" {
			name = "Meal"
		}

		var calories float64
		switch {
		case record.Calories != nil:
			calories = *record.Calories
		case record.NutritionFacts != nil && record.NutritionFacts.Calories != nil:
			calories = *record.NutritionFacts.Calories
		}

		entries = append(entries, models.MealHistoryEntry{
			ID:       record.ID,
			Name:     name,
			Date:     date,
			Calories: calories,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Date.Before(entries[j].Date)
	})

	return entries
}

// firstDateField returns the first populated date field in priority order.
func firstDateField(record models.MealRecord) string {
	if record.ConsumedAt != "" {
		return record.ConsumedAt
	}
	if record.Metadata != nil && record.Metadata.MealDate != "" {
		return record.Metadata.MealDate
	}
	if record.Timestamp != "" {
		return record.Timestamp
	}
	if record.CreatedAt != "" {
		return record.CreatedAt
	}
	return record.Date
}

// Chart groups normalized entries by calendar day (UTC) into calorie
// totals and projects the most recent days into chart categories/series.
func Chart(entries []models.MealHistoryEntry) ChartData {
	if len(entries) == 0 {
		return ChartData{Categories: []string{}, Series: []float64{}}
	}

	type dayTotal struct {
		date     time.Time
		calories float64
	}

	totals := map[string]*dayTotal{}
	for _, entry := range entries {
		key := entry.Date.UTC().Format("2006-01-02")
		if current, ok := totals[key]; ok {
			current.calories += entry.Calories
		} else {
			totals[key] = &dayTotal{date: entry.Date, calories: entry.Calories}
		}
	}

	ordered := make([]*dayTotal, 0, len(totals))
	for _, total := range totals {
		ordered = append(ordered, total)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].date.Before(ordered[j].date)
	})

	if len(ordered) > chartDays {
		ordered = ordered[len(ordered)-chartDays:]
	}

	chart := ChartData{
		Categories: make([]string, 0, len(ordered)),
		Series:     make([]float64, 0, len(ordered)),
	}
	for _, total := range ordered {
		chart.Categories = append(chart.Categories, FormatMealDate(total.date))
		chart.Series = append(chart.Series, total.calories)
	}
	return chart
}

// Summarize derives the aggregate summary from the full normalized,
// sorted history: meal count, calorie total, average rounded to the
// nearest integer, and the latest entry.
func Summarize(entries []models.MealHistoryEntry) Summary {
	if len(entries) == 0 {
		return Summary{}
	}

	var total float64
	for _, entry := range entries {
		total += entry.Calories
	}

	latest := entries[len(entries)-1]
	return Summary{
		TotalMeals:      len(entries),
		TotalCalories:   total,
		AverageCalories: int(math.Round(total / float64(len(entries)))),
		LatestMeal:      &latest,
	}
}
