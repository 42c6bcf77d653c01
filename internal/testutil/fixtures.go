package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/dorsakh/Food-Log-FrontEnd/internal/models"
)

// TestMealRecord creates a history record with the date in consumed_at,
// the highest-priority field.
func TestMealRecord(name, consumedAt string, calories float64) models.MealRecord {
	return models.MealRecord{
		ID:         uuid.NewString(),
		Name:       name,
		ConsumedAt: consumedAt,
		Calories:   FloatPtr(calories),
	}
}

// TestMealRecordNested creates a history record carrying its date in
// metadata.meal_date and its calories in nutrition_facts.
func TestMealRecordNested(name, mealDate string, calories float64) models.MealRecord {
	return models.MealRecord{
		ID:             uuid.NewString(),
		Food:           name,
		Metadata:       &models.MealMetadata{MealDate: mealDate},
		NutritionFacts: &models.NutritionFacts{Calories: FloatPtr(calories)},
	}
}

// TestPrediction creates a predict response with every modern field set.
func TestPrediction(meal string, calories float64) *models.PredictResponse {
	return &models.PredictResponse{
		Meal:        meal,
		Ingredients: []string{"rice", "chicken"},
		Calories:    FloatPtr(calories),
		ImageURL:    "uploads/" + meal + ".jpeg",
		Predictions: []models.Prediction{
			{Label: meal, Score: 0.92},
			{Label: "stew", Score: 0.05},
		},
	}
}

// FloatPtr returns a pointer to the given float64.
func FloatPtr(f float64) *float64 {
	return &f
}

// TimePtr returns a pointer to the given time.
func TimePtr(t time.Time) *time.Time {
	return &t
}
