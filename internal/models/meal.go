// Package models defines the core domain models for the FoodLog client.
// These models represent the data structures shared between the session
// store, the API gateway, the meal state coordinator, and the CLI flows.
//
// Two families live here: durable/session types (SessionUser) and the
// meal pipeline types (Capture, Analysis, MealRecord, MealHistoryEntry).
// Backend payloads are intentionally loose: the backend has shipped the
// same data under several field names over time, so raw records keep every
// candidate field and normalization picks the winner.
package models

import "time"

// Capture is an in-progress, not-yet-saved meal photo plus metadata.
// It is transient: held in the coordinator's memory for the duration of
// one capture→processing→result flow and cleared when the flow completes
// or errors. FilePath points at the photo on local disk; PreviewPath is
// an optional already-resolved preview the result view prefers over the
// backend image.
type Capture struct {
	FilePath    string     `json:"file_path"`
	PreviewPath string     `json:"preview_path,omitempty"`
	CapturedAt  *time.Time `json:"captured_at,omitempty"`
}

// Prediction is a single classifier label/score pair from the backend.
// Scores arrive either as 0..1 probabilities or as percentages >1; use
// DisplayScore for a consistent percentage rendering.
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// DisplayScore returns the score as a percentage in the 0..100 range.
// The backend is inconsistent: some models return probabilities, others
// already-multiplied percentages.
func (p Prediction) DisplayScore() float64 {
	if p.Score > 1 {
		return p.Score
	}
	return p.Score * 100
}

// Analysis is the normalized prediction result for a capture. It is
// derived from the raw predict response (see flow.NormalizeAnalysis) and
// lives only until the result step is dismissed.
type Analysis struct {
	Meal        string       `json:"meal"`
	Ingredients []string     `json:"ingredients"`
	Calories    *float64     `json:"calories,omitempty"`
	Image       string       `json:"image,omitempty"`
	Predictions []Prediction `json:"predictions"`
	PreviewPath string       `json:"preview_path,omitempty"`
	CapturedAt  *time.Time   `json:"captured_at,omitempty"`
}

// NutritionFacts carries the nested calorie field some backend records
// use instead of a top-level calories value.
type NutritionFacts struct {
	Calories *float64 `json:"calories,omitempty"`
}

// MealMetadata holds the metadata envelope observed on some history
// records; meal_date there takes precedence over most other date fields.
type MealMetadata struct {
	MealDate string `json:"meal_date,omitempty"`
}

// MealRecord is one raw history item exactly as the backend returns it.
// Each record may express its date as consumed_at, metadata.meal_date,
// timestamp, created_at, or date, and its calories as calories or
// nutrition_facts.calories. Keep this type loose; dashboard.Normalize
// resolves the ambiguity.
type MealRecord struct {
	ID             string          `json:"id"`
	Name           string          `json:"name,omitempty"`
	Food           string          `json:"food,omitempty"`
	ConsumedAt     string          `json:"consumed_at,omitempty"`
	Timestamp      string          `json:"timestamp,omitempty"`
	CreatedAt      string          `json:"created_at,omitempty"`
	Date           string          `json:"date,omitempty"`
	Metadata       *MealMetadata   `json:"metadata,omitempty"`
	Calories       *float64        `json:"calories,omitempty"`
	NutritionFacts *NutritionFacts `json:"nutrition_facts,omitempty"`
}

// MealHistoryEntry is a normalized history record: one meal with a parsed
// date and a resolved calorie count. Records whose date cannot be parsed
// never become entries; they are dropped (and logged) during
// normalization, so every entry here is renderable.
type MealHistoryEntry struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Date     time.Time `json:"date"`
	Calories float64   `json:"calories"`
}
