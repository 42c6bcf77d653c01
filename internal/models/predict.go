package models

// PredictResponse is the raw decoded body of POST /predict. Like history
// records, the prediction payload has drifted across backend versions:
// the meal name may arrive as meal or food, calories at the top level or
// nested, the image as image_url or image, and the classifier output as
// predictions or hf_predictions. flow.NormalizeAnalysis resolves the
// fallbacks; this type just captures everything observed in the wild.
type PredictResponse struct {
	Meal           string          `json:"meal,omitempty"`
	Food           string          `json:"food,omitempty"`
	Ingredients    []string        `json:"ingredients,omitempty"`
	Calories       *float64        `json:"calories,omitempty"`
	NutritionFacts *NutritionFacts `json:"nutrition_facts,omitempty"`
	ImageURL       string          `json:"image_url,omitempty"`
	Image          string          `json:"image,omitempty"`
	Predictions    []Prediction    `json:"predictions,omitempty"`
	HFPredictions  []Prediction    `json:"hf_predictions,omitempty"`
	ConsumedAt     string          `json:"consumed_at,omitempty"`
	Timestamp      string          `json:"timestamp,omitempty"`
	Metadata       *MealMetadata   `json:"metadata,omitempty"`
}
