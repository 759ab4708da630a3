package models

import "time"

// Data types produced by the prediction service
const (
	DataTypeGround    = "ground"
	DataTypeSatellite = "satellite"
)

// PredictionRequest is the body posted to the predict-custom endpoint
type PredictionRequest struct {
	SO2Mean   float64 `json:"so2_mean"`
	SO2Std    float64 `json:"so2_std"`
	SO2Min    float64 `json:"so2_min"`
	SO2Max    float64 `json:"so2_max"`
	SO2Median float64 `json:"so2_median"`
	Year      int     `json:"year"`
	Month     int     `json:"month"`
	Day       int     `json:"day"`
	DayOfWeek int     `json:"day_of_week"`
	Hour      int     `json:"hour"`
}

// PredictionResult holds the named estimates returned by the service.
// Either member may be absent.
type PredictionResult struct {
	Ground    *SourcePrediction `json:"ground,omitempty"`
	Satellite *SourcePrediction `json:"satellite,omitempty"`
}

// SourcePrediction is one estimate with its confidence and model label
type SourcePrediction struct {
	Prediction float64 `json:"prediction"`
	Confidence float64 `json:"confidence"`
	ModelName  string  `json:"model_name"`
	DataType   string  `json:"data_type"`
}

// Empty reports whether neither estimate is present
func (r *PredictionResult) Empty() bool {
	return r == nil || (r.Ground == nil && r.Satellite == nil)
}

// DataPoint is a single SO2 reading from a ground sensor or satellite pass
type DataPoint struct {
	ID        int64     `json:"id"`
	DataType  string    `json:"data_type"`
	SO2Value  float64   `json:"so2_value"`
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"created_at"`
}

// StoredPrediction is a prediction recorded by the service
type StoredPrediction struct {
	ID              int64     `json:"id"`
	DataType        string    `json:"data_type"`
	PredictionValue float64   `json:"prediction_value"`
	Confidence      float64   `json:"confidence"`
	ModelName       string    `json:"model_name"`
	CreatedAt       time.Time `json:"created_at"`
}

// ModelInfo describes whether a model is loaded for a data type
type ModelInfo struct {
	Available   bool   `json:"available"`
	ModelType   string `json:"model_type,omitempty"`
	Features    int    `json:"features,omitempty"`
	LastTrained string `json:"last_trained,omitempty"`
}
