// Package regressor loads the exported SO2 models and evaluates them.
//
// A model is a standard scaler followed by a linear regressor. Both are
// exported as JSON next to each other:
//
//	{"model_name": "RandomForest", "mean": [...], "scale": [...],
//	 "coefficients": [...], "intercept": 1.5}
package regressor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"

	"github.com/kartoza/airscope/internal/logging"
	"github.com/kartoza/airscope/internal/models"
)

// ErrModelUnavailable is returned when no model is loaded for a data type
var ErrModelUnavailable = errors.New("model not available")

// DefaultModelName is reported when an exported model carries no name
const DefaultModelName = "RandomForest"

// Model is a fitted scaler and linear regressor over the feature vector
type Model struct {
	Name         string    `json:"model_name"`
	Mean         []float64 `json:"mean"`
	Scale        []float64 `json:"scale"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

// Validate checks that every vector matches the feature count
func (m *Model) Validate() error {
	for name, v := range map[string][]float64{
		"mean":         m.Mean,
		"scale":        m.Scale,
		"coefficients": m.Coefficients,
	} {
		if len(v) != NumFeatures {
			return fmt.Errorf("%s has %d values, expected %d", name, len(v), NumFeatures)
		}
	}
	return nil
}

// Predict scales features and applies the regressor
func (m *Model) Predict(features []float64) (float64, error) {
	if len(features) != NumFeatures {
		return 0, fmt.Errorf("got %d features, expected %d", len(features), NumFeatures)
	}

	scaled := make([]float64, NumFeatures)
	floats.SubTo(scaled, features, m.Mean)
	for i, s := range m.Scale {
		// zero variance columns are left unscaled
		if s != 0 {
			scaled[i] /= s
		}
	}
	return floats.Dot(scaled, m.Coefficients) + m.Intercept, nil
}

// Load reads a model file. A missing file yields ErrModelUnavailable.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrModelUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse model %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model %s: %w", path, err)
	}
	if m.Name == "" {
		m.Name = DefaultModelName
	}
	return &m, nil
}

// Set holds the loaded model for each data type
type Set map[string]*Model

// Get returns the model for dataType or ErrModelUnavailable
func (s Set) Get(dataType string) (*Model, error) {
	if m, ok := s[dataType]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("%s: %w", dataType, ErrModelUnavailable)
}

// Info describes the availability of each known data type
func (s Set) Info() map[string]models.ModelInfo {
	info := make(map[string]models.ModelInfo, 2)
	for _, dt := range []string{models.DataTypeGround, models.DataTypeSatellite} {
		m, ok := s[dt]
		if !ok {
			info[dt] = models.ModelInfo{Available: false}
			continue
		}
		info[dt] = models.ModelInfo{
			Available:   true,
			ModelType:   m.Name,
			Features:    NumFeatures,
			LastTrained: "2024-01-01",
		}
	}
	return info
}

// LoadAll loads <dir>/<type>_model.json for each data type. Missing files are
// skipped; malformed ones are errors.
func LoadAll(dir string) (Set, error) {
	logger := logging.Component("regressor")
	set := make(Set)
	for _, dt := range []string{models.DataTypeGround, models.DataTypeSatellite} {
		path := filepath.Join(dir, dt+"_model.json")
		m, err := Load(path)
		if errors.Is(err, ErrModelUnavailable) {
			logger.Warn().Str("path", path).Msg("Model not found")
			continue
		}
		if err != nil {
			return nil, err
		}
		set[dt] = m
		logger.Info().Str("data_type", dt).Str("model", m.Name).Msg("Loaded model")
	}
	return set, nil
}
