package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/kartoza/airscope/internal/config"
	"github.com/kartoza/airscope/internal/models"
	"github.com/kartoza/airscope/internal/regressor"
	"github.com/kartoza/airscope/internal/store"
)

const (
	// MinRecentPoints is how many readings the last week must hold before a
	// data type gets a forecast
	MinRecentPoints = 7
	recentWindow    = 7 * 24 * time.Hour

	defaultDataPointLimit = 100
	defaultHistoryLimit   = 50
)

// confidence reported per data type
var confidence = map[string]float64{
	models.DataTypeGround:    0.85,
	models.DataTypeSatellite: 0.80,
}

// Handler provides the prediction service endpoints
type Handler struct {
	set   regressor.Set
	store *store.Store
	cfg   config.Config
	now   func() time.Time
}

// NewHandler creates a new API handler. st may be nil, in which case
// predictions are not recorded and the data endpoints fail.
func NewHandler(set regressor.Set, st *store.Store, cfg config.Config) *Handler {
	if set == nil {
		set = regressor.Set{}
	}
	return &Handler{
		set:   set,
		store: st,
		cfg:   cfg,
		now:   time.Now,
	}
}

// RegisterRoutes sets up all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	RegisterStatusRoutes(r, h.info)

	r.HandleFunc("/predict-custom/", h.handlePredictCustom).Methods("POST")
	r.HandleFunc("/predictions/", h.handlePredictions).Methods("GET")
	r.HandleFunc("/data-points/", h.handleDataPoints).Methods("GET")
	r.HandleFunc("/model-info/", h.handleModelInfo).Methods("GET")
	r.HandleFunc("/prediction-history/", h.handlePredictionHistory).Methods("GET")
}

// RegisterStatusRoutes adds /health and /info. info supplies the body of
// /info.
func RegisterStatusRoutes(r *mux.Router, info func() map[string]interface{}) {
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	r.HandleFunc("/info", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, info())
	}).Methods("GET")
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Error encoding response")
	}
}

// respondError sends a JSON error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) info() map[string]interface{} {
	loaded := make([]string, 0, len(h.set))
	for _, dt := range []string{models.DataTypeGround, models.DataTypeSatellite} {
		if _, err := h.set.Get(dt); err == nil {
			loaded = append(loaded, dt)
		}
	}
	return map[string]interface{}{
		"version":      h.cfg.Version,
		"models":       loaded,
		"store_loaded": h.store != nil,
	}
}

// handlePredictCustom predicts from the posted form values with every
// loaded model
func (h *Handler) handlePredictCustom(w http.ResponseWriter, r *http.Request) {
	req, err := decodePredictionRequest(r.Body, h.now())
	if err != nil {
		var fe *fieldError
		if errors.As(err, &fe) || errors.Is(err, errBadJSON) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	features := regressor.Features(req)
	result := &models.PredictionResult{}
	for _, dt := range []string{models.DataTypeGround, models.DataTypeSatellite} {
		m, err := h.set.Get(dt)
		if err != nil {
			continue
		}
		value, err := m.Predict(features)
		if err != nil {
			log.Error().Err(err).Str("data_type", dt).Msg("Prediction failed")
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		p := h.sourcePrediction(dt, m, value)
		setResult(result, p)
		h.record(p)
	}

	respondJSON(w, http.StatusOK, result)
}

// handlePredictions forecasts each data type from its readings of the last
// seven days. Types with too few readings are left out.
func (h *Handler) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusInternalServerError, "store not configured")
		return
	}

	since := h.now().Add(-recentWindow)
	result := &models.PredictionResult{}
	for _, dt := range []string{models.DataTypeGround, models.DataTypeSatellite} {
		m, err := h.set.Get(dt)
		if err != nil {
			continue
		}
		value, err := h.forecast(m, dt, since)
		if err != nil {
			log.Warn().Err(err).Str("data_type", dt).Msg("No forecast")
			continue
		}
		setResult(result, h.sourcePrediction(dt, m, value))
	}

	respondJSON(w, http.StatusOK, result)
}

var errTooFewPoints = errors.New("not enough recent data points")

func (h *Handler) forecast(m *regressor.Model, dataType string, since time.Time) (float64, error) {
	points, err := h.store.DataPointsSince(dataType, since)
	if err != nil {
		return 0, err
	}
	if len(points) < MinRecentPoints {
		return 0, fmt.Errorf("%w: have %d", errTooFewPoints, len(points))
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.SO2Value
	}
	req := regressor.WithTime(regressor.Summarize(values), points[len(points)-1].Timestamp)
	return m.Predict(regressor.Features(req))
}

// handleDataPoints returns recent readings, newest first
func (h *Handler) handleDataPoints(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusInternalServerError, "store not configured")
		return
	}

	dataType := r.URL.Query().Get("type")
	if dataType == "" {
		dataType = store.DataTypeBoth
	}
	limit, err := queryInt(r, "limit", defaultDataPointLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	points, err := h.store.RecentDataPoints(dataType, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, points)
}

// handleModelInfo reports which models are loaded
func (h *Handler) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.set.Info())
}

// handlePredictionHistory lists recorded predictions, newest first
func (h *Handler) handlePredictionHistory(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusInternalServerError, "store not configured")
		return
	}
	limit, err := queryInt(r, "limit", defaultHistoryLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.store.ListPredictions(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) sourcePrediction(dataType string, m *regressor.Model, value float64) models.SourcePrediction {
	return models.SourcePrediction{
		Prediction: value,
		Confidence: confidence[dataType],
		ModelName:  m.Name,
		DataType:   dataType,
	}
}

func (h *Handler) record(p models.SourcePrediction) {
	if h.store == nil {
		return
	}
	if _, err := h.store.RecordPrediction(p); err != nil {
		log.Warn().Err(err).Str("data_type", p.DataType).Msg("Failed to record prediction")
	}
}

func setResult(result *models.PredictionResult, p models.SourcePrediction) {
	switch p.DataType {
	case models.DataTypeGround:
		result.Ground = &p
	case models.DataTypeSatellite:
		result.Satellite = &p
	}
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return v, nil
}

var errBadJSON = errors.New("invalid JSON body")

// fieldError reports a request field that could not be converted
type fieldError struct {
	field string
	value interface{}
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("invalid value for %s: %v", e.field, e.value)
}

// decodePredictionRequest reads the ten form fields. Numbers may arrive as
// JSON numbers or numeric strings. Missing SO2 fields are zero and missing
// temporal fields come from now.
func decodePredictionRequest(body io.Reader, now time.Time) (models.PredictionRequest, error) {
	data := map[string]interface{}{}
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil && !errors.Is(err, io.EOF) {
		return models.PredictionRequest{}, fmt.Errorf("%w: %v", errBadJSON, err)
	}

	req := regressor.WithTime(models.PredictionRequest{}, now)
	floats := []struct {
		key string
		dst *float64
	}{
		{"so2_mean", &req.SO2Mean},
		{"so2_std", &req.SO2Std},
		{"so2_min", &req.SO2Min},
		{"so2_max", &req.SO2Max},
		{"so2_median", &req.SO2Median},
	}
	for _, f := range floats {
		if err := floatField(data, f.key, f.dst); err != nil {
			return req, err
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"year", &req.Year},
		{"month", &req.Month},
		{"day", &req.Day},
		{"day_of_week", &req.DayOfWeek},
		{"hour", &req.Hour},
	}
	for _, f := range ints {
		if err := intField(data, f.key, f.dst); err != nil {
			return req, err
		}
	}
	return req, nil
}

// floatField leaves dst untouched when key is absent or null
func floatField(data map[string]interface{}, key string, dst *float64) error {
	raw, ok := data[key]
	if !ok || raw == nil {
		return nil
	}

	var (
		v   float64
		err error
	)
	switch x := raw.(type) {
	case json.Number:
		v, err = x.Float64()
	case string:
		v, err = strconv.ParseFloat(strings.TrimSpace(x), 64)
	default:
		err = errors.New("not a number")
	}
	if err != nil {
		return &fieldError{field: key, value: raw}
	}
	*dst = v
	return nil
}

// intField accepts whole numbers; fractional JSON numbers are truncated
func intField(data map[string]interface{}, key string, dst *int) error {
	raw, ok := data[key]
	if !ok || raw == nil {
		return nil
	}

	switch x := raw.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			*dst = int(i)
			return nil
		}
		if f, err := x.Float64(); err == nil {
			*dst = int(f)
			return nil
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
			*dst = i
			return nil
		}
	}
	return &fieldError{field: key, value: raw}
}
