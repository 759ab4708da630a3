package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartoza/airscope/internal/config"
	"github.com/kartoza/airscope/internal/models"
	"github.com/kartoza/airscope/internal/regressor"
	"github.com/kartoza/airscope/internal/store"
)

var fixedNow = time.Date(2024, 10, 6, 15, 0, 0, 0, time.UTC)

// meanModel predicts the so2_mean feature plus offset
func meanModel(offset float64) *regressor.Model {
	m := &regressor.Model{
		Name:         "RandomForest",
		Mean:         make([]float64, regressor.NumFeatures),
		Scale:        make([]float64, regressor.NumFeatures),
		Coefficients: make([]float64, regressor.NumFeatures),
		Intercept:    offset,
	}
	for i := range m.Scale {
		m.Scale[i] = 1
	}
	m.Coefficients[0] = 1
	return m
}

func bothModels() regressor.Set {
	return regressor.Set{
		models.DataTypeGround:    meanModel(0),
		models.DataTypeSatellite: meanModel(10),
	}
}

func newTestHandler(t *testing.T, set regressor.Set) (*Handler, *store.Store, *mux.Router) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	handler := NewHandler(set, st, config.Config{Version: "test"})
	handler.now = func() time.Time { return fixedNow }

	r := mux.NewRouter()
	handler.RegisterRoutes(r)
	return handler, st, r
}

func serve(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	_, _, r := newTestHandler(t, nil)

	w := serve(r, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]string
	json.NewDecoder(w.Body).Decode(&response)

	if response["status"] != "ok" {
		t.Errorf("Expected status 'ok', got '%s'", response["status"])
	}
}

func TestInfoEndpoint(t *testing.T) {
	_, _, r := newTestHandler(t, regressor.Set{models.DataTypeGround: meanModel(0)})

	w := serve(r, "GET", "/info", "")
	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "test", response["version"])
	assert.Equal(t, []interface{}{"ground"}, response["models"])
	assert.Equal(t, true, response["store_loaded"])
}

func TestPredictCustom(t *testing.T) {
	_, st, r := newTestHandler(t, bothModels())

	body := `{"so2_mean": 8.9, "so2_std": 2.1, "so2_min": 5.2, "so2_max": 12.8, "so2_median": 8.5,
		"year": 2024, "month": 10, "day": 6, "day_of_week": 0, "hour": 15}`
	w := serve(r, "POST", "/predict-custom/", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var result models.PredictionResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	require.NotNil(t, result.Ground)
	require.NotNil(t, result.Satellite)
	assert.InDelta(t, 8.9, result.Ground.Prediction, 1e-9)
	assert.Equal(t, 0.85, result.Ground.Confidence)
	assert.Equal(t, "RandomForest", result.Ground.ModelName)
	assert.Equal(t, "ground", result.Ground.DataType)
	assert.InDelta(t, 18.9, result.Satellite.Prediction, 1e-9)
	assert.Equal(t, 0.80, result.Satellite.Confidence)

	history, err := st.ListPredictions(10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestPredictCustomOnlyLoadedModels(t *testing.T) {
	_, _, r := newTestHandler(t, regressor.Set{models.DataTypeSatellite: meanModel(1)})

	w := serve(r, "POST", "/predict-custom/", `{"so2_mean": "4"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.NotContains(t, raw, "ground")
	assert.Contains(t, raw, "satellite")
}

func TestPredictCustomNoModels(t *testing.T) {
	_, _, r := newTestHandler(t, nil)

	w := serve(r, "POST", "/predict-custom/", `{}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{}`, w.Body.String())
}

func TestPredictCustomBadInput(t *testing.T) {
	_, _, r := newTestHandler(t, bothModels())

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"so2_mean": `},
		{"not an object", `[1, 2]`},
		{"text mean", `{"so2_mean": "high"}`},
		{"fractional string year", `{"year": "2024.5"}`},
		{"boolean hour", `{"hour": true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, "POST", "/predict-custom/", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var response map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.NotEmpty(t, response["error"])
		})
	}
}

func TestDecodePredictionRequestDefaults(t *testing.T) {
	req, err := decodePredictionRequest(strings.NewReader(`{"so2_max": 3, "month": 2.9}`), fixedNow)
	require.NoError(t, err)

	assert.Equal(t, 0.0, req.SO2Mean)
	assert.Equal(t, 3.0, req.SO2Max)
	assert.Equal(t, 2024, req.Year)
	assert.Equal(t, 2, req.Month)
	assert.Equal(t, 6, req.Day)
	// Sunday, counted from Monday = 0
	assert.Equal(t, 6, req.DayOfWeek)
	assert.Equal(t, 15, req.Hour)

	req, err = decodePredictionRequest(strings.NewReader(""), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 2024, req.Year)
}

func TestPredictions(t *testing.T) {
	_, st, r := newTestHandler(t, bothModels())

	// seven ground readings this week, three satellite readings
	for i := 0; i < MinRecentPoints; i++ {
		_, err := st.AddDataPoint(models.DataPoint{
			DataType:  models.DataTypeGround,
			SO2Value:  float64(i + 1),
			Timestamp: fixedNow.Add(-time.Duration(i) * 12 * time.Hour),
		})
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		_, err := st.AddDataPoint(models.DataPoint{
			DataType:  models.DataTypeSatellite,
			SO2Value:  20,
			Timestamp: fixedNow.Add(-time.Hour),
		})
		require.NoError(t, err)
	}
	// too old to count
	_, err := st.AddDataPoint(models.DataPoint{
		DataType:  models.DataTypeGround,
		SO2Value:  1000,
		Timestamp: fixedNow.Add(-8 * 24 * time.Hour),
	})
	require.NoError(t, err)

	w := serve(r, "GET", "/predictions/", "")
	require.Equal(t, http.StatusOK, w.Code)

	var result models.PredictionResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	require.NotNil(t, result.Ground)
	// mean of 1..7
	assert.InDelta(t, 4.0, result.Ground.Prediction, 1e-9)
	assert.Equal(t, 0.85, result.Ground.Confidence)
	assert.Nil(t, result.Satellite)
}

func TestDataPoints(t *testing.T) {
	_, st, r := newTestHandler(t, nil)
	for i, dt := range []string{models.DataTypeGround, models.DataTypeSatellite, models.DataTypeGround} {
		_, err := st.AddDataPoint(models.DataPoint{
			DataType:  dt,
			SO2Value:  float64(i),
			Timestamp: fixedNow.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	w := serve(r, "GET", "/data-points/", "")
	require.Equal(t, http.StatusOK, w.Code)
	var points []models.DataPoint
	require.NoError(t, json.NewDecoder(w.Body).Decode(&points))
	require.Len(t, points, 3)
	assert.Equal(t, 2.0, points[0].SO2Value)

	w = serve(r, "GET", "/data-points/?type=ground&limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	points = nil
	require.NoError(t, json.NewDecoder(w.Body).Decode(&points))
	require.Len(t, points, 1)
	assert.Equal(t, "ground", points[0].DataType)

	w = serve(r, "GET", "/data-points/?limit=lots", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestModelInfo(t *testing.T) {
	_, _, r := newTestHandler(t, regressor.Set{models.DataTypeGround: meanModel(0)})

	w := serve(r, "GET", "/model-info/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"ground": {"available": true, "model_type": "RandomForest", "features": 16, "last_trained": "2024-01-01"},
		"satellite": {"available": false}
	}`, w.Body.String())
}

func TestPredictionHistory(t *testing.T) {
	_, _, r := newTestHandler(t, bothModels())
	serve(r, "POST", "/predict-custom/", `{"so2_mean": 1}`)

	w := serve(r, "GET", "/prediction-history/?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.StoredPrediction
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	assert.Len(t, list, 1)
}

func TestDataEndpointsWithoutStore(t *testing.T) {
	handler := NewHandler(nil, nil, config.Config{})
	r := mux.NewRouter()
	handler.RegisterRoutes(r)

	for _, path := range []string{"/predictions/", "/data-points/", "/prediction-history/"} {
		w := serve(r, "GET", path, "")
		assert.Equal(t, http.StatusInternalServerError, w.Code, path)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, _, r := newTestHandler(t, nil)

	w := serve(r, "GET", "/predict-custom/", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
