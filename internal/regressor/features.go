package regressor

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kartoza/airscope/internal/models"
)

// NumFeatures is the length of the model input vector
const NumFeatures = 16

// Features builds the model input: the ten request fields followed by the
// cyclic encodings of month, day and hour
func Features(req models.PredictionRequest) []float64 {
	month, day, hour := float64(req.Month), float64(req.Day), float64(req.Hour)
	return []float64{
		req.SO2Mean,
		req.SO2Std,
		req.SO2Min,
		req.SO2Max,
		req.SO2Median,
		float64(req.Year),
		month,
		day,
		float64(req.DayOfWeek),
		hour,
		math.Sin(2 * math.Pi * month / 12),
		math.Cos(2 * math.Pi * month / 12),
		math.Sin(2 * math.Pi * day / 31),
		math.Cos(2 * math.Pi * day / 31),
		math.Sin(2 * math.Pi * hour / 24),
		math.Cos(2 * math.Pi * hour / 24),
	}
}

// Weekday numbers days from Monday = 0, the convention the models were
// trained with
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// WithTime fills the temporal fields of req from t
func WithTime(req models.PredictionRequest, t time.Time) models.PredictionRequest {
	req.Year = t.Year()
	req.Month = int(t.Month())
	req.Day = t.Day()
	req.DayOfWeek = Weekday(t)
	req.Hour = t.Hour()
	return req
}

// Summarize computes the SO2 statistics of values. Std is the population
// standard deviation. It panics on an empty slice.
func Summarize(values []float64) models.PredictionRequest {
	mean, std := stat.PopMeanStdDev(values, nil)
	return models.PredictionRequest{
		SO2Mean:   mean,
		SO2Std:    std,
		SO2Min:    floats.Min(values),
		SO2Max:    floats.Max(values),
		SO2Median: median(values),
	}
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
