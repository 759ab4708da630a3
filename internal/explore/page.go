package explore

import (
	"context"
	"fmt"
	"math"

	"github.com/kartoza/airscope/internal/models"
)

// GenericError is shown when a failure carries no message of its own
const GenericError = "An error occurred"

// Predictor performs the prediction call
type Predictor interface {
	Predict(ctx context.Context, req models.PredictionRequest) (*models.PredictionResult, error)
}

// Page is the state of one Explore page render
type Page struct {
	Form        Form
	FieldErrors map[string]string
	Prediction  *models.PredictionResult
	Loading     bool
	Error       string
}

// NewPage returns the initial page state for form
func NewPage(form Form) *Page {
	return &Page{Form: form}
}

// Submit runs the submit-and-render flow: clear the error, set loading, make
// one prediction call, keep the result or the error message, and always
// clear loading. An invalid form never reaches the predictor.
func (p *Page) Submit(ctx context.Context, predictor Predictor) {
	p.Error = ""
	p.FieldErrors = p.Form.Validate()
	if p.FieldErrors != nil {
		return
	}

	p.Loading = true
	defer func() { p.Loading = false }()

	req, err := p.Form.Request()
	if err != nil {
		p.Error = errorMessage(err)
		return
	}

	result, err := predictor.Predict(ctx, req)
	if err != nil {
		p.Error = errorMessage(err)
		return
	}
	p.Prediction = result
}

// HasResults reports whether a prediction is available for display
func (p *Page) HasResults() bool {
	return p.Prediction != nil
}

func errorMessage(err error) string {
	if err == nil || err.Error() == "" {
		return GenericError
	}
	return err.Error()
}

// AQIClass maps a predicted concentration to its display class
func AQIClass(value float64) string {
	switch {
	case value < 10:
		return "aqi-good"
	case value < 20:
		return "aqi-normal"
	case value < 30:
		return "aqi-bad"
	default:
		return "aqi-very-bad"
	}
}

// FormatConcentration renders a prediction with two decimals and its unit
func FormatConcentration(value float64) string {
	return fmt.Sprintf("%.2f μg/m³", value)
}

// ConfidencePercent renders a confidence fraction as a whole percentage
func ConfidencePercent(confidence float64) int {
	return int(math.Round(confidence * 100))
}

// ChartPoint is one bar or slice of the comparison charts
type ChartPoint struct {
	Name  string
	Value float64
	Color string
}

// ChartData returns the points to chart, ground first, skipping absent members
func ChartData(result *models.PredictionResult) []ChartPoint {
	if result == nil {
		return nil
	}
	var points []ChartPoint
	if result.Ground != nil {
		points = append(points, ChartPoint{Name: "Ground Sensor", Value: result.Ground.Prediction, Color: "#00d4ff"})
	}
	if result.Satellite != nil {
		points = append(points, ChartPoint{Name: "Satellite", Value: result.Satellite.Prediction, Color: "#00ff88"})
	}
	return points
}

// Panel is one rendered prediction card
type Panel struct {
	Title      string
	Value      string
	Class      string
	Confidence int
	ModelName  string
}

// Panels returns the result cards for the members present in result
func Panels(result *models.PredictionResult) []Panel {
	if result == nil {
		return nil
	}
	var panels []Panel
	add := func(title string, p *models.SourcePrediction) {
		if p == nil {
			return
		}
		panels = append(panels, Panel{
			Title:      title,
			Value:      FormatConcentration(p.Prediction),
			Class:      AQIClass(p.Prediction),
			Confidence: ConfidencePercent(p.Confidence),
			ModelName:  p.ModelName,
		})
	}
	add("Ground Sensor Prediction", result.Ground)
	add("Satellite Prediction", result.Satellite)
	return panels
}
