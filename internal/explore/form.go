// Package explore holds the Explore page logic: the prediction form, its
// submission, and the data derived from a prediction for display.
package explore

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kartoza/airscope/internal/models"
)

// Form field names, in display order
const (
	FieldSO2Mean   = "so2_mean"
	FieldSO2Std    = "so2_std"
	FieldSO2Min    = "so2_min"
	FieldSO2Max    = "so2_max"
	FieldSO2Median = "so2_median"
	FieldYear      = "year"
	FieldMonth     = "month"
	FieldDay       = "day"
	FieldDayOfWeek = "day_of_week"
	FieldHour      = "hour"
)

// Field describes one input of the prediction form
type Field struct {
	Name        string
	Label       string
	Placeholder string
	// Integer fields are parsed as int; the rest as float64
	Integer bool
	// Min and Max are only enforced when HasRange is set
	HasRange bool
	Min, Max int
}

// Fields lists the form inputs in display order
var Fields = []Field{
	{Name: FieldSO2Mean, Label: "SO2 Mean", Placeholder: "Enter SO2 mean value"},
	{Name: FieldSO2Std, Label: "SO2 Standard Deviation", Placeholder: "Enter SO2 std value"},
	{Name: FieldSO2Min, Label: "SO2 Minimum", Placeholder: "Enter SO2 min value"},
	{Name: FieldSO2Max, Label: "SO2 Maximum", Placeholder: "Enter SO2 max value"},
	{Name: FieldSO2Median, Label: "SO2 Median", Placeholder: "Enter SO2 median value"},
	{Name: FieldYear, Label: "Year", Integer: true, HasRange: true, Min: 2020, Max: 2030},
	{Name: FieldMonth, Label: "Month (1-12)", Integer: true, HasRange: true, Min: 1, Max: 12},
	{Name: FieldDay, Label: "Day (1-31)", Integer: true, HasRange: true, Min: 1, Max: 31},
	{Name: FieldDayOfWeek, Label: "Day of Week (0-6)", Integer: true, HasRange: true, Min: 0, Max: 6},
	{Name: FieldHour, Label: "Hour (0-23)", Integer: true, HasRange: true, Min: 0, Max: 23},
}

// Form holds the raw field values as entered
type Form map[string]string

// SampleForm returns the sample inputs the page starts with. The temporal
// fields come from now; day of week counts from Sunday = 0.
func SampleForm(now time.Time) Form {
	return Form{
		FieldSO2Mean:   "8.9",
		FieldSO2Std:    "2.1",
		FieldSO2Min:    "5.2",
		FieldSO2Max:    "12.8",
		FieldSO2Median: "8.5",
		FieldYear:      strconv.Itoa(now.Year()),
		FieldMonth:     strconv.Itoa(int(now.Month())),
		FieldDay:       strconv.Itoa(now.Day()),
		FieldDayOfWeek: strconv.Itoa(int(now.Weekday())),
		FieldHour:      strconv.Itoa(now.Hour()),
	}
}

// FormFromValues reads the form fields out of submitted values
func FormFromValues(values url.Values) Form {
	f := make(Form, len(Fields))
	for _, field := range Fields {
		f[field.Name] = values.Get(field.Name)
	}
	return f
}

// Validate applies the input constraints of the page and returns a message
// per failing field. A nil map means the form is valid.
func (f Form) Validate() map[string]string {
	var errs map[string]string
	fail := func(name, msg string) {
		if errs == nil {
			errs = make(map[string]string)
		}
		errs[name] = msg
	}

	for _, field := range Fields {
		raw := strings.TrimSpace(f[field.Name])
		if raw == "" {
			fail(field.Name, "Please fill out this field.")
			continue
		}
		if !field.Integer {
			v, err := parseFloat(raw)
			if err != nil {
				fail(field.Name, "Please enter a number.")
			} else if lo, hi, ok := stepMismatch(v); ok {
				fail(field.Name, fmt.Sprintf("Please enter a valid value. The two nearest valid values are %s and %s.", lo, hi))
			}
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			fail(field.Name, "Please enter a whole number.")
			continue
		}
		if field.HasRange && n < field.Min {
			fail(field.Name, fmt.Sprintf("Value must be greater than or equal to %d.", field.Min))
		} else if field.HasRange && n > field.Max {
			fail(field.Name, fmt.Sprintf("Value must be less than or equal to %d.", field.Max))
		}
	}
	return errs
}

// Request converts the form into the request body. SO2 statistics become
// float64 and temporal fields int.
func (f Form) Request() (models.PredictionRequest, error) {
	if errs := f.Validate(); errs != nil {
		for _, field := range Fields {
			if msg, ok := errs[field.Name]; ok {
				return models.PredictionRequest{}, fmt.Errorf("%s: %s", field.Name, msg)
			}
		}
	}

	var (
		req models.PredictionRequest
		err error
	)
	floats := []struct {
		name string
		dst  *float64
	}{
		{FieldSO2Mean, &req.SO2Mean},
		{FieldSO2Std, &req.SO2Std},
		{FieldSO2Min, &req.SO2Min},
		{FieldSO2Max, &req.SO2Max},
		{FieldSO2Median, &req.SO2Median},
	}
	for _, fl := range floats {
		if *fl.dst, err = parseFloat(f[fl.name]); err != nil {
			return models.PredictionRequest{}, fmt.Errorf("%s: %w", fl.name, err)
		}
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{FieldYear, &req.Year},
		{FieldMonth, &req.Month},
		{FieldDay, &req.Day},
		{FieldDayOfWeek, &req.DayOfWeek},
		{FieldHour, &req.Hour},
	}
	for _, in := range ints {
		if *in.dst, err = strconv.Atoi(strings.TrimSpace(f[in.name])); err != nil {
			return models.PredictionRequest{}, fmt.Errorf("%s: %w", in.name, err)
		}
	}
	return req, nil
}

// decimalStep is the granularity of the SO2 inputs (step="0.01")
const decimalStep = 100

// stepMismatch reports whether v is off the 0.01 grid and, if so, the two
// nearest values on it
func stepMismatch(v float64) (lo, hi string, ok bool) {
	scaled := v * decimalStep
	nearest := math.Round(scaled)
	if math.Abs(scaled-nearest) <= 1e-7*math.Max(1, math.Abs(scaled)) {
		return "", "", false
	}
	format := func(n float64) string {
		return strconv.FormatFloat(n/decimalStep, 'f', -1, 64)
	}
	return format(math.Floor(scaled)), format(math.Ceil(scaled)), true
}

// parseFloat accepts finite decimal numbers only
func parseFloat(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %q", raw)
	}
	return v, nil
}
