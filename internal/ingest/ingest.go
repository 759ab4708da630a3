// Package ingest reads SO2 readings from CSV into the store.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kartoza/airscope/internal/models"
)

// Header is the expected first row
var Header = []string{"data_type", "so2_value", "latitude", "longitude", "timestamp"}

// Adder stores a batch of data points atomically
type Adder interface {
	AddDataPoints(points []models.DataPoint) ([]models.DataPoint, error)
}

// LineError locates a bad row
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Read parses every row of r. The first row must be Header. Latitude and
// longitude may be empty.
func Read(r io.Reader) ([]models.DataPoint, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &LineError{Line: 1, Err: errors.New("missing header")}
	}
	if err != nil {
		return nil, &LineError{Line: 1, Err: err}
	}
	for i, name := range Header {
		if strings.TrimSpace(strings.ToLower(head[i])) != name {
			return nil, &LineError{Line: 1, Err: fmt.Errorf("column %d is %q, expected %q", i+1, head[i], name)}
		}
	}

	var points []models.DataPoint
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return points, nil
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.StartLine
			}
			return nil, &LineError{Line: line, Err: err}
		}
		line, _ := cr.FieldPos(0)

		p, err := parseRecord(record)
		if err != nil {
			return nil, &LineError{Line: line, Err: err}
		}
		points = append(points, p)
	}
}

func parseRecord(record []string) (models.DataPoint, error) {
	var p models.DataPoint

	switch dt := strings.TrimSpace(record[0]); dt {
	case models.DataTypeGround, models.DataTypeSatellite:
		p.DataType = dt
	default:
		return p, fmt.Errorf("unknown data_type %q", dt)
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
	if err != nil {
		return p, fmt.Errorf("invalid so2_value %q", record[1])
	}
	p.SO2Value = v

	if p.Latitude, err = optionalFloat(record[2]); err != nil {
		return p, fmt.Errorf("invalid latitude %q", record[2])
	}
	if p.Longitude, err = optionalFloat(record[3]); err != nil {
		return p, fmt.Errorf("invalid longitude %q", record[3])
	}

	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(record[4]))
	if err != nil {
		return p, fmt.Errorf("invalid timestamp %q", record[4])
	}
	p.Timestamp = ts
	return p, nil
}

func optionalFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Load reads r and adds every row to dst in one batch. Nothing is added when
// any row is invalid or fails to store. It returns the number of rows added.
func Load(dst Adder, r io.Reader) (int, error) {
	points, err := Read(r)
	if err != nil {
		return 0, err
	}
	added, err := dst.AddDataPoints(points)
	if err != nil {
		return 0, fmt.Errorf("failed to store data points: %w", err)
	}
	return len(added), nil
}
