// Package store persists SO2 data points and recorded predictions in sqlite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kartoza/airscope/internal/logging"
	"github.com/kartoza/airscope/internal/models"
)

// DataTypeBoth selects data points of every type
const DataTypeBoth = "both"

// ErrClosed is returned after Close
var ErrClosed = errors.New("store is closed")

const schema = `
CREATE TABLE IF NOT EXISTS data_points (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	data_type TEXT NOT NULL CHECK (data_type IN ('ground', 'satellite')),
	so2_value REAL NOT NULL,
	latitude REAL,
	longitude REAL,
	timestamp INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_data_points_type_ts ON data_points (data_type, timestamp);
CREATE TABLE IF NOT EXISTS prediction_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	data_type TEXT NOT NULL,
	prediction_value REAL NOT NULL,
	confidence REAL NOT NULL,
	model_name TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
`

// Store is a sqlite backed repository. Times are stored as UTC unix
// nanoseconds.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// Open opens (creating if needed) the database at path
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows one writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger := logging.Component("store")
	logger.Info().Str("path", path).Msg("Opened database")
	return &Store{db: db, now: time.Now}, nil
}

// AddDataPoint inserts p and returns it with its ID and creation time set
func (s *Store) AddDataPoint(p models.DataPoint) (models.DataPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return p, ErrClosed
	}

	return s.insertDataPoint(s.db, p, s.now().UTC())
}

// AddDataPoints inserts every point in one transaction. On error nothing is
// added.
func (s *Store) AddDataPoints(points []models.DataPoint) ([]models.DataPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	added := make([]models.DataPoint, 0, len(points))
	for i, p := range points {
		stored, err := s.insertDataPoint(tx, p, now)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		added = append(added, stored)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit data points: %w", err)
	}
	return added, nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *Store) insertDataPoint(db execer, p models.DataPoint, now time.Time) (models.DataPoint, error) {
	p.CreatedAt = now
	p.Timestamp = p.Timestamp.UTC()
	res, err := db.Exec(
		"INSERT INTO data_points (data_type, so2_value, latitude, longitude, timestamp, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		p.DataType, p.SO2Value, nullFloat(p.Latitude), nullFloat(p.Longitude),
		p.Timestamp.UnixNano(), p.CreatedAt.UnixNano(),
	)
	if err != nil {
		return p, fmt.Errorf("failed to insert data point: %w", err)
	}
	p.ID, err = res.LastInsertId()
	return p, err
}

// RecentDataPoints returns up to limit points of dataType, newest first.
// DataTypeBoth matches every type.
func (s *Store) RecentDataPoints(dataType string, limit int) ([]models.DataPoint, error) {
	query := "SELECT id, data_type, so2_value, latitude, longitude, timestamp, created_at FROM data_points"
	args := []any{}
	if dataType != DataTypeBoth {
		query += " WHERE data_type = ?"
		args = append(args, dataType)
	}
	query += " ORDER BY timestamp DESC, id DESC LIMIT ?"
	args = append(args, limit)

	return s.queryDataPoints(query, args...)
}

// DataPointsSince returns the points of dataType at or after since, oldest
// first
func (s *Store) DataPointsSince(dataType string, since time.Time) ([]models.DataPoint, error) {
	return s.queryDataPoints(
		"SELECT id, data_type, so2_value, latitude, longitude, timestamp, created_at FROM data_points "+
			"WHERE data_type = ? AND timestamp >= ? ORDER BY timestamp ASC, id ASC",
		dataType, since.UnixNano(),
	)
}

func (s *Store) queryDataPoints(query string, args ...any) ([]models.DataPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query data points: %w", err)
	}
	defer rows.Close()

	points := []models.DataPoint{}
	for rows.Next() {
		var (
			p             models.DataPoint
			lat, lon      sql.NullFloat64
			ts, createdAt int64
		)
		if err := rows.Scan(&p.ID, &p.DataType, &p.SO2Value, &lat, &lon, &ts, &createdAt); err != nil {
			return nil, err
		}
		if lat.Valid {
			p.Latitude = &lat.Float64
		}
		if lon.Valid {
			p.Longitude = &lon.Float64
		}
		p.Timestamp = time.Unix(0, ts).UTC()
		p.CreatedAt = time.Unix(0, createdAt).UTC()
		points = append(points, p)
	}
	return points, rows.Err()
}

// RecordPrediction stores a prediction made by the service
func (s *Store) RecordPrediction(p models.SourcePrediction) (models.StoredPrediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := models.StoredPrediction{
		DataType:        p.DataType,
		PredictionValue: p.Prediction,
		Confidence:      p.Confidence,
		ModelName:       p.ModelName,
	}
	if s.db == nil {
		return stored, ErrClosed
	}

	stored.CreatedAt = s.now().UTC()
	res, err := s.db.Exec(
		"INSERT INTO prediction_results (data_type, prediction_value, confidence, model_name, created_at) VALUES (?, ?, ?, ?, ?)",
		stored.DataType, stored.PredictionValue, stored.Confidence, stored.ModelName, stored.CreatedAt.UnixNano(),
	)
	if err != nil {
		return stored, fmt.Errorf("failed to record prediction: %w", err)
	}
	stored.ID, err = res.LastInsertId()
	return stored, err
}

// ListPredictions returns up to limit recorded predictions, newest first
func (s *Store) ListPredictions(limit int) ([]models.StoredPrediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}

	rows, err := s.db.Query(
		"SELECT id, data_type, prediction_value, confidence, model_name, created_at FROM prediction_results "+
			"ORDER BY created_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	results := []models.StoredPrediction{}
	for rows.Next() {
		var (
			p         models.StoredPrediction
			createdAt int64
		)
		if err := rows.Scan(&p.ID, &p.DataType, &p.PredictionValue, &p.Confidence, &p.ModelName, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt = time.Unix(0, createdAt).UTC()
		results = append(results, p)
	}
	return results, rows.Err()
}

// Close closes the database. Later calls return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
