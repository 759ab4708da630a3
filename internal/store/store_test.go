package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartoza/airscope/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func point(dataType string, value float64, ts time.Time) models.DataPoint {
	return models.DataPoint{DataType: dataType, SO2Value: value, Timestamp: ts}
}

func TestAddAndRecent(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)

	lat, lon := 28.61, 77.21
	p := point(models.DataTypeGround, 8.5, base)
	p.Latitude, p.Longitude = &lat, &lon

	added, err := s.AddDataPoint(p)
	require.NoError(t, err)
	assert.NotZero(t, added.ID)
	assert.False(t, added.CreatedAt.IsZero())

	_, err = s.AddDataPoint(point(models.DataTypeSatellite, 12, base.Add(time.Hour)))
	require.NoError(t, err)
	_, err = s.AddDataPoint(point(models.DataTypeGround, 9, base.Add(2*time.Hour)))
	require.NoError(t, err)

	all, err := s.RecentDataPoints(DataTypeBoth, 100)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 9.0, all[0].SO2Value)
	assert.Equal(t, 8.5, all[2].SO2Value)
	require.NotNil(t, all[2].Latitude)
	assert.Equal(t, 28.61, *all[2].Latitude)
	assert.Nil(t, all[0].Latitude)
	assert.True(t, base.Equal(all[2].Timestamp))

	ground, err := s.RecentDataPoints(models.DataTypeGround, 1)
	require.NoError(t, err)
	require.Len(t, ground, 1)
	assert.Equal(t, 9.0, ground[0].SO2Value)

	none, err := s.RecentDataPoints(models.DataTypeSatellite, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDataPointsSince(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := s.AddDataPoint(point(models.DataTypeGround, float64(i), base.Add(time.Duration(i)*24*time.Hour)))
		require.NoError(t, err)
	}

	got, err := s.DataPointsSince(models.DataTypeGround, base.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 2.0, got[0].SO2Value)
	assert.Equal(t, 4.0, got[2].SO2Value)

	got, err = s.DataPointsSince(models.DataTypeSatellite, base)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPredictions(t *testing.T) {
	s := openTestStore(t)
	clock := time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	first, err := s.RecordPrediction(models.SourcePrediction{Prediction: 9.4, Confidence: 0.85, ModelName: "RandomForest", DataType: models.DataTypeGround})
	require.NoError(t, err)
	assert.Equal(t, 9.4, first.PredictionValue)
	assert.True(t, clock.Equal(first.CreatedAt))

	clock = clock.Add(time.Minute)
	_, err = s.RecordPrediction(models.SourcePrediction{Prediction: 21.2, Confidence: 0.8, ModelName: "RandomForest", DataType: models.DataTypeSatellite})
	require.NoError(t, err)

	list, err := s.ListPredictions(10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.DataTypeSatellite, list[0].DataType)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestAddDataPointsIsAtomic(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "batch.db"))
	require.NoError(t, err)
	defer s.Close()

	base := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	added, err := s.AddDataPoints([]models.DataPoint{
		point(models.DataTypeGround, 1, base),
		point(models.DataTypeSatellite, 2, base.Add(time.Hour)),
	})
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.NotZero(t, added[0].ID)
	assert.Greater(t, added[1].ID, added[0].ID)

	// the second row violates the data_type constraint, so the first is
	// rolled back with it
	_, err = s.AddDataPoints([]models.DataPoint{
		point(models.DataTypeGround, 3, base.Add(2*time.Hour)),
		point("radar", 4, base.Add(3*time.Hour)),
	})
	assert.ErrorContains(t, err, "row 2")

	got, err := s.RecentDataPoints(DataTypeBoth, 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestClosed(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.AddDataPoint(point(models.DataTypeGround, 1, time.Now()))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.AddDataPoints([]models.DataPoint{point(models.DataTypeGround, 1, time.Now())})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.RecentDataPoints(DataTypeBoth, 1)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.ListPredictions(1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.AddDataPoint(point(models.DataTypeGround, 3, time.Now()))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.RecentDataPoints(DataTypeBoth, 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
