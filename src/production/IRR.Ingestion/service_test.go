package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	logger "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Logger"
	metrics "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Metrics"
	irrmodels "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Models"
	implementation "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Repository/Implementation"
	validation "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Validation"
)

type recordingMirror struct {
	readings []irrmodels.Reading
}

func (m *recordingMirror) Mirror(rd irrmodels.Reading) {
	m.readings = append(m.readings, rd)
}

type failingRepo struct {
	*implementation.MemoryReadingRepository
}

func (failingRepo) Create(ctx context.Context, in irrmodels.ReadingInput) (*irrmodels.Reading, error) {
	return nil, irrmodels.NewStorageError("insert", errors.New("server selection timeout"))
}

func newService(t *testing.T) (*ReadingService, *implementation.MemoryReadingRepository, *recordingMirror, *metrics.Metrics) {
	t.Helper()
	repo := implementation.NewMemoryReadingRepository()
	mir := &recordingMirror{}
	mx := metrics.New("test")
	svc := NewReadingService(repo, mir, mx, logger.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return svc, repo, mir, mx
}

func TestCreateReadingPersistsOnce(t *testing.T) {
	svc, repo, mir, mx := newService(t)

	rd, err := svc.CreateReading(context.Background(), map[string]any{
		"humidity":  42.0,
		"timestamp": "2024-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	assert.False(t, rd.Regando)

	all, _ := repo.FindAll(context.Background())
	assert.Len(t, all, 1)
	assert.Len(t, mir.readings, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(mx.ReadingsCreated))
}

func TestCreateReadingRejectsWithoutTouchingStore(t *testing.T) {
	svc, repo, mir, mx := newService(t)

	_, err := svc.CreateReading(context.Background(), map[string]any{"timestamp": "2024-01-01T00:00:00Z"})
	var verr *validation.ValidationError
	require.True(t, errors.As(err, &verr))

	all, _ := repo.FindAll(context.Background())
	assert.Empty(t, all)
	assert.Empty(t, mir.readings)
	assert.Equal(t, 1.0, testutil.ToFloat64(mx.ReadingsRejected))
}

func TestCreateReadingDefaultsTimestamp(t *testing.T) {
	svc, _, _, mx := newService(t)

	rd, err := svc.CreateReading(context.Background(), map[string]any{"humidity": 10.0, "timestamp": "soon"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), rd.Timestamp)
	assert.Equal(t, 1.0, testutil.ToFloat64(mx.TimestampDefaulted))
}

func TestCreateReadingSurfacesStorageError(t *testing.T) {
	mir := &recordingMirror{}
	svc := NewReadingService(failingRepo{implementation.NewMemoryReadingRepository()}, mir, nil, logger.NewNop())

	_, err := svc.CreateReading(context.Background(), map[string]any{"humidity": 1.0, "timestamp": 0.0})
	var se *irrmodels.StorageError
	require.True(t, errors.As(err, &se))
	assert.Empty(t, mir.readings)
}

func TestDeleteReading(t *testing.T) {
	svc, _, _, mx := newService(t)
	rd, err := svc.CreateReading(context.Background(), map[string]any{"humidity": 1.0, "timestamp": 0.0})
	require.NoError(t, err)

	deleted, err := svc.DeleteReading(context.Background(), rd.ID.Hex())
	require.NoError(t, err)
	require.NotNil(t, deleted)

	missing, err := svc.DeleteReading(context.Background(), rd.ID.Hex())
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.Equal(t, 1.0, testutil.ToFloat64(mx.ReadingsDeleted))
}
