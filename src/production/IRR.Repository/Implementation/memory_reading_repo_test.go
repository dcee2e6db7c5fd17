package implementation

import (
	"context"
	"testing"
	"time"

	irrmodels "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(min int) time.Time {
	return time.Date(2024, 1, 1, 0, min, 0, 0, time.UTC)
}

func seed(t *testing.T, repo *MemoryReadingRepository, minutes ...int) []*irrmodels.Reading {
	t.Helper()
	out := make([]*irrmodels.Reading, 0, len(minutes))
	for _, m := range minutes {
		rd, err := repo.Create(context.Background(), irrmodels.ReadingInput{Humidity: float64(m), Timestamp: at(m)})
		require.NoError(t, err)
		out = append(out, rd)
	}
	return out
}

func TestMemoryCreateAssignsIdentity(t *testing.T) {
	now := time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC)
	repo := NewMemoryReadingRepositoryWithClock(func() time.Time { return now })

	rd, err := repo.Create(context.Background(), irrmodels.ReadingInput{Humidity: 42, Timestamp: at(0)})
	require.NoError(t, err)

	assert.False(t, rd.ID.IsZero())
	assert.Equal(t, now, rd.CreatedAt)
	assert.False(t, rd.Regando)

	got, err := repo.FindByID(context.Background(), rd.ID.Hex())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *rd, *got)
}

func TestMemoryFindAllKeepsInsertionOrder(t *testing.T) {
	repo := NewMemoryReadingRepository()
	seed(t, repo, 5, 1, 3)

	all, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []float64{5, 1, 3}, []float64{all[0].Humidity, all[1].Humidity, all[2].Humidity})
}

func TestMemoryFindAllEmptyIsNotNil(t *testing.T) {
	all, err := NewMemoryReadingRepository().FindAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestMemoryDateRangeIsInclusive(t *testing.T) {
	repo := NewMemoryReadingRepository()
	seed(t, repo, 0, 10, 20, 30)

	got, err := repo.FindByDateRange(context.Background(), at(10), at(20))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, at(10), got[0].Timestamp)
	assert.Equal(t, at(20), got[1].Timestamp)
}

func TestMemoryDeleteByID(t *testing.T) {
	repo := NewMemoryReadingRepository()
	created := seed(t, repo, 1, 2)

	deleted, err := repo.DeleteByID(context.Background(), created[0].ID.Hex())
	require.NoError(t, err)
	require.NotNil(t, deleted)
	assert.Equal(t, created[0].ID, deleted.ID)

	again, err := repo.DeleteByID(context.Background(), created[0].ID.Hex())
	require.NoError(t, err)
	assert.Nil(t, again)

	gone, err := repo.FindByID(context.Background(), created[0].ID.Hex())
	require.NoError(t, err)
	assert.Nil(t, gone)

	all, _ := repo.FindAll(context.Background())
	assert.Len(t, all, 1)
}

func TestMemoryMalformedIDIsNotFound(t *testing.T) {
	repo := NewMemoryReadingRepository()

	rd, err := repo.FindByID(context.Background(), "not-an-id")
	assert.NoError(t, err)
	assert.Nil(t, rd)

	rd, err = repo.DeleteByID(context.Background(), "not-an-id")
	assert.NoError(t, err)
	assert.Nil(t, rd)
}
