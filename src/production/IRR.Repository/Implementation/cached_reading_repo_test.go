package implementation

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	logger "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Logger"
	irrmodels "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Models"
)

type fakeCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	gets   int
	incrs  int
	getErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}}
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return nil, c.getErr
	}
	v, ok := c.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *fakeCache) Incr(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.incrs++
	n, _ := strconv.ParseInt(string(c.data[key]), 10, 64)
	n++
	c.data[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

// countingRepo counts FindAll calls that reach the backing store.
type countingRepo struct {
	*MemoryReadingRepository
	findAll int
}

func (r *countingRepo) FindAll(ctx context.Context) ([]irrmodels.Reading, error) {
	r.findAll++
	return r.MemoryReadingRepository.FindAll(ctx)
}

func TestCachedFindAllServesFromCache(t *testing.T) {
	inner := &countingRepo{MemoryReadingRepository: NewMemoryReadingRepository()}
	cache := newFakeCache()
	repo := NewCachedReadingRepository(inner, cache, "readings:all", time.Minute, logger.NewNop())

	_, err := repo.Create(context.Background(), irrmodels.ReadingInput{Humidity: 10, Timestamp: at(1)})
	require.NoError(t, err)

	first, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	second, err := repo.FindAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, inner.findAll)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.True(t, first[0].Timestamp.Equal(second[0].Timestamp))
}

func TestCachedWritesInvalidate(t *testing.T) {
	inner := &countingRepo{MemoryReadingRepository: NewMemoryReadingRepository()}
	cache := newFakeCache()
	repo := NewCachedReadingRepository(inner, cache, "readings:all", time.Minute, logger.NewNop())

	_, err := repo.FindAll(context.Background())
	require.NoError(t, err)

	created, err := repo.Create(context.Background(), irrmodels.ReadingInput{Humidity: 10, Timestamp: at(1)})
	require.NoError(t, err)

	all, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, 2, inner.findAll)

	_, err = repo.DeleteByID(context.Background(), created.ID.Hex())
	require.NoError(t, err)
	all, err = repo.FindAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Equal(t, 2, cache.incrs)
}

func TestCachedFindAllSurvivesCacheOutage(t *testing.T) {
	inner := &countingRepo{MemoryReadingRepository: NewMemoryReadingRepository()}
	cache := newFakeCache()
	cache.getErr = errors.New("connection refused")
	repo := NewCachedReadingRepository(inner, cache, "readings:all", time.Minute, logger.NewNop())

	all, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Equal(t, 1, inner.findAll)
}

// gatedRepo holds its first FindAll after reading the store until release
// is closed.
type gatedRepo struct {
	*MemoryReadingRepository
	once    sync.Once
	fetched chan struct{}
	release chan struct{}
}

func (r *gatedRepo) FindAll(ctx context.Context) ([]irrmodels.Reading, error) {
	readings, err := r.MemoryReadingRepository.FindAll(ctx)
	r.once.Do(func() {
		close(r.fetched)
		<-r.release
	})
	return readings, err
}

func TestCachedFindAllOverlappingWriteDoesNotPinStaleList(t *testing.T) {
	inner := &gatedRepo{
		MemoryReadingRepository: NewMemoryReadingRepository(),
		fetched:                 make(chan struct{}),
		release:                 make(chan struct{}),
	}
	cache := newFakeCache()
	repo := NewCachedReadingRepository(inner, cache, "readings:all", time.Minute, logger.NewNop())

	done := make(chan []irrmodels.Reading)
	go func() {
		stale, err := repo.FindAll(context.Background())
		assert.NoError(t, err)
		done <- stale
	}()

	<-inner.fetched
	_, err := repo.Create(context.Background(), irrmodels.ReadingInput{Humidity: 10, Timestamp: at(1)})
	require.NoError(t, err)
	close(inner.release)

	assert.Empty(t, <-done)

	all, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)

	again, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, again, 1)
}
