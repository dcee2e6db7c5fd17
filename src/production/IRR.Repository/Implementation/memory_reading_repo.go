package implementation

import (
	"context"
	"sync"
	"time"

	irrmodels "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryReadingRepository keeps readings in insertion order inside the process.
type MemoryReadingRepository struct {
	mu       sync.RWMutex
	readings []irrmodels.Reading
	now      func() time.Time
}

func NewMemoryReadingRepository() *MemoryReadingRepository {
	return &MemoryReadingRepository{now: time.Now}
}

// NewMemoryReadingRepositoryWithClock is used by tests that need stable createdAt values.
func NewMemoryReadingRepositoryWithClock(now func() time.Time) *MemoryReadingRepository {
	return &MemoryReadingRepository{now: now}
}

func (r *MemoryReadingRepository) Create(ctx context.Context, in irrmodels.ReadingInput) (*irrmodels.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, irrmodels.NewStorageError("insert", err)
	}
	rd := irrmodels.NewReading(primitive.NewObjectID(), in, r.now())

	r.mu.Lock()
	r.readings = append(r.readings, rd)
	r.mu.Unlock()

	return &rd, nil
}

func (r *MemoryReadingRepository) FindAll(ctx context.Context) ([]irrmodels.Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]irrmodels.Reading, len(r.readings))
	copy(out, r.readings)
	return out, nil
}

func (r *MemoryReadingRepository) FindByDateRange(ctx context.Context, start, end time.Time) ([]irrmodels.Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]irrmodels.Reading, 0)
	for _, rd := range r.readings {
		if rd.Timestamp.Before(start) || rd.Timestamp.After(end) {
			continue
		}
		out = append(out, rd)
	}
	return out, nil
}

func (r *MemoryReadingRepository) FindByID(ctx context.Context, id string) (*irrmodels.Reading, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.readings {
		if r.readings[i].ID == oid {
			rd := r.readings[i]
			return &rd, nil
		}
	}
	return nil, nil
}

func (r *MemoryReadingRepository) DeleteByID(ctx context.Context, id string) (*irrmodels.Reading, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.readings {
		if r.readings[i].ID == oid {
			rd := r.readings[i]
			r.readings = append(r.readings[:i], r.readings[i+1:]...)
			return &rd, nil
		}
	}
	return nil, nil
}

func (r *MemoryReadingRepository) Ping(ctx context.Context) error {
	return nil
}
