package interfaces

import (
	"context"
	"time"

	irrmodels "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Models"
)

// ReadingRepository persists soil readings. Lookups that find nothing return
// (nil, nil); backend failures are *irrmodels.StorageError.
type ReadingRepository interface {
	Create(ctx context.Context, in irrmodels.ReadingInput) (*irrmodels.Reading, error)
	FindAll(ctx context.Context) ([]irrmodels.Reading, error)
	FindByID(ctx context.Context, id string) (*irrmodels.Reading, error)
	// FindByDateRange is inclusive on both ends.
	FindByDateRange(ctx context.Context, start, end time.Time) ([]irrmodels.Reading, error)
	DeleteByID(ctx context.Context, id string) (*irrmodels.Reading, error)
	Ping(ctx context.Context) error
}
