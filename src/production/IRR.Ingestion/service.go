// Package ingestion turns device payloads into stored readings.
package ingestion

import (
	"context"
	"time"

	logger "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Logger"
	metrics "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Metrics"
	mirror "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Mirror"
	irrmodels "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Models"
	interfaces "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Repository/Interfaces"
	validation "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Validation"
)

type ReadingService struct {
	repo    interfaces.ReadingRepository
	mirror  mirror.ReadingMirror
	metrics *metrics.Metrics
	logger  *logger.Logger
	now     func() time.Time
}

// NewReadingService wires the store with optional mirror and metrics (either may be nil).
func NewReadingService(repo interfaces.ReadingRepository, m mirror.ReadingMirror, mx *metrics.Metrics, log *logger.Logger) *ReadingService {
	return &ReadingService{
		repo:    repo,
		mirror:  m,
		metrics: mx,
		logger:  log.WithComponent("reading_service"),
		now:     time.Now,
	}
}

// CreateReading validates payload and stores exactly one reading. A
// *validation.ValidationError means nothing was written.
func (s *ReadingService) CreateReading(ctx context.Context, payload map[string]any) (*irrmodels.Reading, error) {
	in, err := validation.ValidateReading(payload, s.now)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ReadingsRejected.Inc()
		}
		return nil, err
	}

	rd, err := s.repo.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	if in.TimestampDefaulted {
		s.logger.Warn().
			Str("reading_id", rd.ID.Hex()).
			Interface("timestamp", payload["timestamp"]).
			Msg("Timestamp could not be converted, stored with receive time")
		if s.metrics != nil {
			s.metrics.TimestampDefaulted.Inc()
		}
	}
	if s.metrics != nil {
		s.metrics.ReadingsCreated.Inc()
	}
	if s.mirror != nil {
		s.mirror.Mirror(*rd)
	}
	return rd, nil
}

func (s *ReadingService) ListReadings(ctx context.Context) ([]irrmodels.Reading, error) {
	return s.repo.FindAll(ctx)
}

func (s *ReadingService) ListReadingsInRange(ctx context.Context, start, end time.Time) ([]irrmodels.Reading, error) {
	return s.repo.FindByDateRange(ctx, start, end)
}

func (s *ReadingService) GetReading(ctx context.Context, id string) (*irrmodels.Reading, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *ReadingService) DeleteReading(ctx context.Context, id string) (*irrmodels.Reading, error) {
	rd, err := s.repo.DeleteByID(ctx, id)
	if err == nil && rd != nil && s.metrics != nil {
		s.metrics.ReadingsDeleted.Inc()
	}
	return rd, err
}

// Ping reports whether the store is reachable.
func (s *ReadingService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
