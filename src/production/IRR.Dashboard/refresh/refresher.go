package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	view "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Dashboard/view"
	logger "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Logger"
	metrics "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Metrics"
)

// Fetcher loads the full reading list.
type Fetcher interface {
	FetchAll(ctx context.Context) ([]view.RawReading, error)
}

// Refresher reloads every reading and commits a new snapshot.
type Refresher struct {
	fetcher Fetcher
	store   *Store
	metrics *metrics.Metrics
	logger  *logger.Logger
	timeout time.Duration
	now     func() time.Time
	cron    *cron.Cron
	wg      sync.WaitGroup
}

// NewRefresher builds a Refresher. mx may be nil.
func NewRefresher(fetcher Fetcher, store *Store, mx *metrics.Metrics, timeout time.Duration, log *logger.Logger) *Refresher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Refresher{
		fetcher: fetcher,
		store:   store,
		metrics: mx,
		logger:  log.WithComponent("dashboard-refresh"),
		timeout: timeout,
		now:     time.Now,
	}
}

// Refresh runs one fetch. On failure the previous snapshot stays in place and
// the error is returned.
func (r *Refresher) Refresh(ctx context.Context) error {
	gen := r.store.Begin()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raws, err := r.fetcher.FetchAll(ctx)
	if err != nil {
		r.store.Fail(gen, err)
		r.observe("error")
		r.logger.Warn().Err(err).Uint64("generation", gen).Msg("Dashboard refresh failed, keeping previous snapshot")
		return fmt.Errorf("refresh readings: %w", err)
	}

	snap := view.BuildSnapshot(raws, r.now().UTC())
	if !r.store.Commit(gen, snap) {
		r.observe("stale")
		r.logger.Debug().Uint64("generation", gen).Msg("Discarded stale dashboard snapshot")
		return nil
	}

	r.observe("ok")
	if r.metrics != nil {
		r.metrics.DashboardReadings.Set(float64(len(snap.Readings)))
	}
	r.logger.Debug().Uint64("generation", gen).Int("readings", len(snap.Readings)).Msg("Dashboard snapshot refreshed")
	return nil
}

// Start refreshes once and then on schedule until Stop.
func (r *Refresher) Start(ctx context.Context, schedule string) error {
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(schedule, func() {
		_ = r.Refresh(ctx)
	}); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	r.cron = c

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_ = r.Refresh(ctx)
	}()
	c.Start()
	r.logger.Info().Str("schedule", schedule).Msg("Dashboard refresh scheduled")
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
	r.wg.Wait()
}

func (r *Refresher) observe(outcome string) {
	if r.metrics != nil {
		r.metrics.DashboardRefreshes.WithLabelValues(outcome).Inc()
	}
}
