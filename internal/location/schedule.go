package location

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/oshokin/sos-button/internal/logger"
)

// Refresher is anything that can re-read its position.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Scheduler refreshes a location source on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler registers source under spec (standard cron or @every descriptors).
// The first refresh runs immediately so a fix is available before the first tick.
func NewScheduler(ctx context.Context, spec string, source Refresher) (*Scheduler, error) {
	ctx = logger.WithName(ctx, "location")

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	job := func() {
		err := source.Refresh(ctx)

		switch {
		case err == nil:
		case errors.Is(err, ErrNoFix):
			logger.Debug(ctx, "No location fix yet")
		default:
			logger.WarnKV(ctx, "Location refresh failed", "error", err)
		}
	}

	if _, err := c.AddFunc(spec, job); err != nil {
		return nil, fmt.Errorf("schedule location refresh %q: %w", spec, err)
	}

	job()

	return &Scheduler{cron: c}, nil
}

// Start begins scheduled refreshes in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
