package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// WeeklyResetter zeroes every user's weekly discovery counter.
type WeeklyResetter interface {
	ResetWeeklyDiscoveries(ctx context.Context) (int64, error)
}

type Scheduler struct {
	cron    *cron.Cron
	reset   WeeklyResetter
	log     *zap.Logger
	timeout time.Duration
}

// New schedules the weekly reset on spec, a standard five-field cron
// expression evaluated in UTC.
func New(spec string, reset WeeklyResetter, log *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		reset:   reset,
		log:     log.Named("scheduler"),
		timeout: time.Minute,
	}
	if _, err := s.cron.AddFunc(spec, s.RunWeeklyReset); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) RunWeeklyReset() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.reset.ResetWeeklyDiscoveries(ctx)
	if err != nil {
		s.log.Error("weekly discovery reset failed", zap.Error(err))
		return
	}
	s.log.Info("weekly discoveries reset", zap.Int64("users", n))
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for a running job to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Next reports when the reset fires next.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Schedule.Next(time.Now().UTC())
}
