package retention

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Expirer deletes matches idle since before and reports their ids.
type Expirer interface {
	ExpireIdle(ctx context.Context, before time.Time) ([]string, error)
}

// Disconnecter drops the live connections of a removed match.
type Disconnecter interface {
	CloseMatch(matchID string) int
}

// Sweeper removes matches nobody touched for longer than the retention period.
type Sweeper struct {
	expirer   Expirer
	conns     Disconnecter
	retention time.Duration
	interval  time.Duration
	sched     gocron.Scheduler
	now       func() time.Time
}

// NewSweeper builds a sweeper. conns may be nil when no connections live in
// this process.
func NewSweeper(expirer Expirer, conns Disconnecter, retention, interval time.Duration) *Sweeper {
	return &Sweeper{
		expirer:   expirer,
		conns:     conns,
		retention: retention,
		interval:  interval,
		now:       time.Now,
	}
}

// SweepOnce runs a single retention pass and returns the removed match ids.
func (s *Sweeper) SweepOnce(ctx context.Context) ([]string, error) {
	ids, err := s.expirer.ExpireIdle(ctx, s.now().Add(-s.retention))
	if s.conns != nil {
		for _, id := range ids {
			s.conns.CloseMatch(id)
		}
	}
	return ids, err
}

// Start schedules SweepOnce every interval. Overlapping runs are skipped.
func (s *Sweeper) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			defer cancel()
			if _, err := s.SweepOnce(ctx); err != nil {
				log.Printf("[Sweeper] Retention pass failed: %v", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("match-retention"),
	)
	if err != nil {
		sched.Shutdown()
		return fmt.Errorf("failed to schedule retention job: %w", err)
	}

	sched.Start()
	s.sched = sched
	log.Printf("[Sweeper] Removing matches idle for %v, checking every %v", s.retention, s.interval)
	return nil
}

func (s *Sweeper) Stop() error {
	if s.sched == nil {
		return nil
	}
	return s.sched.Shutdown()
}
