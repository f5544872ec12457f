// Package schedule wraps gocron for the daily background jobs. Jobs run in a
// fixed location at a fixed wall-clock time and are never overlapped: a run
// that outlasts its period pushes the next one back.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Scheduler owns the gocron instance and its registered jobs.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *zap.Logger
}

// NewScheduler builds a scheduler pinned to the given location.
func NewScheduler(loc *time.Location, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		panic("logger is required")
	}
	s, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, logger: logger}, nil
}

// RegisterDaily schedules task once per day at "HH:MM" local to the
// scheduler's location.
func (s *Scheduler) RegisterDaily(name, at string, task func(context.Context)) error {
	hour, minute, err := ParseAtTime(at)
	if err != nil {
		return err
	}

	_, err = s.scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(hour, minute, 0))),
		gocron.NewTask(func() {
			start := time.Now()
			s.logger.Info("scheduled job starting", zap.String("job", name))
			task(context.Background())
			s.logger.Info("scheduled job finished",
				zap.String("job", name),
				zap.Duration("duration", time.Since(start)),
			)
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register job %q: %w", name, err)
	}
	return nil
}

// Start begins executing registered jobs. Non-blocking.
func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Shutdown stops the scheduler and waits for in-flight jobs.
func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}

// ParseAtTime parses a "HH:MM" wall-clock time.
func ParseAtTime(at string) (hour, minute uint, err error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid at-time %q (want HH:MM): %w", at, err)
	}
	return uint(t.Hour()), uint(t.Minute()), nil
}
