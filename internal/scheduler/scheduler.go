package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gw-transfer-batch/internal/custom_err"
)

// Job is one full batch run.
type Job func(ctx context.Context) error

type Config struct {
	Hour      int
	Location  *time.Location
	DebugMode bool
}

// Scheduler triggers Job once a day at a fixed local hour, or once right away in debug mode.
type Scheduler struct {
	job   Job
	clock Clock
	loc   *time.Location
	hour  int
	debug bool
	log   *slog.Logger
}

func New(job Job, cfg Config, clock Clock, log *slog.Logger) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Scheduler{
		job:   job,
		clock: clock,
		loc:   cfg.Location,
		hour:  cfg.Hour,
		debug: cfg.DebugMode,
		log:   log,
	}
}

// LoadLocation resolves a named timezone such as America/Santiago.
func LoadLocation(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("scheduler.LoadLocation: %w", err)
	}
	return loc, nil
}

// NextTrigger returns today at hour:00 in loc, or the same time tomorrow when
// now is already past it.
func NextTrigger(now time.Time, loc *time.Location, hour int) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, loc)
	if local.After(next) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, 0, 0, 0, loc)
	}
	return next
}

// Delay is the time left until the next trigger.
func (s *Scheduler) Delay() time.Duration {
	now := s.clock.Now()
	return NextTrigger(now, s.loc, s.hour).Sub(now)
}

// Run blocks until ctx is cancelled. Cancellation stops the wait but never a
// run that already started. In debug mode the job runs once and its error is
// returned.
func (s *Scheduler) Run(ctx context.Context) error {
	const op = "scheduler.Run"

	if s.debug {
		s.log.Warn("debug mode enabled: running batch once immediately", slog.String("op", op))
		return s.runOnce(ctx)
	}

	s.log.Info("scheduler started",
		slog.String("op", op),
		slog.Int("hour", s.hour),
		slog.String("timezone", s.loc.String()))

	var fired time.Time
	for {
		if ctx.Err() != nil {
			s.log.Info("scheduler stopped", slog.String("op", op))
			return nil
		}

		now := s.clock.Now()
		from := now
		// a trigger that already fired is never scheduled again
		if !fired.IsZero() && !from.After(fired) {
			from = fired.Add(time.Nanosecond)
		}
		next := NextTrigger(from, s.loc, s.hour)
		delay := max(next.Sub(now), 0)
		s.log.Info("next run scheduled",
			slog.String("op", op),
			slog.Time("at", next),
			slog.Duration("delay", delay))

		timer := s.clock.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info("scheduler stopped", slog.String("op", op))
			return nil
		case <-timer.C():
		}

		fired = next
		s.log.Info("scheduled batch run triggered", slog.String("op", op), slog.Time("at", next))
		_ = s.runOnce(ctx)
	}
}

func (s *Scheduler) runOnce(ctx context.Context) error {
	err := s.job(context.WithoutCancel(ctx))
	switch {
	case err == nil:
		s.log.Info("batch run completed")
	case errors.Is(err, custom_err.ErrRunInProgress):
		s.log.Warn("batch run skipped, another run is in progress")
	default:
		s.log.Error("batch run failed", slog.String("error", err.Error()))
	}
	return err
}
