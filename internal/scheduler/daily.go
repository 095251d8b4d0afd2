package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"
)

const dateLayout = "2006-01-02"

// TimeOfDay is a wall-clock time, e.g. 08:00.
type TimeOfDay struct {
	Hour, Minute int
}

// ParseTimeOfDay parses "HH:MM" (24h).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On returns this time of day on day's date, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, day.Location())
}

// Job is the work triggered once per day.
type Job func(ctx context.Context) error

// Daily wakes every interval and runs its job once per calendar day, the
// first time it wakes at or after the configured time of day. A run that
// returns an error does not count, so the next wake-up tries again.
type Daily struct {
	at       TimeOfDay
	job      Job
	interval time.Duration
	loc      *time.Location
	clock    clock.WithTicker
	logger   *zap.Logger

	mu      sync.Mutex
	lastRun string // date of the last successful run, "" if none
}

type Option func(*Daily)

func WithInterval(d time.Duration) Option {
	return func(s *Daily) { s.interval = d }
}

func WithLocation(loc *time.Location) Option {
	return func(s *Daily) { s.loc = loc }
}

func WithClock(c clock.WithTicker) Option {
	return func(s *Daily) { s.clock = c }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Daily) { s.logger = logger }
}

func NewDaily(at TimeOfDay, job Job, opts ...Option) *Daily {
	s := &Daily{
		at:       at,
		job:      job,
		interval: time.Minute,
		loc:      time.Local,
		clock:    clock.RealClock{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run checks immediately and then on every tick until ctx is cancelled.
func (s *Daily) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("daily scheduler started",
		zap.Stringer("at", s.at),
		zap.String("timezone", s.loc.String()),
		zap.Duration("interval", s.interval))

	s.check(ctx, s.clock.Now())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("daily scheduler stopped")
			return nil
		case <-ticker.C():
			s.check(ctx, s.clock.Now())
		}
	}
}

// LastRunDate returns the date (YYYY-MM-DD) of the last successful run.
func (s *Daily) LastRunDate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// check runs the job if it is due at now and reports whether it succeeded.
func (s *Daily) check(ctx context.Context, now time.Time) bool {
	local := now.In(s.loc)
	today := local.Format(dateLayout)

	s.mu.Lock()
	defer s.mu.Unlock()

	if today == s.lastRun || local.Before(s.at.On(local)) {
		return false
	}

	s.logger.Info("daily job due", zap.String("date", today))
	if err := s.job(ctx); err != nil {
		s.logger.Warn("daily job failed, will retry on next tick", zap.String("date", today), zap.Error(err))
		return false
	}
	s.lastRun = today
	return true
}
