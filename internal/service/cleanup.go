package service

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
)

type schedLogger struct {
	log *log.Logger
}

func (l *schedLogger) Debug(msg string, args ...any) { l.log.Debug(msg, args...) }
func (l *schedLogger) Error(msg string, args ...any) { l.log.Error(msg, args...) }
func (l *schedLogger) Info(msg string, args ...any)  { l.log.Info(msg, args...) }
func (l *schedLogger) Warn(msg string, args ...any)  { l.log.Warn(msg, args...) }

// SessionSweeper periodically deletes expired sessions. Resolve already
// treats them as absent, so the sweep only keeps the table small.
type SessionSweeper struct {
	sched    gocron.Scheduler
	sessions *SessionManager
	interval time.Duration
}

// NewSessionSweeper schedules a sweep every interval.
func NewSessionSweeper(sessions *SessionManager, interval time.Duration) (*SessionSweeper, error) {
	sched, err := gocron.NewScheduler(gocron.WithLogger(&schedLogger{log: log.Default().WithPrefix("scheduler")}))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	s := &SessionSweeper{sched: sched, sessions: sessions, interval: interval}
	if _, err := sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.sweep),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("failed to create session sweep job: %w", err)
	}
	return s, nil
}

func (s *SessionSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n, err := s.sessions.PurgeExpired(ctx)
	if err != nil {
		log.Error("Session sweep failed", "error", err)
		return
	}
	if n > 0 {
		log.Info("Removed expired sessions", "count", n)
	}
}

// Start begins running the sweep.
func (s *SessionSweeper) Start() {
	log.Info("Starting session sweeper", "interval", s.interval)
	s.sched.Start()
}

// Stop waits for a running sweep and stops the scheduler.
func (s *SessionSweeper) Stop() error {
	return s.sched.Shutdown()
}
