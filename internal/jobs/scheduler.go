package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type SessionSweeper interface {
	ExpireIfStale(ctx context.Context, now time.Time) bool
}

// Scheduler runs periodic housekeeping. Specs use the six-field format
// with seconds.
type Scheduler struct {
	cron     *cron.Cron
	sessions SessionSweeper
	sweep    string
	log      zerolog.Logger
}

func NewScheduler(sessions SessionSweeper, sweepSpec string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		sessions: sessions,
		sweep:    sweepSpec,
		log:      log.With().Str("component", "scheduler").Logger(),
	}
}

func (s *Scheduler) Start() error {
	if s.sweep == "" || s.sessions == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(s.sweep, s.sweepSessions); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits up to five seconds for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) sweepSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.sessions.ExpireIfStale(ctx, time.Now()) {
		s.log.Info().Msg("session expired")
	}
}
