package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"push-relay/internal/domain"
)

// Sweeper periodically evicts devices that have not re-registered within staleAfter.
type Sweeper struct {
	registry   domain.DeviceRegistry
	staleAfter time.Duration
	interval   time.Duration
	now        func() time.Time
	log        zerolog.Logger

	mu sync.Mutex
	c  *cron.Cron
}

func NewSweeper(registry domain.DeviceRegistry, staleAfter, interval time.Duration, log zerolog.Logger) *Sweeper {
	if staleAfter <= 0 {
		staleAfter = time.Hour
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		registry:   registry,
		staleAfter: staleAfter,
		interval:   interval,
		now:        time.Now,
		log:        log.With().Str("component", "sweeper").Logger(),
	}
}

// Start schedules the sweep every interval. Calling Start twice is a no-op.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}

	cronLog := cron.PrintfLogger(&s.log)
	s.c = cron.New(cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)))
	s.c.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		s.Sweep(s.now())
	}))
	s.c.Start()
	s.log.Info().Dur("interval", s.interval).Dur("stale_after", s.staleAfter).Msg("sweeper started")
}

// Stop halts scheduling and waits for a running sweep, bounded by ctx.
func (s *Sweeper) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info().Msg("sweeper stopped")
}

// Sweep runs one eviction pass as of now.
func (s *Sweeper) Sweep(now time.Time) domain.SweepReport {
	report := s.registry.SweepStale(s.staleAfter, now)
	if report.DevicesRemoved > 0 || report.UsersRemoved > 0 {
		s.log.Info().
			Int("devices_removed", report.DevicesRemoved).
			Int("users_removed", report.UsersRemoved).
			Msg("stale devices swept")
	} else {
		s.log.Debug().Msg("sweep found nothing stale")
	}
	return report
}
