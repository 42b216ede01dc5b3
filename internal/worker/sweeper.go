package worker

import (
	"context"
	"time"

	"mfa-service/pkg/utils"

	"go.uber.org/zap"
)

// StaleStore is the part of the OTP and session repositories the sweeper needs
type StaleStore interface {
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

// Sweeper periodically removes dead OTP rows and sessions
type Sweeper struct {
	otps      StaleStore
	sessions  StaleStore
	interval  time.Duration
	retention time.Duration
	clock     utils.Clock
	log       *zap.Logger
}

func NewSweeper(otps, sessions StaleStore, interval, retention time.Duration, clock utils.Clock, log *zap.Logger) *Sweeper {
	return &Sweeper{
		otps:      otps,
		sessions:  sessions,
		interval:  interval,
		retention: retention,
		clock:     clock,
		log:       log.With(zap.String("worker", "sweeper")),
	}
}

// Run sweeps once immediately and then on every tick until ctx is done
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("Sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("retention", s.retention))

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one cleanup pass. Failures are logged and retried next tick.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := s.clock.Now().Add(-s.retention)

	otps, err := s.otps.DeleteStale(ctx, cutoff)
	if err != nil {
		s.log.Error("Failed to delete stale OTPs", zap.Error(err))
	}

	sessions, err := s.sessions.DeleteStale(ctx, cutoff)
	if err != nil {
		s.log.Error("Failed to clean expired sessions", zap.Error(err))
	}

	if otps > 0 || sessions > 0 {
		s.log.Info("Sweep finished",
			zap.Int64("otps_deleted", otps),
			zap.Int64("sessions_deleted", sessions),
			zap.Time("cutoff", cutoff))
	}
}
