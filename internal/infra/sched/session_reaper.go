package sched

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"dynamic-qr-platform/internal/infra/metrics"
	"dynamic-qr-platform/internal/usecase"
)

// SessionReaper deletes unconsumed payment sessions past their TTL on a cron
// schedule. Consumed sessions are kept as the replay guard and are never
// touched here.
type SessionReaper struct {
	schedule   string
	sessionTTL time.Duration
	checkoutUC usecase.CheckoutUseCase
	cron       *cron.Cron
	log        *zerolog.Logger
}

func NewSessionReaper(schedule string, sessionTTL time.Duration, checkoutUC usecase.CheckoutUseCase, logger *zerolog.Logger) *SessionReaper {
	compLog := logger.With().Str("component", "SessionReaper").Logger()
	return &SessionReaper{
		schedule:   schedule,
		sessionTTL: sessionTTL,
		checkoutUC: checkoutUC,
		cron:       cron.New(),
		log:        &compLog,
	}
}

func (w *SessionReaper) Start(ctx context.Context) error {
	_, err := w.cron.AddFunc(w.schedule, func() { w.runOnce(ctx) })
	if err != nil {
		return err
	}
	w.log.Info().Str("schedule", w.schedule).Dur("session_ttl", w.sessionTTL).Msg("starting session reaper")
	w.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (w *SessionReaper) Stop() {
	<-w.cron.Stop().Done()
	w.log.Info().Msg("session reaper stopped")
}

func (w *SessionReaper) runOnce(ctx context.Context) {
	tick, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	n, err := w.checkoutUC.ReapStale(tick, w.sessionTTL)
	if err != nil {
		w.log.Error().Err(err).Msg("session reap failed")
		return
	}
	if n > 0 {
		metrics.AddSessionsReaped(n)
		w.log.Info().Int64("count", n).Msg("stale payment sessions reaped")
	}
}
