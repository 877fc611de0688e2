package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"dynamic-qr-platform/internal/domain/model"
	"dynamic-qr-platform/internal/domain/ports/repository"
	"dynamic-qr-platform/internal/infra/metrics"
)

// StatsCollector periodically refreshes the population gauges (user count,
// subscriptions per status) so the dashboards don't need live queries.
type StatsCollector struct {
	interval time.Duration
	users    repository.UserRepository
	subs     repository.SubscriptionRepository
	log      *zerolog.Logger
}

func NewStatsCollector(interval time.Duration, users repository.UserRepository, subs repository.SubscriptionRepository, logger *zerolog.Logger) *StatsCollector {
	compLog := logger.With().Str("component", "StatsCollector").Logger()
	if interval <= 0 {
		interval = time.Minute
	}
	return &StatsCollector{interval: interval, users: users, subs: subs, log: &compLog}
}

func (w *StatsCollector) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting stats collector")
	w.collect(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping stats collector")
			return ctx.Err()
		case <-ticker.C:
			w.collect(ctx)
		}
	}
}

func (w *StatsCollector) collect(ctx context.Context) {
	if n, err := w.users.Count(ctx, repository.NoTX); err == nil {
		metrics.SetUsersTotal(n)
	} else {
		w.log.Warn().Err(err).Msg("user count failed")
	}

	counts, err := w.subs.CountByStatus(ctx, repository.NoTX)
	if err != nil {
		w.log.Warn().Err(err).Msg("subscription count failed")
		return
	}
	// Zero out statuses that no longer have rows so the gauge doesn't hold a
	// stale value.
	for _, status := range []model.SubscriptionStatus{
		model.SubscriptionStatusIncomplete,
		model.SubscriptionStatusActive,
		model.SubscriptionStatusPastDue,
		model.SubscriptionStatusCanceled,
	} {
		metrics.SetSubscriptionsByStatus(string(status), counts[status])
	}
}
