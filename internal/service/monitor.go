package service

import (
	"context"
	"log"
	"time"

	"github.com/xiaot623/gogo/await/internal/config"
	"github.com/xiaot623/gogo/await/internal/domain"
)

const reasonAwaitExpired = "await_expired"

// RunMonitor periodically expires stale awaits and evicts finished runs
// from memory until ctx is done.
func (s *Service) RunMonitor(ctx context.Context) {
	ticker := time.NewTicker(config.PositiveOr(s.config.MonitorInterval, config.DefaultMonitorInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx, time.Now())
		}
	}
}

func (s *Service) sweep(ctx context.Context, now time.Time) {
	if s.config.AwaitTimeout > 0 {
		s.expireAwaits(ctx, now)
	}
	if s.config.RunRetention > 0 {
		if n := s.controller.Evict(now.Add(-s.config.RunRetention)); n > 0 {
			log.Printf("INFO: evicted %d finished runs from memory", n)
		}
	}
}

func (s *Service) expireAwaits(ctx context.Context, now time.Time) {
	cutoff := now.Add(-s.config.AwaitTimeout)
	for _, run := range s.controller.ListRuns(domain.RunStatusAwaiting) {
		if run.Await == nil || !run.Await.CreatedAt.Before(cutoff) {
			continue
		}
		expired, err := s.controller.CancelAwait(ctx, run.RunID, run.Await.AwaitID, reasonAwaitExpired)
		if err != nil {
			log.Printf("WARN: failed to expire await of run %s: %v", run.RunID, err)
			continue
		}
		if expired {
			log.Printf("INFO: run %s await %s expired", run.RunID, run.Await.AwaitID)
		}
	}
}
