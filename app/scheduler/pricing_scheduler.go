// Package scheduler runs periodic background jobs against the pricing engine
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/amirphl/detailing-pricing/app/dto"
	"github.com/amirphl/detailing-pricing/utils"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	defaultRefreshInterval    = time.Hour
	defaultRefreshConcurrency = 4
)

// PricingRefresher is the part of the pricing flow the scheduler drives
type PricingRefresher interface {
	ListActive(ctx context.Context) (*dto.ListPricingResponse, error)
	RefreshTimeFactors(ctx context.Context, serviceID string, at time.Time) (*dto.PricingRecordResponse, error)
}

// RunStats summarizes a single scheduler pass
type RunStats struct {
	Total     int
	Refreshed int32
	Failed    int32
}

// PricingScheduler periodically refreshes the seasonal and time-of-day factors of every active record
type PricingScheduler struct {
	flow        PricingRefresher
	logger      *slog.Logger
	clock       utils.Clock
	interval    time.Duration
	concurrency int64
}

func NewPricingScheduler(flow PricingRefresher, logger *slog.Logger, clock utils.Clock, interval time.Duration, concurrency int) *PricingScheduler {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	if concurrency <= 0 {
		concurrency = defaultRefreshConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &PricingScheduler{
		flow:        flow,
		logger:      logger.With("component", "pricing_scheduler"),
		clock:       clock,
		interval:    interval,
		concurrency: int64(concurrency),
	}
}

// Start launches the scheduler loop in a background goroutine and returns a stop function
func (s *PricingScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.RunOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// RunOnce refreshes every active record once. A failure for one service does not stop the others.
func (s *PricingScheduler) RunOnce(ctx context.Context) RunStats {
	var stats RunStats

	list, err := s.flow.ListActive(ctx)
	if err != nil {
		s.logger.Error("list active pricing failed", "error", err)
		return stats
	}
	stats.Total = len(list.Items)
	if stats.Total == 0 {
		return stats
	}

	at := s.clock.Now()
	sem := semaphore.NewWeighted(s.concurrency)
	g, gctx := errgroup.WithContext(ctx)

	for _, item := range list.Items {
		serviceID := item.ServiceID
		if err := sem.Acquire(gctx, 1); err != nil {
			// context cancelled; stop scheduling new work
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			if _, err := s.flow.RefreshTimeFactors(gctx, serviceID, at); err != nil {
				atomic.AddInt32(&stats.Failed, 1)
				s.logger.Warn("refresh pricing failed", "service_id", serviceID, "error", err)
				return nil
			}
			atomic.AddInt32(&stats.Refreshed, 1)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("pricing refresh completed",
		"total", stats.Total,
		"refreshed", atomic.LoadInt32(&stats.Refreshed),
		"failed", atomic.LoadInt32(&stats.Failed),
	)
	return stats
}
