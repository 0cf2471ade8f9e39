package blacklist

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authhub/internal/clock"
	"github.com/dmitrijs2005/authhub/internal/logging"
)

// maxBatchesPerTick bounds how long one sweep may run.
const maxBatchesPerTick = 4

// Pruner deletes expired durable refresh tokens.
type Pruner interface {
	PruneExpired(ctx context.Context) (int64, error)
}

// Sweeper periodically clears expired blacklist entries and, when a Pruner
// is set, expired refresh token rows. Run is a single loop so sweeps never
// overlap.
type Sweeper struct {
	bl       *Blacklist
	pruner   Pruner
	clock    clock.Clock
	interval time.Duration
	batch    int64
	log      logging.Logger
}

func NewSweeper(bl *Blacklist, pruner Pruner, clk clock.Clock, interval time.Duration, batch int64, log logging.Logger) *Sweeper {
	return &Sweeper{
		bl:       bl,
		pruner:   pruner,
		clock:    clk,
		interval: interval,
		batch:    batch,
		log:      log.With("module", "sweeper"),
	}
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	t := s.clock.NewTicker(s.interval)
	defer t.Stop()

	s.log.Info(ctx, "sweeper started", "interval", s.interval.String(), "batch", s.batch)
	for {
		select {
		case <-ctx.Done():
			s.log.Info(ctx, "sweeper stopped")
			return
		case <-t.C():
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass and returns the number of blacklist entries removed.
// Errors are logged; the next tick retries.
func (s *Sweeper) Sweep(ctx context.Context) int64 {
	now := s.clock.Now()

	var removed int64
	for range maxBatchesPerTick {
		jtis, err := s.bl.FindExpired(ctx, now, s.batch)
		if err != nil {
			s.log.Warn(ctx, "blacklist sweep failed", logging.ErrAttrs(err)...)
			break
		}
		if len(jtis) == 0 {
			break
		}
		n, err := s.bl.RemoveAll(ctx, jtis)
		if err != nil {
			s.log.Warn(ctx, "blacklist sweep failed", logging.ErrAttrs(err)...)
			break
		}
		removed += n
		if int64(len(jtis)) < s.batch {
			break
		}
	}
	if removed > 0 {
		s.log.Info(ctx, "blacklist swept", "removed", removed)
	}

	if s.pruner != nil {
		n, err := s.pruner.PruneExpired(ctx)
		if err != nil {
			s.log.Warn(ctx, "refresh token prune failed", logging.ErrAttrs(err)...)
		} else if n > 0 {
			s.log.Info(ctx, "refresh tokens pruned", "removed", n)
		}
	}
	return removed
}
