package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/hotel-room-reservation/internal/repository"
)

// defaultSweepInterval is how often the sweeper scans for stale holds.
const defaultSweepInterval = time.Minute

// defaultSweepBatch caps how many holds one sweep releases; the next tick
// picks up the remainder.
const defaultSweepBatch = 200

// Sweeper expires holds whose TTL has elapsed: it scans for active holds
// past expires_at and releases each through the orchestrator's system
// path. Multiple sweeper instances may run against the same database —
// the optimistic status guard inside the release makes a hold that
// another instance (or a concurrent buyer release, or a conversion)
// already finished a silent skip, never a double decrement.
type Sweeper struct {
	holds    HoldStore
	orch     *HoldOrchestrator
	interval time.Duration
	batch    int
	now      func() time.Time
}

// SweeperOption customises a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepInterval overrides the default 60s scan interval.
func WithSweepInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSweepBatch overrides the per-sweep release cap.
func WithSweepBatch(n int) SweeperOption {
	return func(s *Sweeper) {
		if n > 0 {
			s.batch = n
		}
	}
}

// WithSweepClock overrides the time source used for the expiry cutoff.
func WithSweepClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSweeper constructs a Sweeper over the given hold store and
// orchestrator.
func NewSweeper(holds HoldStore, orch *HoldOrchestrator, opts ...SweeperOption) *Sweeper {
	if holds == nil || orch == nil {
		panic("nil dependency passed to NewSweeper")
	}
	s := &Sweeper{
		holds:    holds,
		orch:     orch,
		interval: defaultSweepInterval,
		batch:    defaultSweepBatch,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the sweep loop until ctx is cancelled. Errors from a sweep
// are logged and the loop keeps going; a broken database round trip now
// does not stop expiry later.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("sweeper: started, interval=%s", s.interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("sweeper: stopped")
			return
		case <-ticker.C:
			if n, err := s.SweepOnce(ctx); err != nil {
				log.Printf("sweeper: sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("sweeper: expired %d holds", n)
			}
		}
	}
}

// SweepOnce finds holds past their expiry and releases them, returning
// how many it transitioned. Callable on demand, independent of the loop.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	ids, err := s.holds.FindExpiredActive(ctx, s.now(), s.batch)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		if _, err := s.orch.ExpireHold(ctx, id); err != nil {
			// A hold released or converted between the scan and the
			// update is not a failure; everything else is.
			if errors.Is(err, repository.ErrHoldNotActive) || errors.Is(err, repository.ErrHoldNotFound) {
				continue
			}
			log.Printf("sweeper: expire hold %d failed: %v", id, err)
			continue
		}
		expired++
	}
	return expired, nil
}
