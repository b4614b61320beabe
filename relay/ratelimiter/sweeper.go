package ratelimiter

import (
	"context"
	"log"
	"time"
)

// DefaultSweepInterval trades unblocking promptness against lock contention.
const DefaultSweepInterval = time.Second

// BlockSweeper periodically lifts blocks whose lockout window has elapsed,
// for clients that never query again.
type BlockSweeper struct {
	limiter  *RateLimiter
	interval time.Duration
}

func NewBlockSweeper(limiter *RateLimiter, interval time.Duration) *BlockSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &BlockSweeper{
		limiter:  limiter,
		interval: interval,
	}
}

// Run blocks until ctx is cancelled.
func (s *BlockSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepOnce()
		case <-ctx.Done():
			log.Println("Block sweeper stopped")
			return
		}
	}
}

func (s *BlockSweeper) sweepOnce() int {
	released, err := s.limiter.sweep()
	if err != nil {
		log.Printf("Error sweeping blocked clients: %v\n", err)
	}
	for _, id := range released {
		log.Printf("Unblocking client %s\n", id)
	}
	return len(released)
}
