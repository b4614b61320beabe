package ratelimiter

import (
	"context"
	"testing"
	"time"
)

func TestNewBlockSweeper_DefaultInterval(t *testing.T) {
	rl, _ := newTestLimiter(t, time.Minute)

	if s := NewBlockSweeper(rl, 0); s.interval != DefaultSweepInterval {
		t.Errorf("interval = %v, want %v", s.interval, DefaultSweepInterval)
	}
	if s := NewBlockSweeper(rl, 250*time.Millisecond); s.interval != 250*time.Millisecond {
		t.Errorf("interval = %v, want 250ms", s.interval)
	}
}

func TestSweepOnce(t *testing.T) {
	rl, clock := newTestLimiter(t, 10*time.Second)
	sweeper := NewBlockSweeper(rl, time.Second)

	rl.Register("early")
	rl.Register("late")
	rl.Register("free")
	rl.IncrementAndCheck("early", 0)
	clock.Advance(5 * time.Second)
	rl.IncrementAndCheck("late", 0)
	rl.IncrementAndCheck("free", 5)

	t.Run("nothing expired yet", func(t *testing.T) {
		if released := sweeper.sweepOnce(); released != 0 {
			t.Errorf("released %d, want 0", released)
		}
	})

	t.Run("only the expired block is lifted", func(t *testing.T) {
		clock.Advance(5 * time.Second)
		if released := sweeper.sweepOnce(); released != 1 {
			t.Errorf("released %d, want 1", released)
		}
		records := snapshotByID(t, rl)
		if records["early"].Blocked || records["early"].MessageCount != 0 {
			t.Errorf("early: expected unblocked and reset, got %+v", records["early"])
		}
		if !records["late"].Blocked {
			t.Error("late: block lifted before its window elapsed")
		}
		if records["free"].MessageCount != 1 {
			t.Errorf("free: unblocked client count touched: %+v", records["free"])
		}
	})

	t.Run("agrees with IsBlocked", func(t *testing.T) {
		clock.Advance(5 * time.Second)
		blocked, _, _ := rl.IsBlocked("late")
		if blocked {
			t.Error("IsBlocked still reports a block past the window")
		}
		if released := sweeper.sweepOnce(); released != 0 {
			t.Errorf("sweeper released %d already-lifted blocks", released)
		}
	})
}

func TestBlockSweeper_Run(t *testing.T) {
	rl := NewRateLimiter(NewMemoryBackend(), 50*time.Millisecond)
	sweeper := NewBlockSweeper(rl, 10*time.Millisecond)
	rl.Register("c1")
	rl.IncrementAndCheck("c1", 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		records := snapshotByID(t, rl)
		if !records["c1"].Blocked {
			break
		}
		select {
		case <-deadline:
			t.Fatal("sweeper did not lift the expired block")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on context cancellation")
	}
}

func snapshotByID(t *testing.T, rl *RateLimiter) map[ClientID]ClientRecord {
	t.Helper()
	records, err := rl.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	byID := make(map[ClientID]ClientRecord, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}
	return byID
}
