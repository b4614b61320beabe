package ratelimiter

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"
)

// RateLimiter owns the table of live clients. All operations take the single
// table lock for the duration of one lookup and mutation.
type RateLimiter struct {
	mu      sync.Mutex
	backend Backend
	lockout time.Duration
	now     func() time.Time
}

type Option func(rl *RateLimiter)

// WithClock replaces time.Now, mainly for tests that need to move past a lockout window.
func WithClock(now func() time.Time) Option {
	return func(rl *RateLimiter) {
		if now != nil {
			rl.now = now
		}
	}
}

func NewRateLimiter(backend Backend, lockout time.Duration, options ...Option) *RateLimiter {
	rl := &RateLimiter{
		backend: backend,
		lockout: lockout,
		now:     time.Now,
	}
	for _, option := range options {
		option(rl)
	}
	return rl
}

// Lockout is the block window shared by IsBlocked and the sweeper.
func (rl *RateLimiter) Lockout() time.Duration {
	return rl.lockout
}

func (rl *RateLimiter) Register(id ClientID) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	_, err := rl.backend.Get(id)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", ErrDuplicateClient, id)
	case !errors.Is(err, ErrNotFound):
		return fmt.Errorf("ratelimiter: register %s: %w", id, err)
	}
	return rl.backend.Set(id, &ClientRecord{ID: id})
}

// SetName records the client name. It may be called once per client.
func (rl *RateLimiter) SetName(id ClientID, name string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	record, err := rl.get(id)
	if err != nil {
		return err
	}
	if record.Name != "" {
		return fmt.Errorf("%w: %s", ErrNameAlreadySet, id)
	}
	record.Name = name
	return rl.backend.Set(id, record)
}

// IsBlocked reports whether the client is locked out and for how many more
// seconds. A block whose window has elapsed is lifted here, without waiting
// for the sweeper.
func (rl *RateLimiter) IsBlocked(id ClientID) (bool, int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	record, err := rl.get(id)
	if err != nil {
		return false, 0, err
	}
	if !record.Blocked {
		return false, 0, nil
	}

	now := rl.now()
	if rl.expired(record, now) {
		record.unblock()
		if err := rl.backend.Set(id, record); err != nil {
			return false, 0, err
		}
		log.Printf("Enable client: %s - %s\n", id, now.Format(time.TimeOnly))
		return false, 0, nil
	}
	return true, rl.secondsRemaining(record, now), nil
}

// IncrementAndCheck counts one message and blocks the client in the same
// step once the count goes above limit. While a client is blocked its count
// is frozen and returned unchanged.
func (rl *RateLimiter) IncrementAndCheck(id ClientID, limit int) (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	record, err := rl.get(id)
	if err != nil {
		return 0, err
	}
	if record.Blocked {
		return record.MessageCount, nil
	}

	record.MessageCount++
	if record.MessageCount > limit {
		record.Blocked = true
		record.BlockedSince = rl.now()
		log.Printf("Disable client: %s - %s\n", id, record.BlockedSince.Format(time.TimeOnly))
	}
	if err := rl.backend.Set(id, record); err != nil {
		return 0, err
	}
	return record.MessageCount, nil
}

// Deregister removes the client. Removing an absent client is not an error.
func (rl *RateLimiter) Deregister(id ClientID) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return rl.backend.Delete(id)
}

// Snapshot returns a copy of every record in the table.
func (rl *RateLimiter) Snapshot() ([]ClientRecord, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	data, err := rl.backend.List()
	if err != nil {
		return nil, err
	}
	records := make([]ClientRecord, 0, len(data))
	for _, record := range data {
		records = append(records, *record)
	}
	return records, nil
}

// Reset drops every record, for backends that outlive the process.
func (rl *RateLimiter) Reset() error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return rl.backend.Clear()
}

// sweep lifts every expired block in one pass under the table lock and returns
// the released ids.
func (rl *RateLimiter) sweep() ([]ClientID, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	data, err := rl.backend.List()
	if err != nil {
		return nil, err
	}

	now := rl.now()
	var released []ClientID
	var errs []error
	for id, record := range data {
		if !record.Blocked || !rl.expired(record, now) {
			continue
		}
		record.unblock()
		if err := rl.backend.Set(id, record); err != nil {
			errs = append(errs, fmt.Errorf("ratelimiter: unblock %s: %w", id, err))
			continue
		}
		released = append(released, id)
	}
	return released, errors.Join(errs...)
}

func (rl *RateLimiter) get(id ClientID) (*ClientRecord, error) {
	record, err := rl.backend.Get(id)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClient, id)
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (rl *RateLimiter) expired(record *ClientRecord, now time.Time) bool {
	return now.Sub(record.BlockedSince) >= rl.lockout
}

func (rl *RateLimiter) secondsRemaining(record *ClientRecord, now time.Time) int {
	remaining := rl.lockout - now.Sub(record.BlockedSince)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Seconds()))
}
