package ratelimiter

import "time"

// ClientID identifies one live connection in the table.
type ClientID string

// ClientRecord is the per-connection state kept by the RateLimiter.
type ClientRecord struct {
	ID           ClientID  `json:"id"`
	Name         string    `json:"name,omitempty"`
	MessageCount int       `json:"message_count"`
	Blocked      bool      `json:"blocked"`
	BlockedSince time.Time `json:"blocked_since,omitempty"`
}

// unblock lifts the lockout and restarts the message window.
func (r *ClientRecord) unblock() {
	r.Blocked = false
	r.BlockedSince = time.Time{}
	r.MessageCount = 0
}
