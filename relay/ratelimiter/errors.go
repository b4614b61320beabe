package ratelimiter

import "errors"

var (
	// ErrNotFound is returned by a Backend when no record exists for an id.
	ErrNotFound = errors.New("ratelimiter: record not found")

	// ErrUnknownClient is returned when an operation targets an id that was never registered
	// or has already been deregistered.
	ErrUnknownClient = errors.New("ratelimiter: unknown client")

	// ErrDuplicateClient is returned by Register when the id is already in the table.
	ErrDuplicateClient = errors.New("ratelimiter: duplicate client")

	// ErrNameAlreadySet is returned by SetName on the second call for the same client.
	ErrNameAlreadySet = errors.New("ratelimiter: client name already set")
)
