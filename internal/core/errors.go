package core

import "errors"

// Sentinel errors mapped to HTTP status codes by the API layer.
var (
	// ErrNotFound is returned for lookups and updates of absent records.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a create collides with an existing
	// identity.
	ErrAlreadyExists = errors.New("already exists")
	// ErrStaleSubscription is returned when a conditional billing write
	// loses against a concurrent run. Recoverable: the subscription is
	// picked up again on the next run.
	ErrStaleSubscription = errors.New("subscription changed concurrently")
)
