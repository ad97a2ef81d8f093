package gossip

import "errors"

var (
	// ErrAlreadyActive is returned by Submit when the content's digest is
	// already present in the active update set.
	ErrAlreadyActive = errors.New("gossip: update already active")

	// ErrAlreadyExpired is returned by Submit when the content's digest is
	// in the tombstone set (it was previously active and has expired).
	ErrAlreadyExpired = errors.New("gossip: update already expired")

	// ErrAlreadyStarted is returned by Start when called more than once.
	ErrAlreadyStarted = errors.New("gossip: service already started")

	// ErrNotStarted is returned by Submit when Start has not been called.
	ErrNotStarted = errors.New("gossip: service not started")

	// ErrShutdown is returned by Submit once shutdown has been requested.
	ErrShutdown = errors.New("gossip: service is shutting down")

	// errUnknownProtocolTag is returned internally when a frame's protocol
	// tag does not match any known message kind.
	errUnknownProtocolTag = errors.New("gossip: unknown protocol tag")
)
