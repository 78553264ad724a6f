package db

import "errors"

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrEmptyText rejects advertisement creation with no text.
	ErrEmptyText = errors.New("advertisement text is empty")

	// ErrUnknownServer rejects advertisement creation against a server id
	// that is not present in the catalog.
	ErrUnknownServer = errors.New("unknown server")

	// ErrInvalidTransition is returned when a status update targets an
	// advertisement that is no longer pending, or a status outside the
	// approved/rejected pair.
	ErrInvalidTransition = errors.New("invalid status transition")
)
