package repository

import "errors"

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateSession is returned when an order already exists for a
	// checkout session. Redelivered webhooks land here by design.
	ErrDuplicateSession = errors.New("order already exists for session")
)
