package storage

import "errors"

// Ledger errors. Both ledgers are append-only: records are inserted once
// and never updated or deleted.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when appending a record whose ID already
	// exists.
	ErrDuplicateKey = errors.New("duplicate key: ledger is append-only")

	// ErrInvalidInput is returned when a record fails basic validation
	// before touching the ledger.
	ErrInvalidInput = errors.New("invalid input")
)
