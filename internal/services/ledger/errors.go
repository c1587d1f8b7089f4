package ledger

import "errors"

var (
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrIdempotencyConflict means the key was already used for a different
	// account, amount or direction.
	ErrIdempotencyConflict = errors.New("idempotency key reused with different parameters")
	// ErrConcurrentWrite means another transaction committed the same key
	// first. The caller's transaction is aborted; retrying observes the entry.
	ErrConcurrentWrite = errors.New("idempotency key written concurrently")
)
