package balances

import (
	"context"
	"database/sql"
	"errors"
)

var (
	ErrNotFound          = errors.New("balance not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Balances stores the current point balance per account. Mutations run on
// the caller's transaction; the row must be locked with LockAndGet first.
type Balances interface {
	Get(ctx context.Context, accountID string) (int64, error)
	Ensure(ctx context.Context, tx *sql.Tx, accountID string) error
	LockAndGet(ctx context.Context, tx *sql.Tx, accountID string) (int64, error)
	Increase(ctx context.Context, tx *sql.Tx, accountID string, amount int64) (int64, error)
	Decrease(ctx context.Context, tx *sql.Tx, accountID string, amount int64) (int64, error)
}
