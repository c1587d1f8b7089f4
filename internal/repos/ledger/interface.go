package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("ledger entry not found")
	ErrDuplicateKey = errors.New("duplicate idempotency key")
)

// Entry is one immutable line of an account's history. Delta is signed;
// BalanceAfter is the account balance right after the entry was applied.
type Entry struct {
	ID             uuid.UUID
	AccountID      string
	Delta          int64
	BalanceAfter   int64
	Reason         string
	RefType        string
	RefID          string // empty when the entry has no reference
	IdempotencyKey string
	CreatedAt      time.Time
}

type Ledger interface {
	// Insert appends e and fills e.CreatedAt. A taken idempotency key yields
	// ErrDuplicateKey.
	Insert(ctx context.Context, tx *sql.Tx, e *Entry) error
	GetByIdempotencyKey(ctx context.Context, tx *sql.Tx, key string) (Entry, error)
	// ListByAccount returns the newest entries first.
	ListByAccount(ctx context.Context, accountID string, limit int) ([]Entry, error)
}
