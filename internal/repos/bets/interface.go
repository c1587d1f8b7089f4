package bets

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPlaced    Status = "PLACED"
	StatusSettled   Status = "SETTLED"
	StatusCancelled Status = "CANCELLED"
)

var (
	ErrNotFound = errors.New("bet not found")
	// ErrDuplicateBet means the account already has a bet in the round.
	ErrDuplicateBet = errors.New("account already has a bet in this round")
	ErrDuplicateKey = errors.New("duplicate bet idempotency key")
)

type Bet struct {
	ID             uuid.UUID
	RoundID        uuid.UUID
	AccountID      string
	Amount         int64
	Choice         json.RawMessage
	Status         Status
	Payout         int64
	IdempotencyKey string
	CreatedAt      time.Time
	SettledAt      *time.Time
}

type Bets interface {
	// Insert stores b as PLACED and fills b.CreatedAt.
	Insert(ctx context.Context, tx *sql.Tx, b *Bet) error
	GetByIdempotencyKey(ctx context.Context, tx *sql.Tx, key string) (Bet, error)
	ListByStatus(ctx context.Context, roundID uuid.UUID, status Status) ([]Bet, error)
	// ListByRound returns all bets of a round, or only accountID's when it is
	// not empty, oldest first.
	ListByRound(ctx context.Context, roundID uuid.UUID, accountID string) ([]Bet, error)
	// MarkSettled moves a PLACED bet to SETTLED with payout. It reports false
	// when the bet was no longer PLACED.
	MarkSettled(ctx context.Context, tx *sql.Tx, betID uuid.UUID, payout int64) (bool, error)
	// MarkCancelled moves a PLACED bet to CANCELLED, reporting false when it
	// was no longer PLACED.
	MarkCancelled(ctx context.Context, tx *sql.Tx, betID uuid.UUID) (bool, error)
}
