package rounds

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
	StatusOpen      Status = "OPEN"
	StatusLocked    Status = "LOCKED"
	StatusResolved  Status = "RESOLVED"
	StatusSettled   Status = "SETTLED"
	StatusCancelled Status = "CANCELLED"
)

// Revealed reports whether the server seed of a round in s may be disclosed.
func (s Status) Revealed() bool {
	return s == StatusResolved || s == StatusSettled
}

var (
	ErrNotFound = errors.New("round not found")
	// ErrStatusMismatch means a conditional transition found the round in a
	// status other than the expected one.
	ErrStatusMismatch = errors.New("round status mismatch")
)

type Round struct {
	ID             uuid.UUID
	GameType       string
	Status         Status
	Config         json.RawMessage
	Result         json.RawMessage // nil until resolved
	ServerSeed     string          // empty unless Status.Revealed()
	ServerSeedHash string
	ClientSeed     string
	Nonce          int64
	CreatedAt      time.Time
	LockedAt       *time.Time
	ResolvedAt     *time.Time
	SettledAt      *time.Time
	CancelledAt    *time.Time
}

type Rounds interface {
	// Create stores r (with its secret seed) and fills r.CreatedAt.
	Create(ctx context.Context, tx *sql.Tx, r *Round) error
	Get(ctx context.Context, id uuid.UUID) (Round, error)
	// GetForShare reads the round under a FOR SHARE lock so its status
	// cannot change until tx ends.
	GetForShare(ctx context.Context, tx *sql.Tx, id uuid.UUID) (Round, error)
	// GetOpenByType returns the most recently created OPEN round of a game.
	GetOpenByType(ctx context.Context, gameType string) (Round, error)
	// GetServerSeed reads the withheld seed regardless of status.
	GetServerSeed(ctx context.Context, tx *sql.Tx, id uuid.UUID) (string, error)
	// Transition moves the round to `to` when its status is one of from and
	// stamps the matching timestamp. On ErrStatusMismatch the returned round
	// holds the current state.
	Transition(ctx context.Context, tx *sql.Tx, id uuid.UUID, to Status, from ...Status) (Round, error)
	// Resolve is the LOCKED -> RESOLVED transition that also stores result.
	Resolve(ctx context.Context, tx *sql.Tx, id uuid.UUID, result json.RawMessage) (Round, error)
}
