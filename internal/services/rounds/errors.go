package rounds

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrRoundNotFound     = errors.New("round not found")
	ErrInvalidRoundState = errors.New("invalid round state")
	ErrDuplicateBet      = errors.New("account already has a bet in this round")
	// ErrBetKeyConflict means the idempotency key already belongs to a
	// different bet.
	ErrBetKeyConflict = errors.New("bet idempotency key reused with different parameters")

	errConcurrentBet = errors.New("bet written concurrently")
)

// StateError is returned when a round is not in a status the operation
// accepts. It matches ErrInvalidRoundState.
type StateError struct {
	RoundID uuid.UUID
	Status  Status
	Want    []Status
}

func (e *StateError) Error() string {
	want := make([]string, len(e.Want))
	for i, s := range e.Want {
		want[i] = string(s)
	}

	return fmt.Sprintf("round %s is %s, want %s", e.RoundID, e.Status, strings.Join(want, " or "))
}

func (e *StateError) Unwrap() error { return ErrInvalidRoundState }

func stateError(id uuid.UUID, status Status, want ...Status) error {
	return &StateError{RoundID: id, Status: status, Want: want}
}
