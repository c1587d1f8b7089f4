package rounds

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fastprodman/pointsarena/internal/repos/rounds"
)

func (r *roundsRepo) Transition(ctx context.Context, tx *sql.Tx, id uuid.UUID, to rounds.Status, from ...rounds.Status) (rounds.Round, error) {
	col, err := stampColumn(to)
	if err != nil {
		return rounds.Round{}, err
	}

	if len(from) == 0 {
		return rounds.Round{}, errors.New("transition needs at least one source status")
	}

	src := make([]string, len(from))
	for i, s := range from {
		src[i] = string(s)
	}

	round, err := scanRound(tx.QueryRowContext(ctx, `
		UPDATE game_rounds
		SET status = $2,
		    `+col+` = now()
		WHERE id = $1
		  AND status = ANY($3)
		RETURNING `+roundColumns, id, to, src))

	return r.afterTransition(ctx, tx, id, round, err)
}

func (r *roundsRepo) Resolve(ctx context.Context, tx *sql.Tx, id uuid.UUID, result json.RawMessage) (rounds.Round, error) {
	round, err := scanRound(tx.QueryRowContext(ctx, `
		UPDATE game_rounds
		SET status = 'RESOLVED',
		    result = $2,
		    resolved_at = now()
		WHERE id = $1
		  AND status = 'LOCKED'
		RETURNING `+roundColumns, id, []byte(result)))

	return r.afterTransition(ctx, tx, id, round, err)
}

// afterTransition tells a lost compare-and-set apart from a missing round.
func (r *roundsRepo) afterTransition(ctx context.Context, tx *sql.Tx, id uuid.UUID, round rounds.Round, err error) (rounds.Round, error) {
	if err == nil {
		return round, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return rounds.Round{}, fmt.Errorf("transition round: %w", err)
	}

	current, err := scanRound(tx.QueryRowContext(ctx, `
		SELECT `+roundColumns+`
		FROM game_rounds
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rounds.Round{}, rounds.ErrNotFound
		}

		return rounds.Round{}, fmt.Errorf("read round after transition: %w", err)
	}

	return current, rounds.ErrStatusMismatch
}
