package rounds

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fastprodman/pointsarena/internal/repos/rounds"
)

func (r *roundsRepo) Get(ctx context.Context, id uuid.UUID) (rounds.Round, error) {
	round, err := scanRound(r.db.QueryRowContext(ctx, `
		SELECT `+roundColumns+`
		FROM game_rounds
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rounds.Round{}, rounds.ErrNotFound
		}

		return rounds.Round{}, fmt.Errorf("get round: %w", err)
	}

	return round, nil
}

func (r *roundsRepo) GetForShare(ctx context.Context, tx *sql.Tx, id uuid.UUID) (rounds.Round, error) {
	round, err := scanRound(tx.QueryRowContext(ctx, `
		SELECT `+roundColumns+`
		FROM game_rounds
		WHERE id = $1
		FOR SHARE
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rounds.Round{}, rounds.ErrNotFound
		}

		return rounds.Round{}, fmt.Errorf("get round for share: %w", err)
	}

	return round, nil
}

func (r *roundsRepo) GetOpenByType(ctx context.Context, gameType string) (rounds.Round, error) {
	round, err := scanRound(r.db.QueryRowContext(ctx, `
		SELECT `+roundColumns+`
		FROM game_rounds
		WHERE game_type = $1
		  AND status = 'OPEN'
		ORDER BY created_at DESC
		LIMIT 1
	`, gameType))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rounds.Round{}, rounds.ErrNotFound
		}

		return rounds.Round{}, fmt.Errorf("get open round: %w", err)
	}

	return round, nil
}

func (r *roundsRepo) GetServerSeed(ctx context.Context, tx *sql.Tx, id uuid.UUID) (string, error) {
	var seed string

	err := tx.QueryRowContext(ctx, `
		SELECT server_seed
		FROM game_rounds
		WHERE id = $1
	`, id).Scan(&seed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", rounds.ErrNotFound
		}

		return "", fmt.Errorf("get server seed: %w", err)
	}

	return seed, nil
}
