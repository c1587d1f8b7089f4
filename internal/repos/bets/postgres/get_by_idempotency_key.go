package bets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/pointsarena/internal/repos/bets"
)

func (r *betsRepo) GetByIdempotencyKey(ctx context.Context, tx *sql.Tx, key string) (bets.Bet, error) {
	b, err := scanBet(tx.QueryRowContext(ctx, `
		SELECT `+betColumns+`
		FROM game_bets
		WHERE idempotency_key = $1
	`, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return bets.Bet{}, bets.ErrNotFound
		}

		return bets.Bet{}, fmt.Errorf("get bet by key: %w", err)
	}

	return b, nil
}
