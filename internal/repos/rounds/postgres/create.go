package rounds

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/pointsarena/internal/repos/rounds"
)

func (r *roundsRepo) Create(ctx context.Context, tx *sql.Tx, round *rounds.Round) error {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO game_rounds (id, game_type, status, config, server_seed, server_seed_hash, client_seed, nonce)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, round.ID, round.GameType, round.Status, []byte(round.Config),
		round.ServerSeed, round.ServerSeedHash, round.ClientSeed, round.Nonce).
		Scan(&round.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert round: %w", err)
	}

	return nil
}
