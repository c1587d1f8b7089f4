package bets

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/pointsarena/internal/infra/pgutils"
	"github.com/fastprodman/pointsarena/internal/repos/bets"
)

func (r *betsRepo) Insert(ctx context.Context, tx *sql.Tx, b *bets.Bet) error {
	b.Status = bets.StatusPlaced

	err := tx.QueryRowContext(ctx, `
		INSERT INTO game_bets (id, round_id, account_id, amount, choice, status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, b.ID, b.RoundID, b.AccountID, b.Amount, []byte(b.Choice), b.Status, b.IdempotencyKey).
		Scan(&b.CreatedAt)
	if err != nil {
		if pgutils.IsUniqueViolation(err) {
			if pgutils.ViolatedConstraint(err) == roundAccountConstraint {
				return bets.ErrDuplicateBet
			}

			return bets.ErrDuplicateKey
		}

		return fmt.Errorf("insert bet: %w", err)
	}

	return nil
}
